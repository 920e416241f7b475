package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/baselinegate/baselinegate/internal/database"
	"github.com/baselinegate/baselinegate/internal/provider"
)

// providerRequest is the body for creating or updating a provider
// configuration. API keys are accepted here but never echoed back.
type providerRequest struct {
	Name         string  `json:"name"`
	Kind         string  `json:"kind"`
	Priority     int     `json:"priority"`
	Enabled      *bool   `json:"enabled"`
	APIKey       string  `json:"api_key"`
	BaseURL      string  `json:"base_url"`
	Model        string  `json:"model"`
	MaxTokens    int     `json:"max_tokens"`
	Temperature  float64 `json:"temperature"`
	CostPerToken float64 `json:"cost_per_token"`
}

// handleListProviders returns the tenant's provider configurations in
// failover order. API keys are excluded from the serialized form.
func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	configs, err := s.providers.ListTenantProviders(r.Context(), caller.TenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list providers")
		return
	}
	if configs == nil {
		configs = []provider.Config{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"providers": configs})
}

// handleCreateProvider registers a new provider configuration for the tenant.
func (s *Server) handleCreateProvider(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req providerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kind := provider.Kind(req.Kind)
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest, "kind must be openai, anthropic, or google")
		return
	}
	if req.APIKey == "" {
		writeError(w, http.StatusBadRequest, "api_key is required")
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model is required")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	name := req.Name
	if name == "" {
		name = req.Kind
	}

	cfg, err := s.providers.CreateProviderConfig(r.Context(), database.CreateProviderConfigParams{
		TenantID:     caller.TenantID,
		Name:         name,
		Kind:         kind,
		Priority:     req.Priority,
		Enabled:      enabled,
		APIKey:       req.APIKey,
		BaseURL:      req.BaseURL,
		Model:        req.Model,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
		CostPerToken: req.CostPerToken,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create provider")
		return
	}

	writeJSON(w, http.StatusCreated, cfg)
}

// handleUpdateProvider updates a provider's failover settings. The API key
// and kind are immutable; replace the configuration to rotate either.
func (s *Server) handleUpdateProvider(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("providerID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid provider ID")
		return
	}

	existing, err := s.providers.GetProviderConfig(r.Context(), caller.TenantID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load provider")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "provider not found")
		return
	}

	var req providerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params := database.UpdateProviderConfigParams{
		Name:         existing.Name,
		Priority:     req.Priority,
		Enabled:      existing.Enabled,
		BaseURL:      existing.BaseURL,
		Model:        existing.Model,
		MaxTokens:    existing.MaxTokens,
		Temperature:  existing.Temperature,
		CostPerToken: existing.CostPerToken,
	}
	if req.Name != "" {
		params.Name = req.Name
	}
	if req.Enabled != nil {
		params.Enabled = *req.Enabled
	}
	if req.BaseURL != "" {
		params.BaseURL = req.BaseURL
	}
	if req.Model != "" {
		params.Model = req.Model
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		params.Temperature = req.Temperature
	}
	if req.CostPerToken > 0 {
		params.CostPerToken = req.CostPerToken
	}

	cfg, err := s.providers.UpdateProviderConfig(r.Context(), caller.TenantID, id, params)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update provider")
		return
	}
	if cfg == nil {
		writeError(w, http.StatusNotFound, "provider not found")
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// handleDeleteProvider removes a provider configuration.
func (s *Server) handleDeleteProvider(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("providerID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid provider ID")
		return
	}

	existing, err := s.providers.GetProviderConfig(r.Context(), caller.TenantID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load provider")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "provider not found")
		return
	}

	if err := s.providers.DeleteProviderConfig(r.Context(), caller.TenantID, id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete provider")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleTestProvider checks the stored configuration against the provider's
// live API without running an analysis.
func (s *Server) handleTestProvider(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("providerID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid provider ID")
		return
	}

	cfg, err := s.providers.GetProviderConfig(r.Context(), caller.TenantID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load provider")
		return
	}
	if cfg == nil {
		writeError(w, http.StatusNotFound, "provider not found")
		return
	}

	if err := s.tester.TestConnection(r.Context(), *cfg); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":    false,
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
