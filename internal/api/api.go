// Package api provides the BaselineGate HTTP API server.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/baselinegate/baselinegate/internal/auth"
	"github.com/baselinegate/baselinegate/internal/config"
	"github.com/baselinegate/baselinegate/internal/database"
	"github.com/baselinegate/baselinegate/internal/pipeline"
	"github.com/baselinegate/baselinegate/internal/provider"
)

// Pipeline drives analysis submissions and status lookups.
type Pipeline interface {
	Submit(ctx context.Context, req pipeline.SubmitRequest) (*pipeline.Submission, error)
	Status(ctx context.Context, jobID string) (*pipeline.JobView, error)
}

// AnalysisStore reads persisted analyses for jobs the queue no longer holds.
type AnalysisStore interface {
	GetAnalysisByJobID(ctx context.Context, jobID string) (*database.AnalysisRecord, error)
	ListTenantAnalyses(ctx context.Context, params database.ListTenantAnalysesParams) ([]database.AnalysisRecord, error)
	CountTenantAnalyses(ctx context.Context, tenantID string) (int, error)
}

// ProviderStore manages a tenant's AI provider configurations.
type ProviderStore interface {
	CreateProviderConfig(ctx context.Context, params database.CreateProviderConfigParams) (*provider.Config, error)
	GetProviderConfig(ctx context.Context, tenantID string, id uuid.UUID) (*provider.Config, error)
	ListTenantProviders(ctx context.Context, tenantID string) ([]provider.Config, error)
	UpdateProviderConfig(ctx context.Context, tenantID string, id uuid.UUID, params database.UpdateProviderConfigParams) (*provider.Config, error)
	DeleteProviderConfig(ctx context.Context, tenantID string, id uuid.UUID) error
}

// ConnectionTester checks a provider configuration against the live API.
type ConnectionTester interface {
	TestConnection(ctx context.Context, cfg provider.Config) error
}

// Server is the API server.
type Server struct {
	pipe      Pipeline
	records   AnalysisStore
	providers ProviderStore
	tester    ConnectionTester
	verifier  auth.TokenVerifier
	limiter   *callerLimiter
	log       *logrus.Entry
	mux       *http.ServeMux
}

// Config holds API server configuration.
type Config struct {
	Pipeline  Pipeline
	Records   AnalysisStore
	Providers ProviderStore
	Tester    ConnectionTester
	Verifier  auth.TokenVerifier
	RateLimit config.RateLimitConfig
	Log       *logrus.Entry
}

// NewServer creates a new API server.
func NewServer(cfg Config) *Server {
	s := &Server{
		pipe:      cfg.Pipeline,
		records:   cfg.Records,
		providers: cfg.Providers,
		tester:    cfg.Tester,
		verifier:  cfg.Verifier,
		limiter:   newCallerLimiter(cfg.RateLimit),
		log:       cfg.Log,
		mux:       http.NewServeMux(),
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	authMiddleware := auth.Middleware(s.verifier)

	// Public endpoints
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// Protected endpoints
	s.mux.HandleFunc("POST /api/analyses", s.withAuth(authMiddleware, s.handleSubmitAnalysis))
	s.mux.HandleFunc("GET /api/analyses", s.withAuth(authMiddleware, s.handleListAnalyses))
	s.mux.HandleFunc("GET /api/analyses/{jobID}", s.withAuth(authMiddleware, s.handleGetAnalysis))
	s.mux.HandleFunc("GET /api/analyses/{jobID}/gate", s.withAuth(authMiddleware, s.handleGateAnalysis))
	s.mux.HandleFunc("GET /api/analyses/{jobID}/export", s.withAuth(authMiddleware, s.handleExportAnalysis))

	// Provider management
	s.mux.HandleFunc("GET /api/providers", s.withAuth(authMiddleware, s.handleListProviders))
	s.mux.HandleFunc("POST /api/providers", s.withAuth(authMiddleware, s.handleCreateProvider))
	s.mux.HandleFunc("PUT /api/providers/{providerID}", s.withAuth(authMiddleware, s.handleUpdateProvider))
	s.mux.HandleFunc("DELETE /api/providers/{providerID}", s.withAuth(authMiddleware, s.handleDeleteProvider))
	s.mux.HandleFunc("POST /api/providers/{providerID}/test", s.withAuth(authMiddleware, s.handleTestProvider))
}

func (s *Server) withAuth(middleware func(http.Handler) http.Handler, handler http.HandlerFunc) http.HandlerFunc {
	limited := s.withRateLimit(handler)
	return func(w http.ResponseWriter, r *http.Request) {
		middleware(http.HandlerFunc(limited)).ServeHTTP(w, r)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Add CORS headers
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func readJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
