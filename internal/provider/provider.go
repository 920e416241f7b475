package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Kind identifies an AI provider implementation.
type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
	KindGoogle    Kind = "google"
)

// Valid reports whether k is a known provider kind.
func (k Kind) Valid() bool {
	switch k {
	case KindOpenAI, KindAnthropic, KindGoogle:
		return true
	}
	return false
}

// Config is a tenant-scoped provider configuration. Lower Priority values
// are tried first; ties break on CreatedAt. BaseURL overrides the vendor's
// default endpoint for proxies and self-hosted gateways; empty means the
// default. CostPerToken is informational pricing metadata, not the value
// the credit ledger charges from.
type Config struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	Name         string    `json:"name"`
	Kind         Kind      `json:"kind"`
	Priority     int       `json:"priority"`
	Enabled      bool      `json:"enabled"`
	APIKey       string    `json:"-"`
	BaseURL      string    `json:"base_url,omitempty"`
	Model        string    `json:"model"`
	MaxTokens    int       `json:"max_tokens"`
	Temperature  float64   `json:"temperature"`
	CostPerToken float64   `json:"cost_per_token"`
	CreatedAt    time.Time `json:"created_at"`
}

// Message is a single turn in a provider conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the provider-agnostic completion result.
type Response struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
}

// Client is the closed set of operations every provider supports.
type Client interface {
	// TestConnection verifies the credentials with a minimal request.
	TestConnection(ctx context.Context) error
	// Complete sends a conversation and returns the completion.
	Complete(ctx context.Context, messages []Message) (*Response, error)
	Kind() Kind
	Model() string
}

// apiError is a non-2xx provider response. Failover inspects the status
// code to tell quota exhaustion apart from ordinary provider failures.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Body)
}

func (e *apiError) quotaExceeded() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusPaymentRequired
}

// NewClient builds the wire client for a provider configuration.
func NewClient(cfg Config) (Client, error) {
	if !cfg.Kind.Valid() {
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider %s: API key required", cfg.Kind)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	switch cfg.Kind {
	case KindOpenAI:
		return newOpenAIClient(cfg.APIKey, cfg.Model, maxTokens, cfg.Temperature, cfg.BaseURL), nil
	case KindAnthropic:
		return newAnthropicClient(cfg.APIKey, cfg.Model, maxTokens, cfg.Temperature, cfg.BaseURL), nil
	default:
		return newGoogleClient(cfg.APIKey, cfg.Model, maxTokens, cfg.Temperature, cfg.BaseURL), nil
	}
}
