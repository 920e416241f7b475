package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/baselinegate/baselinegate/internal/provider"
)

// providerColumns is the standard column list for provider config queries.
const providerColumns = `id, tenant_id, name, kind, priority, enabled, api_key, base_url, model, max_tokens, temperature, cost_per_token, created_at`

func scanProvider(row pgx.Row) (*provider.Config, error) {
	var cfg provider.Config
	var id uuid.UUID
	err := row.Scan(
		&id, &cfg.TenantID, &cfg.Name, &cfg.Kind, &cfg.Priority, &cfg.Enabled,
		&cfg.APIKey, &cfg.BaseURL, &cfg.Model, &cfg.MaxTokens, &cfg.Temperature,
		&cfg.CostPerToken, &cfg.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cfg.ID = id.String()
	return &cfg, nil
}

// CreateProviderConfigParams contains parameters for registering a provider.
type CreateProviderConfigParams struct {
	TenantID     string
	Name         string
	Kind         provider.Kind
	Priority     int
	Enabled      bool
	APIKey       string
	BaseURL      string
	Model        string
	MaxTokens    int
	Temperature  float64
	CostPerToken float64
}

// CreateProviderConfig registers a new provider for a tenant.
func (db *DB) CreateProviderConfig(ctx context.Context, params CreateProviderConfigParams) (*provider.Config, error) {
	row := db.pool.QueryRow(ctx,
		`INSERT INTO provider_configs (tenant_id, name, kind, priority, enabled, api_key, base_url, model, max_tokens, temperature, cost_per_token)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING `+providerColumns,
		params.TenantID, params.Name, params.Kind, params.Priority, params.Enabled,
		params.APIKey, params.BaseURL, params.Model, params.MaxTokens, params.Temperature,
		params.CostPerToken,
	)
	return scanProvider(row)
}

// GetProviderConfig retrieves a single provider config scoped to a tenant.
func (db *DB) GetProviderConfig(ctx context.Context, tenantID string, id uuid.UUID) (*provider.Config, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+providerColumns+` FROM provider_configs WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	)
	return scanProvider(row)
}

// ListTenantProviders returns a tenant's providers in failover order.
func (db *DB) ListTenantProviders(ctx context.Context, tenantID string) ([]provider.Config, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+providerColumns+` FROM provider_configs
		 WHERE tenant_id = $1
		 ORDER BY priority, created_at`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []provider.Config
	for rows.Next() {
		var cfg provider.Config
		var id uuid.UUID
		if err := rows.Scan(
			&id, &cfg.TenantID, &cfg.Name, &cfg.Kind, &cfg.Priority, &cfg.Enabled,
			&cfg.APIKey, &cfg.BaseURL, &cfg.Model, &cfg.MaxTokens, &cfg.Temperature,
			&cfg.CostPerToken, &cfg.CreatedAt,
		); err != nil {
			return nil, err
		}
		cfg.ID = id.String()
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// UpdateProviderConfigParams contains the mutable provider fields.
type UpdateProviderConfigParams struct {
	Name         string
	Priority     int
	Enabled      bool
	BaseURL      string
	Model        string
	MaxTokens    int
	Temperature  float64
	CostPerToken float64
}

// UpdateProviderConfig updates a provider's failover settings.
func (db *DB) UpdateProviderConfig(ctx context.Context, tenantID string, id uuid.UUID, params UpdateProviderConfigParams) (*provider.Config, error) {
	row := db.pool.QueryRow(ctx,
		`UPDATE provider_configs
		 SET name = $3, priority = $4, enabled = $5, base_url = $6, model = $7, max_tokens = $8, temperature = $9, cost_per_token = $10
		 WHERE id = $1 AND tenant_id = $2
		 RETURNING `+providerColumns,
		id, tenantID, params.Name, params.Priority, params.Enabled, params.BaseURL,
		params.Model, params.MaxTokens, params.Temperature, params.CostPerToken,
	)
	return scanProvider(row)
}

// DeleteProviderConfig removes a provider from a tenant.
func (db *DB) DeleteProviderConfig(ctx context.Context, tenantID string, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`DELETE FROM provider_configs WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	)
	return err
}
