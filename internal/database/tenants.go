package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/baselinegate/baselinegate/internal/credits"
)

// Tenant is a billing and isolation boundary. Credits are tracked per tenant.
type Tenant struct {
	ID            string
	Name          string
	CreditBalance int
	CreatedAt     time.Time
}

// CreateTenant registers a tenant with an initial credit balance.
func (db *DB) CreateTenant(ctx context.Context, id, name string, initialCredits int) (*Tenant, error) {
	row := db.pool.QueryRow(ctx,
		`INSERT INTO tenants (id, name, credit_balance)
		 VALUES ($1, $2, $3)
		 RETURNING id, name, credit_balance, created_at`,
		id, name, initialCredits,
	)
	return scanTenant(row)
}

// GetTenant retrieves a tenant by ID.
func (db *DB) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT id, name, credit_balance, created_at FROM tenants WHERE id = $1`,
		id,
	)
	return scanTenant(row)
}

func scanTenant(row pgx.Row) (*Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.CreditBalance, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetCreditBalance returns a tenant's current credit balance.
func (db *DB) GetCreditBalance(ctx context.Context, tenantID string) (int, error) {
	var balance int
	err := db.pool.QueryRow(ctx,
		`SELECT credit_balance FROM tenants WHERE id = $1`,
		tenantID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("tenant not found: %s", tenantID)
	}
	return balance, err
}

// DebitCredits atomically deducts amount from the tenant's balance. The
// conditional update makes concurrent debits safe: a debit that would
// take the balance negative matches no row and fails instead.
func (db *DB) DebitCredits(ctx context.Context, tenantID string, amount int) (int, error) {
	var remaining int
	err := db.pool.QueryRow(ctx,
		`UPDATE tenants
		 SET credit_balance = credit_balance - $2
		 WHERE id = $1 AND credit_balance >= $2
		 RETURNING credit_balance`,
		tenantID, amount,
	).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		balance, balErr := db.GetCreditBalance(ctx, tenantID)
		if balErr != nil {
			balance = 0
		}
		return balance, &credits.InsufficientError{TenantID: tenantID, Balance: balance, Needed: amount}
	}
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// CreditTenant adds credits to a tenant's balance.
func (db *DB) CreditTenant(ctx context.Context, tenantID string, amount int) (int, error) {
	var balance int
	err := db.pool.QueryRow(ctx,
		`UPDATE tenants SET credit_balance = credit_balance + $2 WHERE id = $1 RETURNING credit_balance`,
		tenantID, amount,
	).Scan(&balance)
	return balance, err
}

// DeleteTenant removes a tenant and, via cascade, its provider configs.
func (db *DB) DeleteTenant(ctx context.Context, id string) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	return err
}
