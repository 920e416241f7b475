package credits

import (
	"context"
	"fmt"

	"github.com/baselinegate/baselinegate/internal/classify"
	"github.com/baselinegate/baselinegate/internal/config"
)

// LedgerDB defines the database operations needed by the Ledger.
type LedgerDB interface {
	GetCreditBalance(ctx context.Context, tenantID string) (int, error)
	DebitCredits(ctx context.Context, tenantID string, amount int) (int, error)
}

// Ledger estimates analysis costs and debits tenant credit balances.
type Ledger struct {
	db  LedgerDB
	cfg config.CreditsConfig
}

// NewLedger creates a new credit ledger.
func NewLedger(db LedgerDB, cfg config.CreditsConfig) *Ledger {
	return &Ledger{db: db, cfg: cfg}
}

// EstimateCost computes the credit cost of analyzing totalBytes of
// extracted content: the base cost plus one increment for every started
// 100KB.
func (l *Ledger) EstimateCost(totalBytes int64) int {
	cost := l.cfg.BaseCost
	if totalBytes > 0 {
		blocks := (totalBytes + 100*1024 - 1) / (100 * 1024)
		cost += int(blocks) * l.cfg.PerHundredKB
	}
	return cost
}

// Charge debits the estimated cost from the tenant's balance. It returns
// the cost charged, or a classified error when the balance cannot cover
// it. The debit happens before any provider call so a tenant without
// credits never consumes provider quota.
func (l *Ledger) Charge(ctx context.Context, tenantID string, totalBytes int64) (int, *classify.Error) {
	cost := l.EstimateCost(totalBytes)

	if _, err := l.db.DebitCredits(ctx, tenantID, cost); err != nil {
		if IsInsufficient(err) {
			return 0, classify.Wrap(classify.CodeInsufficientCredits, err)
		}
		return 0, classify.Wrap(classify.CodePersistenceError, err)
	}
	return cost, nil
}

// Balance returns the tenant's current credit balance.
func (l *Ledger) Balance(ctx context.Context, tenantID string) (int, error) {
	return l.db.GetCreditBalance(ctx, tenantID)
}

// InsufficientError is returned when a debit exceeds the available balance.
type InsufficientError struct {
	TenantID string
	Balance  int
	Needed   int
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf(
		"insufficient credits: balance %d, analysis requires %d (tenant: %s)",
		e.Balance, e.Needed, e.TenantID,
	)
}

// IsInsufficient checks if an error is an InsufficientError.
func IsInsufficient(err error) bool {
	_, ok := err.(*InsufficientError)
	return ok
}
