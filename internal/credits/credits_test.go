package credits

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baselinegate/baselinegate/internal/classify"
	"github.com/baselinegate/baselinegate/internal/config"
)

// fakeLedgerDB keeps balances in memory with the same debit semantics as
// the SQL implementation.
type fakeLedgerDB struct {
	mu       sync.Mutex
	balances map[string]int
	dbErr    error
}

func (f *fakeLedgerDB) GetCreditBalance(ctx context.Context, tenantID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dbErr != nil {
		return 0, f.dbErr
	}
	return f.balances[tenantID], nil
}

func (f *fakeLedgerDB) DebitCredits(ctx context.Context, tenantID string, amount int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dbErr != nil {
		return 0, f.dbErr
	}
	balance := f.balances[tenantID]
	if balance < amount {
		return balance, &InsufficientError{TenantID: tenantID, Balance: balance, Needed: amount}
	}
	f.balances[tenantID] = balance - amount
	return balance - amount, nil
}

func testCfg() config.CreditsConfig {
	return config.CreditsConfig{BaseCost: 1, PerHundredKB: 1}
}

func TestEstimateCost(t *testing.T) {
	l := NewLedger(nil, testCfg())

	tests := []struct {
		bytes int64
		want  int
	}{
		{0, 1},
		{1, 2},
		{100 * 1024, 2},
		{100*1024 + 1, 3},
		{1024 * 1024, 12},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, l.EstimateCost(tt.bytes), "bytes=%d", tt.bytes)
	}
}

func TestCharge_DebitsBalance(t *testing.T) {
	db := &fakeLedgerDB{balances: map[string]int{"tenant-1": 10}}
	l := NewLedger(db, testCfg())

	cost, cerr := l.Charge(context.Background(), "tenant-1", 100000)
	require.Nil(t, cerr)
	assert.Equal(t, 2, cost)

	balance, err := l.Balance(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 8, balance)
}

func TestCharge_InsufficientCredits(t *testing.T) {
	db := &fakeLedgerDB{balances: map[string]int{"tenant-1": 1}}
	l := NewLedger(db, testCfg())

	_, cerr := l.Charge(context.Background(), "tenant-1", 100000)
	require.NotNil(t, cerr)
	assert.Equal(t, classify.CodeInsufficientCredits, cerr.Code)
	assert.False(t, cerr.Retryable())

	// The failed debit must not touch the balance.
	balance, err := l.Balance(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 1, balance)
}

func TestCharge_DatabaseFailureIsPersistenceError(t *testing.T) {
	db := &fakeLedgerDB{dbErr: errors.New("connection refused")}
	l := NewLedger(db, testCfg())

	_, cerr := l.Charge(context.Background(), "tenant-1", 1000)
	require.NotNil(t, cerr)
	assert.Equal(t, classify.CodePersistenceError, cerr.Code)
}

func TestIsInsufficient(t *testing.T) {
	assert.True(t, IsInsufficient(&InsufficientError{}))
	assert.False(t, IsInsufficient(errors.New("other")))
}
