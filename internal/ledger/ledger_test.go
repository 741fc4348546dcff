package ledger_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avmarkin/ledgersvc/internal/domain/currency"
	"github.com/avmarkin/ledgersvc/internal/domain/transactions"
	"github.com/avmarkin/ledgersvc/internal/domain/users"
	"github.com/avmarkin/ledgersvc/internal/ledger"
	"github.com/avmarkin/ledgersvc/internal/storage"
	"github.com/avmarkin/ledgersvc/internal/storage/inmemory"
)

func newTestEngine(t *testing.T) (*ledger.Engine, storage.Storage) {
	t.Helper()

	store := storage.NewStorage(inmemory.NewStorage())
	t.Cleanup(func() { store.Close() })

	return ledger.NewEngine(store), store
}

func newTestUser(t *testing.T, store storage.Storage, email string) *users.User {
	t.Helper()

	usr, err := users.NewUser(email, "Test", "User", "password")
	require.NoError(t, err)

	usr, err = store.CreateUser(context.Background(), usr)
	require.NoError(t, err)

	return usr
}

func balanceOf(t *testing.T, store storage.Storage, userID int64, cur currency.Currency) decimal.Decimal {
	t.Helper()

	blnc, err := store.GetUserBalance(context.Background(), userID, cur)
	require.NoError(t, err)

	return blnc.Amount()
}

func TestCreateTransaction_DepositAndWithdraw(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	usr := newTestUser(t, store, "user@example.com")

	txn, err := engine.CreateTransaction(ctx, usr.ID(), currency.USD, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, transactions.StatusProcessed, txn.Status())
	assert.NotZero(t, txn.ID())
	assert.True(t, balanceOf(t, store, usr.ID(), currency.USD).Equal(decimal.NewFromInt(100)))

	_, err = engine.CreateTransaction(ctx, usr.ID(), currency.USD, decimal.NewFromInt(-40))
	require.NoError(t, err)
	assert.True(t, balanceOf(t, store, usr.ID(), currency.USD).Equal(decimal.NewFromInt(60)))
}

func TestCreateTransaction_BalancesAreCurrencyScoped(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	usr := newTestUser(t, store, "user@example.com")

	_, err := engine.CreateTransaction(ctx, usr.ID(), currency.BTC, decimal.NewFromInt(2))
	require.NoError(t, err)

	// Funds in one currency do not cover a withdrawal in another.
	_, err = engine.CreateTransaction(ctx, usr.ID(), currency.USD, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, storage.ErrNegativeBalance)

	assert.True(t, balanceOf(t, store, usr.ID(), currency.BTC).Equal(decimal.NewFromInt(2)))
	assert.True(t, balanceOf(t, store, usr.ID(), currency.USD).IsZero())
}

func TestCreateTransaction_WithdrawExactBalance(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	usr := newTestUser(t, store, "user@example.com")

	_, err := engine.CreateTransaction(ctx, usr.ID(), currency.USD, decimal.NewFromInt(50))
	require.NoError(t, err)

	_, err = engine.CreateTransaction(ctx, usr.ID(), currency.USD, decimal.NewFromInt(-50))
	require.NoError(t, err)

	assert.True(t, balanceOf(t, store, usr.ID(), currency.USD).IsZero())
}

func TestCreateTransaction_InsufficientBalance(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	usr := newTestUser(t, store, "user@example.com")

	_, err := engine.CreateTransaction(ctx, usr.ID(), currency.USD, decimal.NewFromInt(49))
	require.NoError(t, err)

	_, err = engine.CreateTransaction(ctx, usr.ID(), currency.USD, decimal.NewFromInt(-50))
	assert.ErrorIs(t, err, storage.ErrNegativeBalance)

	// The rejected withdrawal must leave no trace.
	assert.True(t, balanceOf(t, store, usr.ID(), currency.USD).Equal(decimal.NewFromInt(49)))

	txns, err := store.GetTransactionsByUserID(ctx, usr.ID())
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestCreateTransaction_ZeroAmount(t *testing.T) {
	engine, store := newTestEngine(t)

	usr := newTestUser(t, store, "user@example.com")

	_, err := engine.CreateTransaction(context.Background(), usr.ID(), currency.USD, decimal.Zero)
	assert.ErrorIs(t, err, transactions.ErrZeroAmount)
}

func TestCreateTransaction_BlockedUser(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	usr := newTestUser(t, store, "user@example.com")

	_, err := store.UpdateUserStatus(ctx, usr.ID(), users.StatusBlocked)
	require.NoError(t, err)

	_, err = engine.CreateTransaction(ctx, usr.ID(), currency.USD, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, ledger.ErrUserBlocked)
}

func TestCreateTransaction_UnknownUser(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.CreateTransaction(context.Background(), 42, currency.USD, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestRollbackTransaction_Deposit(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	usr := newTestUser(t, store, "user@example.com")

	txn, err := engine.CreateTransaction(ctx, usr.ID(), currency.USD, decimal.NewFromInt(100))
	require.NoError(t, err)

	rolled, err := engine.RollbackTransaction(ctx, usr.ID(), txn.ID())
	require.NoError(t, err)
	assert.Equal(t, transactions.StatusRollbacked, rolled.Status())
	assert.True(t, balanceOf(t, store, usr.ID(), currency.USD).IsZero())
}

func TestRollbackTransaction_Withdrawal(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	usr := newTestUser(t, store, "user@example.com")

	_, err := engine.CreateTransaction(ctx, usr.ID(), currency.USD, decimal.NewFromInt(100))
	require.NoError(t, err)

	withdrawal, err := engine.CreateTransaction(ctx, usr.ID(), currency.USD, decimal.NewFromInt(-30))
	require.NoError(t, err)
	require.True(t, balanceOf(t, store, usr.ID(), currency.USD).Equal(decimal.NewFromInt(70)))

	// Rolling back a withdrawal refunds its magnitude.
	_, err = engine.RollbackTransaction(ctx, usr.ID(), withdrawal.ID())
	require.NoError(t, err)
	assert.True(t, balanceOf(t, store, usr.ID(), currency.USD).Equal(decimal.NewFromInt(100)))
}

func TestRollbackTransaction_Twice(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	usr := newTestUser(t, store, "user@example.com")

	txn, err := engine.CreateTransaction(ctx, usr.ID(), currency.USD, decimal.NewFromInt(100))
	require.NoError(t, err)

	_, err = engine.RollbackTransaction(ctx, usr.ID(), txn.ID())
	require.NoError(t, err)

	_, err = engine.RollbackTransaction(ctx, usr.ID(), txn.ID())
	assert.ErrorIs(t, err, storage.ErrTransactionAlreadyRollbacked)

	// The first rollback stands; the balance is not reversed twice.
	assert.True(t, balanceOf(t, store, usr.ID(), currency.USD).IsZero())
}

func TestRollbackTransaction_DepositAlreadySpent(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	usr := newTestUser(t, store, "user@example.com")

	deposit, err := engine.CreateTransaction(ctx, usr.ID(), currency.USD, decimal.NewFromInt(100))
	require.NoError(t, err)

	_, err = engine.CreateTransaction(ctx, usr.ID(), currency.USD, decimal.NewFromInt(-80))
	require.NoError(t, err)

	// Reversing the deposit would drive the balance to -80.
	_, err = engine.RollbackTransaction(ctx, usr.ID(), deposit.ID())
	assert.ErrorIs(t, err, storage.ErrNegativeBalance)

	kept, err := store.GetTransaction(ctx, deposit.ID())
	require.NoError(t, err)
	assert.Equal(t, transactions.StatusProcessed, kept.Status())
	assert.True(t, balanceOf(t, store, usr.ID(), currency.USD).Equal(decimal.NewFromInt(20)))
}

func TestRollbackTransaction_NotOwned(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	owner := newTestUser(t, store, "owner@example.com")
	other := newTestUser(t, store, "other@example.com")

	txn, err := engine.CreateTransaction(ctx, owner.ID(), currency.USD, decimal.NewFromInt(100))
	require.NoError(t, err)

	_, err = engine.RollbackTransaction(ctx, other.ID(), txn.ID())
	assert.ErrorIs(t, err, ledger.ErrTransactionNotOwned)

	assert.True(t, balanceOf(t, store, owner.ID(), currency.USD).Equal(decimal.NewFromInt(100)))
}

func TestRollbackTransaction_BlockedUser(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	usr := newTestUser(t, store, "user@example.com")

	txn, err := engine.CreateTransaction(ctx, usr.ID(), currency.USD, decimal.NewFromInt(100))
	require.NoError(t, err)

	_, err = store.UpdateUserStatus(ctx, usr.ID(), users.StatusBlocked)
	require.NoError(t, err)

	_, err = engine.RollbackTransaction(ctx, usr.ID(), txn.ID())
	assert.ErrorIs(t, err, ledger.ErrUserBlocked)
}

// The engine is built here without options on purpose: the default logger
// must be usable, since every successful operation writes a log line.
func TestEngine_DepositWithdrawRollbackScenario(t *testing.T) {
	store := storage.NewStorage(inmemory.NewStorage())
	t.Cleanup(func() { store.Close() })

	engine := ledger.NewEngine(store)
	ctx := context.Background()

	usr := newTestUser(t, store, "user@example.com")

	deposit, err := engine.CreateTransaction(ctx, usr.ID(), currency.USD, decimal.NewFromInt(100))
	require.NoError(t, err)

	withdrawal, err := engine.CreateTransaction(ctx, usr.ID(), currency.USD, decimal.NewFromInt(-30))
	require.NoError(t, err)
	require.True(t, balanceOf(t, store, usr.ID(), currency.USD).Equal(decimal.NewFromInt(70)))

	_, err = engine.RollbackTransaction(ctx, usr.ID(), withdrawal.ID())
	require.NoError(t, err)
	require.True(t, balanceOf(t, store, usr.ID(), currency.USD).Equal(decimal.NewFromInt(100)))

	_, err = engine.RollbackTransaction(ctx, usr.ID(), deposit.ID())
	require.NoError(t, err)
	assert.True(t, balanceOf(t, store, usr.ID(), currency.USD).IsZero())
}

func TestRollbackTransaction_NotFound(t *testing.T) {
	engine, store := newTestEngine(t)

	usr := newTestUser(t, store, "user@example.com")

	_, err := engine.RollbackTransaction(context.Background(), usr.ID(), 42)
	assert.ErrorIs(t, err, storage.ErrTransactionNotFound)
}
