package inmemory_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avmarkin/ledgersvc/internal/domain/currency"
	"github.com/avmarkin/ledgersvc/internal/domain/transactions"
	"github.com/avmarkin/ledgersvc/internal/domain/users"
	"github.com/avmarkin/ledgersvc/internal/storage"
	"github.com/avmarkin/ledgersvc/internal/storage/inmemory"
)

func seedUser(t *testing.T, store *inmemory.Storage, email string, created time.Time) *users.User {
	t.Helper()

	usr, err := store.CreateUser(context.Background(),
		users.RestoreUser(0, email, "Test", "User", "hash", users.StatusActive, users.RoleUser, created),
	)
	require.NoError(t, err)

	return usr
}

func seedTxn(
	t *testing.T, store *inmemory.Storage,
	userID int64, amount decimal.Decimal, status transactions.Status, created time.Time,
) *transactions.Transaction {
	t.Helper()

	txn, err := store.ApplyTransaction(context.Background(),
		transactions.Restore(0, userID, currency.USD, amount, status, created),
	)
	require.NoError(t, err)

	return txn
}

func TestGetUsersCreatedBetween(t *testing.T) {
	store := inmemory.NewStorage()
	ctx := context.Background()

	from := time.Date(2025, time.June, 9, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, time.June, 16, 0, 0, 0, 0, time.UTC)

	seedUser(t, store, "before@example.com", from.Add(-time.Second))
	inRange := seedUser(t, store, "inside@example.com", from)
	seedUser(t, store, "after@example.com", to)

	list, err := store.GetUsersCreatedBetween(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, list, 1)

	// The range is half-open: from is included, to is not.
	assert.Equal(t, inRange.ID(), list[0].ID())
}

func TestGetTransactionsCreatedBetween(t *testing.T) {
	store := inmemory.NewStorage()
	ctx := context.Background()

	usr := seedUser(t, store, "user@example.com", time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))

	from := time.Date(2025, time.June, 9, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, time.June, 16, 0, 0, 0, 0, time.UTC)

	seedTxn(t, store, usr.ID(), decimal.NewFromInt(10), transactions.StatusProcessed, from.Add(-time.Second))
	second := seedTxn(t, store, usr.ID(), decimal.NewFromInt(20), transactions.StatusProcessed, from.Add(time.Hour))
	first := seedTxn(t, store, usr.ID(), decimal.NewFromInt(30), transactions.StatusProcessed, from)
	seedTxn(t, store, usr.ID(), decimal.NewFromInt(40), transactions.StatusProcessed, to)

	list, err := store.GetTransactionsCreatedBetween(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, list, 2)

	// Oldest first.
	assert.Equal(t, first.ID(), list[0].ID())
	assert.Equal(t, second.ID(), list[1].ID())
}

func TestGetTransactions_StatusFilter(t *testing.T) {
	store := inmemory.NewStorage()
	ctx := context.Background()

	usr := seedUser(t, store, "user@example.com", time.Now().UTC())

	seedTxn(t, store, usr.ID(), decimal.NewFromInt(10), transactions.StatusProcessed, time.Now().UTC())
	rolled := seedTxn(t, store, usr.ID(), decimal.NewFromInt(20), transactions.StatusRollbacked, time.Now().UTC())

	all, err := store.GetTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := store.GetTransactions(ctx, transactions.StatusRollbacked)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, rolled.ID(), filtered[0].ID())
}

func TestApplyTransaction_UnknownBalance(t *testing.T) {
	store := inmemory.NewStorage()

	txn, err := transactions.New(42, currency.USD, decimal.NewFromInt(10))
	require.NoError(t, err)

	_, err = store.ApplyTransaction(context.Background(), txn)
	assert.ErrorIs(t, err, storage.ErrUserBalanceNotFound)
}

func TestUpdateUserPassword(t *testing.T) {
	store := inmemory.NewStorage()
	ctx := context.Background()

	usr := seedUser(t, store, "user@example.com", time.Now().UTC())

	require.NoError(t, store.UpdateUserPassword(ctx, usr.ID(), "newhash"))

	updated, err := store.GetUser(ctx, usr.ID())
	require.NoError(t, err)
	assert.Equal(t, "newhash", updated.PasswordHash())

	assert.ErrorIs(t, store.UpdateUserPassword(ctx, 42, "hash"), storage.ErrUserNotFound)
}
