package transactions_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avmarkin/ledgersvc/internal/domain/currency"
	"github.com/avmarkin/ledgersvc/internal/domain/transactions"
)

func TestNew(t *testing.T) {
	txn, err := transactions.New(1, currency.USD, decimal.NewFromInt(100))
	require.NoError(t, err)

	assert.Equal(t, transactions.StatusProcessed, txn.Status())
	assert.True(t, txn.IsDeposit())
	assert.False(t, txn.IsRollbacked())
	assert.False(t, txn.Created().IsZero())
}

func TestNew_ZeroAmount(t *testing.T) {
	_, err := transactions.New(1, currency.USD, decimal.Zero)
	assert.ErrorIs(t, err, transactions.ErrZeroAmount)
}

func TestIsDeposit(t *testing.T) {
	deposit, err := transactions.New(1, currency.USD, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.True(t, deposit.IsDeposit())

	withdrawal, err := transactions.New(1, currency.USD, decimal.NewFromInt(-100))
	require.NoError(t, err)
	assert.False(t, withdrawal.IsDeposit())
}

func TestReversalDelta(t *testing.T) {
	deposit, err := transactions.New(1, currency.USD, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.True(t, deposit.ReversalDelta().Equal(decimal.NewFromInt(-100)))

	withdrawal, err := transactions.New(1, currency.USD, decimal.NewFromInt(-30))
	require.NoError(t, err)
	assert.True(t, withdrawal.ReversalDelta().Equal(decimal.NewFromInt(30)))
}

func TestParseStatus(t *testing.T) {
	status, err := transactions.ParseStatus("PROCESSED")
	require.NoError(t, err)
	assert.Equal(t, transactions.StatusProcessed, status)

	status, err = transactions.ParseStatus("ROLLBACKED")
	require.NoError(t, err)
	assert.Equal(t, transactions.StatusRollbacked, status)

	_, err = transactions.ParseStatus("PENDING")
	assert.ErrorIs(t, err, transactions.ErrStatusUnknown)
}
