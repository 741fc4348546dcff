package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avmarkin/ledgersvc/internal/analytics"
	"github.com/avmarkin/ledgersvc/internal/domain/currency"
	"github.com/avmarkin/ledgersvc/internal/domain/transactions"
	"github.com/avmarkin/ledgersvc/internal/kvstore/memkv"
)

func TestReporter_ServesCachedReport(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	reporter := analytics.NewReporter(engine, memkv.NewStore())

	day := testNow.AddDate(0, 0, -2)
	usr := seedUser(t, store, "user@example.com", day)
	seedTxn(t, store, usr.ID(), currency.USD, decimal.NewFromInt(100), transactions.StatusProcessed, day)

	// First read is a cache miss and computes the report.
	report, err := reporter.Report(ctx)
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, 1, report[0].RegisteredUserCount)

	// Later writes are invisible until the next refresh.
	seedUser(t, store, "late@example.com", day)

	cached, err := reporter.Report(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, 1, cached[0].RegisteredUserCount)

	refreshed, err := reporter.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, refreshed, 1)
	assert.Equal(t, 2, refreshed[0].RegisteredUserCount)
}

func TestReporter_CacheExpires(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	kv := memkv.NewStore(memkv.WithNow(func() time.Time { return now }))

	reporter := analytics.NewReporter(engine, kv, analytics.WithInterval(time.Hour))

	day := testNow.AddDate(0, 0, -2)
	seedUser(t, store, "user@example.com", day)

	_, err := reporter.Refresh(ctx)
	require.NoError(t, err)

	seedUser(t, store, "late@example.com", day)

	// The cached copy outlives one interval but not two.
	now = now.Add(3 * time.Hour)

	report, err := reporter.Report(ctx)
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, 2, report[0].RegisteredUserCount)
}
