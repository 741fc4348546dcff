package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avmarkin/ledgersvc/internal/domain/currency"
	"github.com/avmarkin/ledgersvc/internal/storage"
)

// weeksToScan is the fixed number of 7-day windows walked backward from today.
const weeksToScan = 52

// WindowMetrics is one 7-day inclusive reporting window. Monetary sums are
// USD equivalents computed with the static exchange-rate table.
type WindowMetrics struct {
	StartDate                                  time.Time       `json:"start_date"`
	EndDate                                    time.Time       `json:"end_date"`
	RegisteredUserCount                        int             `json:"registered_user_count"`
	RegisteredAndDepositUserCount              int             `json:"registered_and_deposit_user_count"`
	RegisteredAndNotRollbackedDepositUserCount int             `json:"registered_and_not_rollbacked_deposit_user_count"`
	NotRollbackedDepositSum                    decimal.Decimal `json:"not_rollbacked_deposit_sum"`
	NotRollbackedWithdrawSum                   decimal.Decimal `json:"not_rollbacked_withdraw_sum"`
	TransactionsCount                          int             `json:"transactions_count"`
	NotRollbackedTransactionsCount             int             `json:"not_rollbacked_transactions_count"`
}

// hasActivity reports whether any metric in the window is greater than zero.
// Windows without activity are omitted from reports, not zero-filled.
func (m *WindowMetrics) hasActivity() bool {
	if m.RegisteredUserCount > 0 ||
		m.RegisteredAndDepositUserCount > 0 ||
		m.RegisteredAndNotRollbackedDepositUserCount > 0 ||
		m.TransactionsCount > 0 ||
		m.NotRollbackedTransactionsCount > 0 {
		return true
	}

	return m.NotRollbackedDepositSum.IsPositive() || m.NotRollbackedWithdrawSum.IsPositive()
}

// Engine reduces transaction and registration history into weekly summaries.
// It only reads; it is a reporting path, not a latency-sensitive one.
type Engine struct {
	log     *slog.Logger
	storage storage.Storage
	now     func() time.Time
}

type Option func(e *Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.log = logger
	}
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(store storage.Storage, opts ...Option) *Engine {
	engine := &Engine{
		log:     slog.New(slog.NewJSONHandler(os.Stderr, nil)),
		storage: store,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// ComputeWeeklyMetrics walks 52 fixed 7-day windows backward from today and
// returns the windows with any activity, newest first.
func (e *Engine) ComputeWeeklyMetrics(ctx context.Context) ([]WindowMetrics, error) {
	windowEnd := truncateToDay(e.now().UTC())
	windowStart := windowEnd.AddDate(0, 0, -6)

	report := make([]WindowMetrics, 0)

	for i := 0; i < weeksToScan; i++ {
		metrics, err := e.computeWindow(ctx, windowStart, windowEnd)
		if err != nil {
			return nil, fmt.Errorf("computeWindow: %w", err)
		}

		if metrics.hasActivity() {
			report = append(report, *metrics)
		}

		windowEnd = windowEnd.AddDate(0, 0, -7)
		windowStart = windowStart.AddDate(0, 0, -7)
	}

	e.log.Debug("Weekly report computed", slog.Int("active_windows", len(report)))

	return report, nil
}

// computeWindow aggregates the seven metrics over [start, end], both bounds
// inclusive at date precision.
func (e *Engine) computeWindow(ctx context.Context, start, end time.Time) (*WindowMetrics, error) {
	// The storage query is half-open, so the upper bound is the day after the
	// inclusive window end.
	until := end.AddDate(0, 0, 1)

	windowUsers, err := e.storage.GetUsersCreatedBetween(ctx, start, until)
	if err != nil {
		return nil, fmt.Errorf("storage.GetUsersCreatedBetween: %w", err)
	}

	windowTxns, err := e.storage.GetTransactionsCreatedBetween(ctx, start, until)
	if err != nil {
		return nil, fmt.Errorf("storage.GetTransactionsCreatedBetween: %w", err)
	}

	registered := make(map[int64]struct{}, len(windowUsers))
	for _, usr := range windowUsers {
		registered[usr.ID()] = struct{}{}
	}

	metrics := &WindowMetrics{
		StartDate:                start,
		EndDate:                  end,
		NotRollbackedDepositSum:  decimal.Zero,
		NotRollbackedWithdrawSum: decimal.Zero,
		RegisteredUserCount:      len(windowUsers),
		TransactionsCount:        len(windowTxns),
	}

	depositUsers := make(map[int64]struct{})
	liveDepositUsers := make(map[int64]struct{})

	for _, txn := range windowTxns {
		_, isRegistered := registered[txn.UserID()]

		if txn.IsDeposit() && isRegistered {
			depositUsers[txn.UserID()] = struct{}{}
		}

		if txn.IsRollbacked() {
			continue
		}

		metrics.NotRollbackedTransactionsCount++

		usdAmount := txn.Amount().Abs().Mul(currency.RateToUSD(txn.Currency()))

		if txn.IsDeposit() {
			metrics.NotRollbackedDepositSum = metrics.NotRollbackedDepositSum.Add(usdAmount)

			if isRegistered {
				liveDepositUsers[txn.UserID()] = struct{}{}
			}
		} else {
			metrics.NotRollbackedWithdrawSum = metrics.NotRollbackedWithdrawSum.Add(usdAmount)
		}
	}

	metrics.RegisteredAndDepositUserCount = len(depositUsers)
	metrics.RegisteredAndNotRollbackedDepositUserCount = len(liveDepositUsers)

	return metrics, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
