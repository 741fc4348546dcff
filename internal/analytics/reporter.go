package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/avmarkin/ledgersvc/internal/kvstore"
)

// reportKey is where the latest weekly report is cached.
const reportKey = "analytics:weekly_report"

// Reporter periodically recomputes the weekly report and caches it in the
// key-value store, so serving the report does not touch the ledger's write
// path on every request.
type Reporter struct {
	log      *slog.Logger
	engine   *Engine
	store    kvstore.Store
	interval time.Duration
}

type ReporterOption func(r *Reporter)

func WithReporterLogger(logger *slog.Logger) ReporterOption {
	return func(r *Reporter) {
		r.log = logger.With(slog.String("module", "analytics_reporter"))
	}
}

func WithInterval(interval time.Duration) ReporterOption {
	return func(r *Reporter) {
		r.interval = interval
	}
}

func NewReporter(engine *Engine, store kvstore.Store, opts ...ReporterOption) *Reporter {
	reporter := &Reporter{
		log:      slog.New(slog.NewJSONHandler(os.Stderr, nil)),
		engine:   engine,
		store:    store,
		interval: 1 * time.Hour,
	}

	for _, opt := range opts {
		opt(reporter)
	}

	return reporter
}

// Run refreshes the cached report on a fixed interval until the context is done.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("Start analytics reporter daemon")

	for {
		select {
		case <-ctx.Done():
			r.log.Info("Context done, stopping analytics reporter daemon")

			return nil

		case <-ticker.C:
			if _, err := r.Refresh(ctx); err != nil {
				r.log.Error("reporter.Refresh", slog.Any("error", err))
			}
		}
	}
}

// Refresh recomputes the weekly report and replaces the cached copy.
func (r *Reporter) Refresh(ctx context.Context) ([]WindowMetrics, error) {
	report, err := r.engine.ComputeWeeklyMetrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine.ComputeWeeklyMetrics: %w", err)
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal: %w", err)
	}

	if err := r.store.Set(ctx, reportKey, string(payload), 2*r.interval); err != nil {
		return nil, fmt.Errorf("store.Set: %w", err)
	}

	return report, nil
}

// Report returns the cached weekly report, recomputing it on a cache miss.
func (r *Reporter) Report(ctx context.Context) ([]WindowMetrics, error) {
	payload, err := r.store.Get(ctx, reportKey)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return r.Refresh(ctx)
		}

		return nil, fmt.Errorf("store.Get: %w", err)
	}

	var report []WindowMetrics

	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("json.Unmarshal: %w", err)
	}

	return report, nil
}
