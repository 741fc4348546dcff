package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avmarkin/ledgersvc/internal/analytics"
	"github.com/avmarkin/ledgersvc/internal/auth"
	"github.com/avmarkin/ledgersvc/internal/config"
	"github.com/avmarkin/ledgersvc/internal/directory"
	"github.com/avmarkin/ledgersvc/internal/httpclient"
	"github.com/avmarkin/ledgersvc/internal/kvstore"
	"github.com/avmarkin/ledgersvc/internal/kvstore/memkv"
	"github.com/avmarkin/ledgersvc/internal/kvstore/rediskv"
	"github.com/avmarkin/ledgersvc/internal/ledger"
	"github.com/avmarkin/ledgersvc/internal/logger"
	"github.com/avmarkin/ledgersvc/internal/loginguard"
	"github.com/avmarkin/ledgersvc/internal/notifier"
	"github.com/avmarkin/ledgersvc/internal/passreset"
	"github.com/avmarkin/ledgersvc/internal/server"
	"github.com/avmarkin/ledgersvc/internal/server/handlers"
	"github.com/avmarkin/ledgersvc/internal/server/router"
	"github.com/avmarkin/ledgersvc/internal/storage"
	"github.com/avmarkin/ledgersvc/internal/storage/inmemory"
	"github.com/avmarkin/ledgersvc/internal/storage/pgstorage"
)

type Application struct {
	log      *slog.Logger
	server   *server.Server
	reporter *analytics.Reporter
	storage  storage.Storage
	kvstore  kvstore.Store
}

func New() (*Application, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("config.NewConfig: %w", err)
	}

	logLevel, err := logger.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger.ParseLogLevel: %w", err)
	}

	logg := logger.NewLogger(
		logger.WithLevel(logLevel),
		logger.WithFormat(logger.LogFormatJSON),
		logger.WithAddSource(false),
	)

	store, err := newStorage(cfg, logg)
	if err != nil {
		return nil, fmt.Errorf("newStorage: %w", err)
	}

	kv, err := newKVStore(cfg, logg)
	if err != nil {
		return nil, fmt.Errorf("newKVStore: %w", err)
	}

	var notif notifier.Notifier = notifier.NewLogNotifier(logg)

	if cfg.MailGatewayURI != "" {
		notif = notifier.NewMailGateway(
			notifier.WithLogger(logg),
			notifier.WithClient(httpclient.New(httpclient.WithBaseURL(cfg.MailGatewayURI))),
		)
	}

	dir := directory.NewDirectory(store, directory.WithLogger(logg))

	engine := ledger.NewEngine(store, ledger.WithLogger(logg))

	reporter := analytics.NewReporter(
		analytics.NewEngine(store, analytics.WithLogger(logg)),
		kv,
		analytics.WithReporterLogger(logg),
		analytics.WithInterval(cfg.ReportInterval),
	)

	guard := loginguard.NewGuard(kv,
		loginguard.WithMaxTries(cfg.LoginAttemptLimit),
		loginguard.WithTTL(cfg.LoginAttemptTTL),
	)

	reset := passreset.NewService(store, kv, notif,
		passreset.WithLogger(logg),
		passreset.WithCodeTTL(cfg.ResetCodeTTL),
	)

	h := handlers.NewHandlers(store, dir, engine, reporter, guard, reset,
		handlers.WithLogger(logg),
		handlers.WithAuth(auth.NewJWTAuth([]byte(cfg.JWTSecretKey))),
	)

	r := router.NewRouter(h, router.WithSecret([]byte(cfg.JWTSecretKey)))

	srv := server.NewServer(r,
		server.WithServerAddr(cfg.ServerAddr),
		server.WithLogger(logg),
	)

	return &Application{
		log:      logg,
		server:   srv,
		reporter: reporter,
		storage:  store,
		kvstore:  kv,
	}, nil
}

// newStorage picks the postgres backend when a database URI is configured and
// falls back to the in-memory one otherwise.
func newStorage(cfg config.Config, logg *slog.Logger) (storage.Storage, error) {
	if cfg.DatabaseURI == "" {
		logg.Info("Database URI is not configured, using in-memory storage")

		return storage.NewStorage(inmemory.NewStorage()), nil
	}

	pgstore, err := pgstorage.NewStorage(cfg.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("pgstorage.NewStorage: %w", err)
	}

	if err := pgstore.Bootstrap(context.Background()); err != nil {
		return nil, fmt.Errorf("pgstorage.Bootstrap: %w", err)
	}

	return storage.NewStorage(pgstore), nil
}

// newKVStore picks redis when an address is configured and falls back to the
// in-memory store otherwise.
func newKVStore(cfg config.Config, logg *slog.Logger) (kvstore.Store, error) {
	if cfg.RedisAddr == "" {
		logg.Info("Redis address is not configured, using in-memory key-value store")

		return memkv.NewStore(), nil
	}

	rdb, err := rediskv.NewStore(cfg.RedisAddr, rediskv.WithPassword(cfg.RedisPassword))
	if err != nil {
		return nil, fmt.Errorf("rediskv.NewStore: %w", err)
	}

	return rdb, nil
}

func (a *Application) Run() error {
	errChan := make(chan error, 1)

	go func() {
		if err := a.server.Start(); err != nil {
			errChan <- fmt.Errorf("server.Start: %w", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := a.reporter.Run(ctx); err != nil {
			errChan <- fmt.Errorf("reporter.Run: %w", err)
		}
	}()

	// Graceful shutdown handler
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case err := <-errChan:
			return err

		case <-quit:
			a.log.Info("Gracefully shutting down application...")

			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()

			if err := a.server.Shutdown(shutdownCtx); err != nil {
				a.log.Error("server.Shutdown", slog.Any("error", err))
			}

			a.close()

			return nil
		}
	}
}

func (a *Application) close() {
	if err := a.storage.Close(); err != nil {
		a.log.Error("storage.Close", slog.Any("error", err))
	}

	if err := a.kvstore.Close(); err != nil {
		a.log.Error("kvstore.Close", slog.Any("error", err))
	}
}
