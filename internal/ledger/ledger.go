package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"

	"github.com/avmarkin/ledgersvc/internal/domain/currency"
	"github.com/avmarkin/ledgersvc/internal/domain/transactions"
	"github.com/avmarkin/ledgersvc/internal/storage"
)

var (
	// ErrUserBlocked is returned when a blocked user is the subject of a
	// create or rollback request.
	ErrUserBlocked = errors.New("user is blocked")

	// ErrTransactionNotOwned is returned when the rollback target belongs to
	// another user.
	ErrTransactionNotOwned = errors.New("transaction does not belong to user")
)

// Engine executes and reverses ledger transactions. It holds no state of its
// own; every call validates against data fetched fresh from the storage, and
// the balance mutation plus ledger write commit as one atomic unit inside the
// storage contract.
type Engine struct {
	log     *slog.Logger
	storage storage.Storage
}

type Option func(e *Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.log = logger
	}
}

func NewEngine(store storage.Storage, opts ...Option) *Engine {
	engine := &Engine{
		log:     slog.New(slog.NewJSONHandler(os.Stderr, nil)),
		storage: store,
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// CreateTransaction applies a signed amount to the user's balance in the
// given currency and records the ledger entry. A positive amount deposits,
// a negative amount withdraws; the resulting balance may not go below zero.
func (e *Engine) CreateTransaction(
	ctx context.Context, userID int64, cur currency.Currency, amount decimal.Decimal,
) (*transactions.Transaction, error) {
	usr, err := e.storage.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetUser: %w", err)
	}

	if usr.IsBlocked() {
		return nil, ErrUserBlocked
	}

	txn, err := transactions.New(userID, cur, amount)
	if err != nil {
		return nil, fmt.Errorf("transactions.New: %w", err)
	}

	txn, err = e.storage.ApplyTransaction(ctx, txn)
	if err != nil {
		return nil, fmt.Errorf("storage.ApplyTransaction: %w", err)
	}

	e.log.Info("Transaction processed",
		slog.Int64("transaction_id", txn.ID()),
		slog.Int64("user_id", userID),
		slog.String("currency", cur.String()),
		slog.String("amount", amount.String()),
	)

	return txn, nil
}

// RollbackTransaction reverses a previously processed transaction: the
// original amount is backed out of the balance and the entry is terminally
// marked ROLLBACKED. A transaction can be rolled back at most once.
func (e *Engine) RollbackTransaction(ctx context.Context, userID, transactionID int64) (*transactions.Transaction, error) {
	usr, err := e.storage.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetUser: %w", err)
	}

	if usr.IsBlocked() {
		return nil, ErrUserBlocked
	}

	txn, err := e.storage.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetTransaction: %w", err)
	}

	if txn.UserID() != userID {
		return nil, ErrTransactionNotOwned
	}

	if txn.IsRollbacked() {
		return nil, fmt.Errorf("storage.GetTransaction: %w", storage.ErrTransactionAlreadyRollbacked)
	}

	// The storage re-checks the status inside its unit of work; this guard
	// only short-circuits the common case before taking locks.
	txn, err = e.storage.RollbackTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("storage.RollbackTransaction: %w", err)
	}

	e.log.Info("Transaction rollbacked",
		slog.Int64("transaction_id", txn.ID()),
		slog.Int64("user_id", userID),
		slog.String("currency", txn.Currency().String()),
		slog.String("amount", txn.Amount().String()),
	)

	return txn, nil
}
