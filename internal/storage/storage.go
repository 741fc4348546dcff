package storage

import (
	"context"
	"errors"
	"time"

	"github.com/avmarkin/ledgersvc/internal/domain/balances"
	"github.com/avmarkin/ledgersvc/internal/domain/currency"
	"github.com/avmarkin/ledgersvc/internal/domain/transactions"
	"github.com/avmarkin/ledgersvc/internal/domain/users"
)

var (
	ErrUserAlreadyExists            = errors.New("user already exists")
	ErrUserNotFound                 = errors.New("user not found")
	ErrUserBalanceNotFound          = errors.New("user balance not found")
	ErrNegativeBalance              = errors.New("resulting balance is negative")
	ErrTransactionNotFound          = errors.New("transaction not found")
	ErrTransactionAlreadyRollbacked = errors.New("transaction already rollbacked")
)

type UserStorage interface {
	// CreateUser inserts the user and seeds one zero balance per supported
	// currency within the same atomic unit.
	CreateUser(ctx context.Context, usr *users.User) (*users.User, error)
	GetUser(ctx context.Context, userID int64) (*users.User, error)
	GetUserByEmail(ctx context.Context, email string) (*users.User, error)
	GetUsers(ctx context.Context) ([]*users.User, error)
	GetUsersCreatedBetween(ctx context.Context, from, to time.Time) ([]*users.User, error)
	UpdateUserStatus(ctx context.Context, userID int64, status users.Status) (*users.User, error)
	UpdateUserRole(ctx context.Context, userID int64, role users.Role) (*users.User, error)
	UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error
}

type BalanceStorage interface {
	GetUserBalance(ctx context.Context, userID int64, cur currency.Currency) (*balances.Balance, error)
	GetUserBalances(ctx context.Context, userID int64) ([]*balances.Balance, error)
}

type TransactionStorage interface {
	GetTransaction(ctx context.Context, transactionID int64) (*transactions.Transaction, error)
	GetTransactions(ctx context.Context, statuses ...transactions.Status) ([]*transactions.Transaction, error)
	GetTransactionsByUserID(ctx context.Context, userID int64) ([]*transactions.Transaction, error)
	GetTransactionsCreatedBetween(ctx context.Context, from, to time.Time) ([]*transactions.Transaction, error)

	// ApplyTransaction applies the entry's delta to the matching balance row
	// and inserts the entry, both within one atomic unit. The balance read and
	// write are protected against concurrent lost updates. Fails with
	// ErrNegativeBalance without persisting anything if the delta would take
	// the balance below zero.
	ApplyTransaction(ctx context.Context, txn *transactions.Transaction) (*transactions.Transaction, error)

	// RollbackTransaction reverses the entry's effect on the balance and marks
	// it ROLLBACKED within one atomic unit. The already-rollbacked check is
	// re-validated inside the unit so two concurrent rollbacks cannot both
	// commit a reversal.
	RollbackTransaction(ctx context.Context, transactionID int64) (*transactions.Transaction, error)
}

type Storage interface {
	UserStorage
	BalanceStorage
	TransactionStorage
	Close() error
	Ping(ctx context.Context) error
}

func NewStorage(store Storage) Storage {
	return store
}
