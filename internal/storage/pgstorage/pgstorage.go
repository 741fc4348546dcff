package pgstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/avmarkin/ledgersvc/internal/domain/balances"
	"github.com/avmarkin/ledgersvc/internal/domain/currency"
	"github.com/avmarkin/ledgersvc/internal/domain/transactions"
	"github.com/avmarkin/ledgersvc/internal/domain/users"
	"github.com/avmarkin/ledgersvc/internal/storage"
	"github.com/avmarkin/ledgersvc/internal/storage/dbmodels"

	// Postgres driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

var _ storage.Storage = (*Storage)(nil)

type Storage struct {
	db *sql.DB
}

type Config struct {
	maxOpenConns    int
	maxIdleConns    int
	connMaxIdleTime time.Duration
	connMaxLifetime time.Duration
}

type Option func(s *Config)

func WithMaxOpenConns(conns int) Option {
	return func(c *Config) {
		c.maxOpenConns = conns
	}
}

func WithMaxIdleConns(conns int) Option {
	return func(c *Config) {
		c.maxIdleConns = conns
	}
}

func WithConnMaxIdleTime(idleTime time.Duration) Option {
	return func(c *Config) {
		c.connMaxIdleTime = idleTime
	}
}

func WithConnMaxLifetime(lifetime time.Duration) Option {
	return func(c *Config) {
		c.connMaxLifetime = lifetime
	}
}

func NewStorage(connStr string, opts ...Option) (*Storage, error) {
	cfg := &Config{
		maxOpenConns:    10,
		maxIdleConns:    5,
		connMaxIdleTime: 180 * time.Second,
		connMaxLifetime: 3600 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	db.SetMaxOpenConns(cfg.maxOpenConns)
	db.SetMaxIdleConns(cfg.maxIdleConns)
	db.SetConnMaxIdleTime(cfg.connMaxIdleTime)
	db.SetConnMaxLifetime(cfg.connMaxLifetime)

	return &Storage{
		db: db,
	}, nil
}

func (s *Storage) Bootstrap(ctx context.Context) error {
	provider, err := goose.NewProvider(
		goose.DialectPostgres,
		s.db,
		os.DirFS("internal/storage/pgstorage/migrations"),
	)
	if err != nil {
		return fmt.Errorf("goose.NewProvider: %w", err)
	}

	_, err = provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("provider.Up: %w", err)
	}

	return nil
}

func (s *Storage) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("db.Close: %w", err)
	}

	return nil
}

// isRetryableError checks if error is retryable.
func isRetryableError(err error) bool {
	// Connection refused error
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgerrcode.IsConnectionException(pgErr.Code) {
		return true
	}

	return false
}

// WithRetry retries operations in case of retryable errors.
func WithRetry(operation func() error) error {
	retryCount := 3

	var retryWaitTime time.Duration

	retryWaitInterval := 2

	var err error

	for i := 0; i < retryCount; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if isRetryableError(err) {
			retryWaitTime = time.Duration((i*retryWaitInterval + 1)) * time.Second // 1s, 3s, 5s, etc.

			time.Sleep(retryWaitTime)
		} else {
			return fmt.Errorf("%w", err)
		}
	}

	return fmt.Errorf("retry attempts exceeded: %w", err)
}

func (s *Storage) Ping(ctx context.Context) error {
	err := WithRetry(func() error {
		if err := s.db.PingContext(ctx); err != nil {
			return fmt.Errorf("db.PingContext: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func restoreUser(dbUser *dbmodels.User) *users.User {
	return users.RestoreUser(
		dbUser.ID,
		dbUser.Email,
		dbUser.FirstName,
		dbUser.LastName,
		dbUser.PasswordHash,
		users.Status(dbUser.Status),
		users.Role(dbUser.Role),
		dbUser.Created,
	)
}

func restoreTransaction(dbTxn *dbmodels.Transaction) *transactions.Transaction {
	return transactions.Restore(
		dbTxn.ID,
		dbTxn.UserID,
		currency.Currency(dbTxn.Currency),
		dbTxn.Amount,
		transactions.Status(dbTxn.Status),
		dbTxn.Created,
	)
}

func (s *Storage) CreateUser(ctx context.Context, usr *users.User) (*users.User, error) {
	dbUser := new(dbmodels.User)

	err := WithRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("db.BeginTx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		createUsrQuery := `INSERT INTO users (email, first_name, last_name, password_hash, status, role, created)
			VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created`

		row := tx.QueryRowContext(ctx, createUsrQuery,
			usr.Email(), usr.FirstName(), usr.LastName(), usr.PasswordHash(),
			usr.Status().String(), usr.Role().String(), usr.Created(),
		)

		if err := row.Scan(&dbUser.ID, &dbUser.Created); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
				return storage.ErrUserAlreadyExists
			}

			return fmt.Errorf("tx.QueryRowContext: %w", err)
		}

		createBalanceQuery := `INSERT INTO user_balance (user_id, currency, amount) VALUES ($1, $2, 0)`

		for _, cur := range currency.Currencies() {
			if _, err := tx.ExecContext(ctx, createBalanceQuery, dbUser.ID, cur.String()); err != nil {
				return fmt.Errorf("tx.ExecContext: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("tx.Commit: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	usr.SetID(dbUser.ID)

	return usr, nil
}

const getUserQuery = `SELECT id, email, first_name, last_name, password_hash, status, role, created FROM users`

func scanUser(row *sql.Row) (*dbmodels.User, error) {
	dbUser := new(dbmodels.User)

	err := row.Scan(
		&dbUser.ID, &dbUser.Email, &dbUser.FirstName, &dbUser.LastName,
		&dbUser.PasswordHash, &dbUser.Status, &dbUser.Role, &dbUser.Created,
	)
	if err != nil {
		return nil, err
	}

	return dbUser, nil
}

func (s *Storage) GetUser(ctx context.Context, userID int64) (*users.User, error) {
	var dbUser *dbmodels.User

	err := WithRetry(func() error {
		row := s.db.QueryRowContext(ctx, getUserQuery+` WHERE id = $1`, userID)

		usr, err := scanUser(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrUserNotFound
			}

			return fmt.Errorf("db.QueryRowContext: %w", err)
		}

		dbUser = usr

		return nil
	})
	if err != nil {
		return nil, err
	}

	return restoreUser(dbUser), nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	var dbUser *dbmodels.User

	err := WithRetry(func() error {
		row := s.db.QueryRowContext(ctx, getUserQuery+` WHERE email = $1`, email)

		usr, err := scanUser(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrUserNotFound
			}

			return fmt.Errorf("db.QueryRowContext: %w", err)
		}

		dbUser = usr

		return nil
	})
	if err != nil {
		return nil, err
	}

	return restoreUser(dbUser), nil
}

func (s *Storage) getUsers(ctx context.Context, query string, args ...any) ([]*users.User, error) {
	dbUsers := make([]*dbmodels.User, 0)

	err := WithRetry(func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("db.QueryContext: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			dbUser := new(dbmodels.User)

			if err := rows.Scan(
				&dbUser.ID, &dbUser.Email, &dbUser.FirstName, &dbUser.LastName,
				&dbUser.PasswordHash, &dbUser.Status, &dbUser.Role, &dbUser.Created,
			); err != nil {
				return fmt.Errorf("rows.Scan: %w", err)
			}

			dbUsers = append(dbUsers, dbUser)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	bUsers := make([]*users.User, 0, len(dbUsers))

	for _, dbUser := range dbUsers {
		bUsers = append(bUsers, restoreUser(dbUser))
	}

	return bUsers, nil
}

func (s *Storage) GetUsers(ctx context.Context) ([]*users.User, error) {
	return s.getUsers(ctx, getUserQuery+` ORDER BY created`)
}

func (s *Storage) GetUsersCreatedBetween(ctx context.Context, from, to time.Time) ([]*users.User, error) {
	return s.getUsers(ctx, getUserQuery+` WHERE created >= $1 AND created < $2 ORDER BY created`, from, to)
}

func (s *Storage) UpdateUserStatus(ctx context.Context, userID int64, status users.Status) (*users.User, error) {
	return s.updateUser(ctx, `UPDATE users SET status = $1 WHERE id = $2`, status.String(), userID)
}

func (s *Storage) UpdateUserRole(ctx context.Context, userID int64, role users.Role) (*users.User, error) {
	return s.updateUser(ctx, `UPDATE users SET role = $1 WHERE id = $2`, role.String(), userID)
}

func (s *Storage) updateUser(ctx context.Context, query string, value string, userID int64) (*users.User, error) {
	err := WithRetry(func() error {
		res, err := s.db.ExecContext(ctx, query, value, userID)
		if err != nil {
			return fmt.Errorf("db.ExecContext: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("res.RowsAffected: %w", err)
		}

		if affected == 0 {
			return storage.ErrUserNotFound
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetUser(ctx, userID)
}

func (s *Storage) UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error {
	err := WithRetry(func() error {
		res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, userID)
		if err != nil {
			return fmt.Errorf("db.ExecContext: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("res.RowsAffected: %w", err)
		}

		if affected == 0 {
			return storage.ErrUserNotFound
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func (s *Storage) GetUserBalance(ctx context.Context, userID int64, cur currency.Currency) (*balances.Balance, error) {
	dbBalance := new(dbmodels.UserBalance)

	err := WithRetry(func() error {
		query := `SELECT id, user_id, currency, amount, created FROM user_balance WHERE user_id = $1 AND currency = $2`

		row := s.db.QueryRowContext(ctx, query, userID, cur.String())
		if err := row.Scan(
			&dbBalance.ID, &dbBalance.UserID, &dbBalance.Currency, &dbBalance.Amount, &dbBalance.Created,
		); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrUserBalanceNotFound
			}

			return fmt.Errorf("db.QueryRowContext: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return balances.RestoreBalance(
		dbBalance.ID, dbBalance.UserID, currency.Currency(dbBalance.Currency), dbBalance.Amount, dbBalance.Created,
	), nil
}

func (s *Storage) GetUserBalances(ctx context.Context, userID int64) ([]*balances.Balance, error) {
	dbBalances := make([]*dbmodels.UserBalance, 0)

	err := WithRetry(func() error {
		query := `SELECT id, user_id, currency, amount, created FROM user_balance WHERE user_id = $1 ORDER BY currency`

		rows, err := s.db.QueryContext(ctx, query, userID)
		if err != nil {
			return fmt.Errorf("db.QueryContext: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			dbBalance := new(dbmodels.UserBalance)

			if err := rows.Scan(
				&dbBalance.ID, &dbBalance.UserID, &dbBalance.Currency, &dbBalance.Amount, &dbBalance.Created,
			); err != nil {
				return fmt.Errorf("rows.Scan: %w", err)
			}

			dbBalances = append(dbBalances, dbBalance)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	bBalances := make([]*balances.Balance, 0, len(dbBalances))

	for _, dbBalance := range dbBalances {
		bBalances = append(bBalances, balances.RestoreBalance(
			dbBalance.ID, dbBalance.UserID, currency.Currency(dbBalance.Currency), dbBalance.Amount, dbBalance.Created,
		))
	}

	return bBalances, nil
}

const getTransactionQuery = `SELECT id, user_id, currency, amount, status, created FROM transactions`

func (s *Storage) GetTransaction(ctx context.Context, transactionID int64) (*transactions.Transaction, error) {
	dbTxn := new(dbmodels.Transaction)

	err := WithRetry(func() error {
		row := s.db.QueryRowContext(ctx, getTransactionQuery+` WHERE id = $1`, transactionID)

		if err := row.Scan(
			&dbTxn.ID, &dbTxn.UserID, &dbTxn.Currency, &dbTxn.Amount, &dbTxn.Status, &dbTxn.Created,
		); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrTransactionNotFound
			}

			return fmt.Errorf("db.QueryRowContext: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return restoreTransaction(dbTxn), nil
}

func (s *Storage) getTransactions(ctx context.Context, query string, args ...any) ([]*transactions.Transaction, error) {
	dbTxns := make([]*dbmodels.Transaction, 0)

	err := WithRetry(func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("db.QueryContext: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			dbTxn := new(dbmodels.Transaction)

			if err := rows.Scan(
				&dbTxn.ID, &dbTxn.UserID, &dbTxn.Currency, &dbTxn.Amount, &dbTxn.Status, &dbTxn.Created,
			); err != nil {
				return fmt.Errorf("rows.Scan: %w", err)
			}

			dbTxns = append(dbTxns, dbTxn)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	bTxns := make([]*transactions.Transaction, 0, len(dbTxns))

	for _, dbTxn := range dbTxns {
		bTxns = append(bTxns, restoreTransaction(dbTxn))
	}

	return bTxns, nil
}

func (s *Storage) GetTransactions(ctx context.Context, statuses ...transactions.Status) ([]*transactions.Transaction, error) {
	query := getTransactionQuery

	if len(statuses) > 0 {
		strStatuses := make([]string, 0, len(statuses))
		for _, status := range statuses {
			strStatuses = append(strStatuses, status.String())
		}

		query += ` WHERE status = ANY($1) ORDER BY created`

		return s.getTransactions(ctx, query, pq.Array(strStatuses))
	}

	query += ` ORDER BY created`

	return s.getTransactions(ctx, query)
}

func (s *Storage) GetTransactionsByUserID(ctx context.Context, userID int64) ([]*transactions.Transaction, error) {
	return s.getTransactions(ctx, getTransactionQuery+` WHERE user_id = $1 ORDER BY created`, userID)
}

func (s *Storage) GetTransactionsCreatedBetween(ctx context.Context, from, to time.Time) ([]*transactions.Transaction, error) {
	return s.getTransactions(ctx, getTransactionQuery+` WHERE created >= $1 AND created < $2 ORDER BY created`, from, to)
}

func (s *Storage) ApplyTransaction(ctx context.Context, txn *transactions.Transaction) (*transactions.Transaction, error) {
	dbTxn := new(dbmodels.Transaction)

	err := WithRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("db.BeginTx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		dbBalance := new(dbmodels.UserBalance)

		// Lock the balance row so concurrent deltas against the same
		// (user, currency) pair serialize on the non-negativity check.
		row := tx.QueryRowContext(ctx,
			`SELECT id, amount FROM user_balance WHERE user_id = $1 AND currency = $2 FOR UPDATE`,
			txn.UserID(), txn.Currency().String(),
		)

		if err := row.Scan(&dbBalance.ID, &dbBalance.Amount); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrUserBalanceNotFound
			}

			return fmt.Errorf("tx.QueryRowContext: %w", err)
		}

		newAmount := dbBalance.Amount.Add(txn.Amount())
		if newAmount.IsNegative() {
			return storage.ErrNegativeBalance
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE user_balance SET amount = $1 WHERE id = $2`, newAmount, dbBalance.ID,
		); err != nil {
			return fmt.Errorf("tx.ExecContext: %w", err)
		}

		row = tx.QueryRowContext(ctx,
			`INSERT INTO transactions (user_id, currency, amount, status, created)
			VALUES ($1, $2, $3, $4, $5) RETURNING id, created`,
			txn.UserID(), txn.Currency().String(), txn.Amount(), txn.Status().String(), txn.Created(),
		)

		if err := row.Scan(&dbTxn.ID, &dbTxn.Created); err != nil {
			return fmt.Errorf("tx.QueryRowContext: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("tx.Commit: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	txn.SetID(dbTxn.ID)

	return txn, nil
}

func (s *Storage) RollbackTransaction(ctx context.Context, transactionID int64) (*transactions.Transaction, error) {
	dbTxn := new(dbmodels.Transaction)

	err := WithRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("db.BeginTx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		// Lock the ledger entry and re-check its status inside the unit of
		// work so a concurrent rollback cannot commit a second reversal.
		row := tx.QueryRowContext(ctx, getTransactionQuery+` WHERE id = $1 FOR UPDATE`, transactionID)

		if err := row.Scan(
			&dbTxn.ID, &dbTxn.UserID, &dbTxn.Currency, &dbTxn.Amount, &dbTxn.Status, &dbTxn.Created,
		); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrTransactionNotFound
			}

			return fmt.Errorf("tx.QueryRowContext: %w", err)
		}

		if transactions.Status(dbTxn.Status) == transactions.StatusRollbacked {
			return storage.ErrTransactionAlreadyRollbacked
		}

		dbBalance := new(dbmodels.UserBalance)

		row = tx.QueryRowContext(ctx,
			`SELECT id, amount FROM user_balance WHERE user_id = $1 AND currency = $2 FOR UPDATE`,
			dbTxn.UserID, dbTxn.Currency,
		)

		if err := row.Scan(&dbBalance.ID, &dbBalance.Amount); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrUserBalanceNotFound
			}

			return fmt.Errorf("tx.QueryRowContext: %w", err)
		}

		newAmount := dbBalance.Amount.Sub(dbTxn.Amount)
		if newAmount.IsNegative() {
			return storage.ErrNegativeBalance
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE user_balance SET amount = $1 WHERE id = $2`, newAmount, dbBalance.ID,
		); err != nil {
			return fmt.Errorf("tx.ExecContext: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions SET status = $1 WHERE id = $2`,
			transactions.StatusRollbacked.String(), dbTxn.ID,
		); err != nil {
			return fmt.Errorf("tx.ExecContext: %w", err)
		}

		dbTxn.Status = transactions.StatusRollbacked.String()

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("tx.Commit: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return restoreTransaction(dbTxn), nil
}
