package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/avmarkin/ledgersvc/internal/domain/balances"
	"github.com/avmarkin/ledgersvc/internal/domain/users"
	"github.com/avmarkin/ledgersvc/internal/storage"
)

var (
	ErrUserBlocked        = errors.New("user is blocked")
	ErrUserAlreadyBlocked = errors.New("user is already blocked")
	ErrUserAlreadyActive  = errors.New("user is already active")
)

// Directory manages user accounts and their seeded balances. Balance
// mutation is the transaction engine's job; the directory only reads them.
type Directory struct {
	log     *slog.Logger
	storage storage.Storage
}

type Option func(d *Directory)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Directory) {
		d.log = logger
	}
}

func NewDirectory(store storage.Storage, opts ...Option) *Directory {
	dir := &Directory{
		log:     slog.New(slog.NewJSONHandler(os.Stderr, nil)),
		storage: store,
	}

	for _, opt := range opts {
		opt(dir)
	}

	return dir
}

// Account is a user together with the balances it owns.
type Account struct {
	User     *users.User
	Balances []*balances.Balance
}

// CreateUser registers a new user and seeds one zero balance per supported
// currency within the same atomic unit as the user insert.
func (d *Directory) CreateUser(ctx context.Context, email, firstName, lastName, password string) (*users.User, error) {
	usr, err := users.NewUser(email, firstName, lastName, password)
	if err != nil {
		return nil, fmt.Errorf("users.NewUser: %w", err)
	}

	usr, err = d.storage.CreateUser(ctx, usr)
	if err != nil {
		return nil, fmt.Errorf("storage.CreateUser: %w", err)
	}

	d.log.Info("User registered", slog.Int64("user_id", usr.ID()), slog.String("email", usr.Email()))

	return usr, nil
}

func (d *Directory) GetUser(ctx context.Context, userID int64) (*users.User, error) {
	usr, err := d.storage.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetUser: %w", err)
	}

	return usr, nil
}

// GetActiveUser is the standard "must act as this user" guard: it fails when
// the user does not exist or is blocked.
func (d *Directory) GetActiveUser(ctx context.Context, userID int64) (*users.User, error) {
	usr, err := d.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if usr.IsBlocked() {
		return nil, ErrUserBlocked
	}

	return usr, nil
}

// GetActiveUserByEmail is the login-path variant of GetActiveUser.
func (d *Directory) GetActiveUserByEmail(ctx context.Context, email string) (*users.User, error) {
	usr, err := d.storage.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("storage.GetUserByEmail: %w", err)
	}

	if usr.IsBlocked() {
		return nil, ErrUserBlocked
	}

	return usr, nil
}

// ListAccounts returns all users with their balances, oldest first.
func (d *Directory) ListAccounts(ctx context.Context) ([]*Account, error) {
	usrs, err := d.storage.GetUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.GetUsers: %w", err)
	}

	accounts := make([]*Account, 0, len(usrs))

	for _, usr := range usrs {
		blncs, err := d.storage.GetUserBalances(ctx, usr.ID())
		if err != nil {
			return nil, fmt.Errorf("storage.GetUserBalances: %w", err)
		}

		accounts = append(accounts, &Account{User: usr, Balances: blncs})
	}

	return accounts, nil
}

func (d *Directory) GetUserBalances(ctx context.Context, userID int64) ([]*balances.Balance, error) {
	if _, err := d.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	blncs, err := d.storage.GetUserBalances(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetUserBalances: %w", err)
	}

	return blncs, nil
}

// UpdateStatus toggles a user between ACTIVE and BLOCKED. Setting the status
// a user already has is rejected, so every accepted call is a state change.
func (d *Directory) UpdateStatus(ctx context.Context, userID int64, status users.Status) (*users.User, error) {
	usr, err := d.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if usr.Status() == status {
		if status == users.StatusBlocked {
			return nil, ErrUserAlreadyBlocked
		}

		return nil, ErrUserAlreadyActive
	}

	usr, err = d.storage.UpdateUserStatus(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("storage.UpdateUserStatus: %w", err)
	}

	d.log.Info("User status updated",
		slog.Int64("user_id", userID),
		slog.String("status", status.String()),
	)

	return usr, nil
}

// UpdateRole changes the role claimed in tokens issued for the user.
func (d *Directory) UpdateRole(ctx context.Context, userID int64, role users.Role) (*users.User, error) {
	if _, err := d.GetActiveUser(ctx, userID); err != nil {
		return nil, err
	}

	usr, err := d.storage.UpdateUserRole(ctx, userID, role)
	if err != nil {
		return nil, fmt.Errorf("storage.UpdateUserRole: %w", err)
	}

	d.log.Info("User role updated",
		slog.Int64("user_id", userID),
		slog.String("role", role.String()),
	)

	return usr, nil
}
