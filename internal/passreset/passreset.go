package passreset

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"time"

	"github.com/avmarkin/ledgersvc/internal/domain/users"
	"github.com/avmarkin/ledgersvc/internal/kvstore"
	"github.com/avmarkin/ledgersvc/internal/notifier"
	"github.com/avmarkin/ledgersvc/internal/storage"
)

var (
	ErrNoCode      = errors.New("no password reset code requested")
	ErrCodeInvalid = errors.New("password reset code is invalid")
)

const codeLength = 6

// Service implements the password-reset flow: a short-lived numeric code is
// stored in the key-value store and mailed out; confirming with the code
// replaces the user's password hash.
type Service struct {
	log      *slog.Logger
	storage  storage.Storage
	store    kvstore.Store
	notifier notifier.Notifier
	codeTTL  time.Duration
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.log = logger
	}
}

func WithCodeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.codeTTL = ttl
	}
}

func NewService(store storage.Storage, kv kvstore.Store, notif notifier.Notifier, opts ...Option) *Service {
	svc := &Service{
		log:      slog.New(slog.NewJSONHandler(os.Stderr, nil)),
		storage:  store,
		store:    kv,
		notifier: notif,
		codeTTL:  10 * time.Minute,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc
}

func resetKey(email string) string {
	return "reset_code:" + email
}

// Request generates and mails a reset code for the email. Unknown or blocked
// emails are not reported to the caller, to avoid account enumeration.
func (s *Service) Request(ctx context.Context, email string) error {
	usr, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil
		}

		return fmt.Errorf("storage.GetUserByEmail: %w", err)
	}

	if usr.IsBlocked() {
		return nil
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generateCode: %w", err)
	}

	if err := s.store.Set(ctx, resetKey(email), code, s.codeTTL); err != nil {
		return fmt.Errorf("store.Set: %w", err)
	}

	go func() {
		if err := s.notifier.Send(context.WithoutCancel(ctx), email, "Reset Password",
			map[string]string{"reset_code": code},
		); err != nil {
			s.log.Error("notifier.Send", slog.Any("error", err))
		}
	}()

	return nil
}

// Confirm verifies the code and replaces the user's password.
func (s *Service) Confirm(ctx context.Context, email, code, password string) error {
	storedCode, err := s.store.Get(ctx, resetKey(email))
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return ErrNoCode
		}

		return fmt.Errorf("store.Get: %w", err)
	}

	if storedCode != code {
		return ErrCodeInvalid
	}

	usr, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("storage.GetUserByEmail: %w", err)
	}

	passwordHash, err := users.HashPassword(password)
	if err != nil {
		return fmt.Errorf("users.HashPassword: %w", err)
	}

	if err := s.storage.UpdateUserPassword(ctx, usr.ID(), passwordHash); err != nil {
		return fmt.Errorf("storage.UpdateUserPassword: %w", err)
	}

	if err := s.store.Delete(ctx, resetKey(email)); err != nil {
		return fmt.Errorf("store.Delete: %w", err)
	}

	return nil
}

func generateCode() (string, error) {
	code := make([]byte, codeLength)

	for i := range code {
		digit, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("rand.Int: %w", err)
		}

		code[i] = byte('0' + digit.Int64())
	}

	return string(code), nil
}
