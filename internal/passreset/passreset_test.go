package passreset_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/avmarkin/ledgersvc/internal/domain/users"
	"github.com/avmarkin/ledgersvc/internal/kvstore"
	"github.com/avmarkin/ledgersvc/internal/kvstore/memkv"
	"github.com/avmarkin/ledgersvc/internal/passreset"
	"github.com/avmarkin/ledgersvc/internal/storage"
	"github.com/avmarkin/ledgersvc/internal/storage/inmemory"
)

// captureNotifier records sent reset codes so tests can complete the flow.
type captureNotifier struct {
	codes chan string
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{codes: make(chan string, 1)}
}

func (n *captureNotifier) Send(_ context.Context, _, _ string, templateData map[string]string) error {
	n.codes <- templateData["reset_code"]

	return nil
}

func (n *captureNotifier) waitForCode(t *testing.T) string {
	t.Helper()

	select {
	case code := <-n.codes:
		return code
	case <-time.After(2 * time.Second):
		t.Fatal("no reset code was sent")

		return ""
	}
}

type testEnv struct {
	svc     *passreset.Service
	store   storage.Storage
	kv      kvstore.Store
	notif   *captureNotifier
	resetAt func(time.Time)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	kv := memkv.NewStore(memkv.WithNow(func() time.Time { return now }))

	store := storage.NewStorage(inmemory.NewStorage())
	t.Cleanup(func() { store.Close() })

	notif := newCaptureNotifier()

	svc := passreset.NewService(store, kv, notif, passreset.WithCodeTTL(10*time.Minute))

	return &testEnv{
		svc:     svc,
		store:   store,
		kv:      kv,
		notif:   notif,
		resetAt: func(at time.Time) { now = at },
	}
}

func registerUser(t *testing.T, store storage.Storage, email, password string) *users.User {
	t.Helper()

	usr, err := users.NewUser(email, "Test", "User", password)
	require.NoError(t, err)

	usr, err = store.CreateUser(context.Background(), usr)
	require.NoError(t, err)

	return usr
}

func TestRequestAndConfirm(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	usr := registerUser(t, env.store, "user@example.com", "oldpassword")

	require.NoError(t, env.svc.Request(ctx, "user@example.com"))

	code := env.notif.waitForCode(t)
	require.Len(t, code, 6)

	require.NoError(t, env.svc.Confirm(ctx, "user@example.com", code, "newpassword"))

	updated, err := env.store.GetUser(ctx, usr.ID())
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash()), []byte("newpassword")))

	// The code is single-use.
	assert.ErrorIs(t, env.svc.Confirm(ctx, "user@example.com", code, "anotherpassword"), passreset.ErrNoCode)
}

func TestRequest_UnknownEmailIsSilent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.NoError(t, env.svc.Request(ctx, "missing@example.com"))

	_, err := env.kv.Get(ctx, "reset_code:missing@example.com")
	assert.ErrorIs(t, err, kvstore.ErrKeyNotFound)
}

func TestRequest_BlockedUserIsSilent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	usr := registerUser(t, env.store, "user@example.com", "password")

	_, err := env.store.UpdateUserStatus(ctx, usr.ID(), users.StatusBlocked)
	require.NoError(t, err)

	assert.NoError(t, env.svc.Request(ctx, "user@example.com"))

	_, err = env.kv.Get(ctx, "reset_code:user@example.com")
	assert.ErrorIs(t, err, kvstore.ErrKeyNotFound)
}

func TestConfirm_WrongCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	registerUser(t, env.store, "user@example.com", "oldpassword")

	require.NoError(t, env.svc.Request(ctx, "user@example.com"))
	code := env.notif.waitForCode(t)

	wrongCode := "000000"
	if code == wrongCode {
		wrongCode = "111111"
	}

	err := env.svc.Confirm(ctx, "user@example.com", wrongCode, "newpassword")
	assert.ErrorIs(t, err, passreset.ErrCodeInvalid)
}

func TestConfirm_WithoutRequest(t *testing.T) {
	env := newTestEnv(t)

	registerUser(t, env.store, "user@example.com", "oldpassword")

	err := env.svc.Confirm(context.Background(), "user@example.com", "123456", "newpassword")
	assert.ErrorIs(t, err, passreset.ErrNoCode)
}

func TestConfirm_ExpiredCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	registerUser(t, env.store, "user@example.com", "oldpassword")

	require.NoError(t, env.svc.Request(ctx, "user@example.com"))
	code := env.notif.waitForCode(t)

	env.resetAt(time.Date(2025, time.June, 15, 12, 11, 0, 0, time.UTC))

	err := env.svc.Confirm(ctx, "user@example.com", code, "newpassword")
	assert.ErrorIs(t, err, passreset.ErrNoCode)
}
