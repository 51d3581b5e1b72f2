// ABOUTME: Tests for the identity provider
// ABOUTME: Covers the validation gate, distinguished errors, and session lifecycle

package identity

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlor-chat/parlor/internal/store"
)

// countingStore wraps a UserStore and records how many provider calls
// reach storage, so tests can assert the validation gate holds.
type countingStore struct {
	UserStore
	createUserCalls     int
	getUserByEmailCalls int
}

func (c *countingStore) CreateUser(ctx context.Context, user *store.User) error {
	c.createUserCalls++
	return c.UserStore.CreateUser(ctx, user)
}

func (c *countingStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	c.getUserByEmailCalls++
	return c.UserStore.GetUserByEmail(ctx, email)
}

func newTestProvider(t *testing.T) (*Provider, *countingStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	counting := &countingStore{UserStore: s}
	tokens := NewJWTCodec([]byte("test-secret"))
	return New(counting, tokens, time.Hour, nil), counting
}

func TestProvider_Register(t *testing.T) {
	p, counting := newTestProvider(t)
	ctx := context.Background()

	user, err := p.Register(ctx, "alice@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, "hunter22", user.PasswordHash)
	assert.Equal(t, 1, counting.createUserCalls, "valid input makes exactly one provider call")
}

func TestProvider_Register_EmailInUse(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	_, err := p.Register(ctx, "alice@example.com", "hunter22")
	require.NoError(t, err)

	_, err = p.Register(ctx, "alice@example.com", "different1")
	assert.ErrorIs(t, err, ErrEmailInUse)
}

func TestProvider_Register_ValidationBlocksProviderCall(t *testing.T) {
	p, counting := newTestProvider(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"empty email", "", "hunter22"},
		{"no at sign", "alice.example.com", "hunter22"},
		{"no dot after at", "alice@example", "hunter22"},
		{"space in local part", "al ice@example.com", "hunter22"},
		{"empty password", "alice@example.com", ""},
		{"short password", "alice@example.com", "abcde"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Register(ctx, tc.email, tc.password)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}

	assert.Equal(t, 0, counting.createUserCalls, "rejected input must not reach the store")
}

func TestProvider_Login(t *testing.T) {
	p, counting := newTestProvider(t)
	ctx := context.Background()

	registered, err := p.Register(ctx, "bob@example.com", "secret-password")
	require.NoError(t, err)

	user, session, err := p.Login(ctx, "bob@example.com", "secret-password")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.NotEmpty(t, session.ID)
	assert.True(t, session.ExpiresAt.After(time.Now()))
	assert.Equal(t, 1, counting.getUserByEmailCalls)
}

func TestProvider_Login_InvalidCredential(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	_, err := p.Register(ctx, "carol@example.com", "secret-password")
	require.NoError(t, err)

	// Wrong password and unknown email fail identically
	_, _, err = p.Login(ctx, "carol@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, _, err = p.Login(ctx, "nobody@example.com", "secret-password")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestProvider_Login_ValidationBlocksProviderCall(t *testing.T) {
	p, counting := newTestProvider(t)
	ctx := context.Background()

	_, _, err := p.Login(ctx, "not-an-email", "secret-password")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, _, err = p.Login(ctx, "carol@example.com", "short")
	assert.ErrorAs(t, err, &verr)

	assert.Equal(t, 0, counting.getUserByEmailCalls)
}

func TestProvider_SessionLifecycle(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	registered, err := p.Register(ctx, "dave@example.com", "secret-password")
	require.NoError(t, err)

	_, session, err := p.Login(ctx, "dave@example.com", "secret-password")
	require.NoError(t, err)

	resolved, err := p.ResolveSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, resolved.ID)

	require.NoError(t, p.Logout(ctx, session.ID))
	_, err = p.ResolveSession(ctx, session.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Logging out an already-removed session is fine
	assert.NoError(t, p.Logout(ctx, session.ID))
}

func TestProvider_TokenRoundTrip(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	registered, err := p.Register(ctx, "erin@example.com", "secret-password")
	require.NoError(t, err)

	token, err := p.IssueToken(registered)
	require.NoError(t, err)

	resolved, err := p.ResolveToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, resolved.ID)

	_, err = p.ResolveToken(ctx, "garbage")
	assert.Error(t, err)
}
