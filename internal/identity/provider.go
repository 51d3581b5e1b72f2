// ABOUTME: Identity provider boundary: register, login, logout, session resolution
// ABOUTME: Distinguishes invalid-credential and email-in-use from generic failures

package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/parlor-chat/parlor/internal/store"
)

// Provider errors. Callers distinguish exactly these two cases; every
// other failure is generic.
var (
	ErrInvalidCredential = errors.New("invalid email or password")
	ErrEmailInUse        = store.ErrEmailInUse
)

// dummyHash is compared against when the account does not exist, so a
// login attempt takes the same time whether or not the email is known.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// UserStore defines what the provider needs from storage.
type UserStore interface {
	CreateUser(ctx context.Context, user *store.User) error
	GetUser(ctx context.Context, id string) (*store.User, error)
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)

	CreateSession(ctx context.Context, session *store.Session) error
	GetSession(ctx context.Context, id string) (*store.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// Provider is the authentication boundary: it owns password hashing,
// login sessions, and API tokens. Input validation runs before any store
// access, so rejected input never produces a provider call.
type Provider struct {
	store      UserStore
	tokens     *JWTCodec
	sessionTTL time.Duration
	logger     *slog.Logger
}

// New creates a Provider. Pass nil logger for default.
func New(userStore UserStore, tokens *JWTCodec, sessionTTL time.Duration, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		store:      userStore,
		tokens:     tokens,
		sessionTTL: sessionTTL,
		logger:     logger.With("component", "identity"),
	}
}

// Register creates a new account. Returns a ValidationError for input the
// forms would reject, ErrEmailInUse when the address already has an
// account, and a generic error otherwise.
func (p *Provider) Register(ctx context.Context, email, password string) (*store.User, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &store.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := p.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailInUse) {
			p.logger.Info("registration rejected, email in use", "email", email)
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	p.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login checks the credentials and, on success, opens a server-side
// session. Unknown email and wrong password both return
// ErrInvalidCredential, after a constant-time hash comparison either way.
func (p *Provider) Login(ctx context.Context, email, password string) (*store.User, *store.Session, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, nil, err
	}

	user, err := p.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			p.logger.Info("login rejected, no such account", "email", email)
			return nil, nil, ErrInvalidCredential
		}
		return nil, nil, fmt.Errorf("looking up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		p.logger.Info("login rejected, bad password", "user_id", user.ID)
		return nil, nil, ErrInvalidCredential
	}

	session, err := p.openSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	p.logger.Info("login successful", "user_id", user.ID)
	return user, session, nil
}

// Logout removes the session. Unknown sessions are not an error.
func (p *Provider) Logout(ctx context.Context, sessionID string) error {
	return p.store.DeleteSession(ctx, sessionID)
}

// ResolveSession returns the user behind a session cookie value.
func (p *Provider) ResolveSession(ctx context.Context, sessionID string) (*store.User, error) {
	session, err := p.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return p.store.GetUser(ctx, session.UserID)
}

// IssueToken generates an API bearer token for the user, valid for the
// session TTL.
func (p *Provider) IssueToken(user *store.User) (string, error) {
	return p.tokens.Generate(user.ID, p.sessionTTL)
}

// ResolveToken returns the user behind an API bearer token.
func (p *Provider) ResolveToken(ctx context.Context, token string) (*store.User, error) {
	userID, err := p.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	return p.store.GetUser(ctx, userID)
}

func (p *Provider) openSession(ctx context.Context, userID string) (*store.Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("generating session id: %w", err)
	}

	now := time.Now()
	session := &store.Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(p.sessionTTL),
	}
	if err := p.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return session, nil
}

// generateSessionID returns a 256-bit random token in URL-safe base64.
func generateSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
