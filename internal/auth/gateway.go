package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/robsonsouzans/listans/internal/model"
	"github.com/robsonsouzans/listans/internal/store"
)

// Gateway validates credentials against the persistence adapter and manages
// the resulting sessions. Passwords are stored as bcrypt hashes.
type Gateway struct {
	store    store.Store
	sessions *SessionRegistry
	logger   *zap.Logger
	cost     int
}

// NewGateway creates an auth gateway. cost is the bcrypt cost; zero selects
// the bcrypt default.
func NewGateway(st store.Store, sessions *SessionRegistry, logger *zap.Logger, cost int) *Gateway {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Gateway{
		store:    st,
		sessions: sessions,
		logger:   logger,
		cost:     cost,
	}
}

// Register creates an account and opens a session for it. A duplicate email
// surfaces as store.ErrDuplicateEmail, distinct from any other failure.
func (g *Gateway) Register(ctx context.Context, name, email, password string) (*model.User, Session, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name == "" {
		return nil, Session{}, model.ErrEmptyName
	}
	if err := model.ValidateEmail(email); err != nil {
		return nil, Session{}, err
	}
	if len(password) < model.MinPasswordLength {
		return nil, Session{}, model.ErrPasswordTooWeak
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), g.cost)
	if err != nil {
		return nil, Session{}, fmt.Errorf("hashing password: %w", err)
	}

	user, err := g.store.CreateUser(ctx, &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		if !errors.Is(err, store.ErrDuplicateEmail) {
			g.logger.Error("failed to register user", zap.String("email", email), zap.Error(err))
		}
		return nil, Session{}, fmt.Errorf("registering user: %w", err)
	}

	session := g.sessions.Create(user.ID)
	g.logger.Info("user registered", zap.String("user_id", user.ID))

	return user, session, nil
}

// Login verifies the credentials and opens a session. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (g *Gateway) Login(ctx context.Context, email, password string) (*model.User, Session, error) {
	user, err := g.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Session{}, ErrInvalidCredentials
		}
		g.logger.Error("failed to look up user", zap.Error(err))
		return nil, Session{}, fmt.Errorf("verifying credentials: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, Session{}, ErrInvalidCredentials
	}

	session := g.sessions.Create(user.ID)
	g.logger.Info("user logged in", zap.String("user_id", user.ID))

	return user, session, nil
}

// Logout tears down the session. Unknown tokens are ignored.
func (g *Gateway) Logout(token string) {
	g.sessions.Delete(token)
}

// SessionAuthenticator authenticates requests by bearer session token.
type SessionAuthenticator struct {
	store    store.Store
	sessions *SessionRegistry
}

// NewSessionAuthenticator creates a session-token authenticator.
func NewSessionAuthenticator(st store.Store, sessions *SessionRegistry) *SessionAuthenticator {
	return &SessionAuthenticator{
		store:    st,
		sessions: sessions,
	}
}

// Authenticate resolves the bearer token to its user record.
func (a *SessionAuthenticator) Authenticate(r *http.Request) (*model.User, error) {
	token := BearerToken(r)
	if token == "" {
		return nil, ErrUnauthenticated
	}

	session, ok := a.sessions.Get(token)
	if !ok {
		return nil, ErrInvalidToken
	}

	user, err := a.store.GetUser(r.Context(), session.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: session user not found", ErrInvalidToken)
	}

	return user, nil
}
