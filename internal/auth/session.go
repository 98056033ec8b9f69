package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the server-side record of a logged-in user. Sessions have no
// expiry and no refresh; they live until logout tears them down or the
// process exits.
type Session struct {
	Token     string
	UserID    string
	CreatedAt time.Time
}

// SessionRegistry holds the active sessions. It replaces a global
// current-user slot with an explicit object that is passed to whichever
// component needs the identity.
type SessionRegistry struct {
	mu      sync.RWMutex
	byToken map[string]Session
}

// NewSessionRegistry creates an empty session registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		byToken: make(map[string]Session),
	}
}

// Create opens a session for the user and returns it.
func (r *SessionRegistry) Create(userID string) Session {
	session := Session{
		Token:     uuid.New().String(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.byToken[session.Token] = session
	r.mu.Unlock()

	return session
}

// Get looks up a session by token.
func (r *SessionRegistry) Get(token string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.byToken[token]
	return session, ok
}

// Delete tears down a session. Deleting an unknown token is a no-op.
func (r *SessionRegistry) Delete(token string) {
	r.mu.Lock()
	delete(r.byToken, token)
	r.mu.Unlock()
}

// Len returns the number of active sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byToken)
}
