package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/trackgate/trackgate/pkg/observability"
	"github.com/trackgate/trackgate/pkg/tenants"
)

// ErrSessionNotFound is returned for unknown, expired or logged-out tokens.
var ErrSessionNotFound = errors.New("session not found")

// Session is the server-side record behind an opaque token. The token
// itself carries no information; everything lives here.
type Session struct {
	TenantID  string       `json:"tenant_id"`
	Username  string       `json:"username"`
	Role      tenants.Role `json:"role"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// SessionStore keeps active sessions in memory, keyed by token hash.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// SessionOption configures a SessionStore
type SessionOption func(*SessionStore)

// WithSessionLogger sets the structured logger
func WithSessionLogger(logger *observability.Logger) SessionOption {
	return func(s *SessionStore) { s.logger = logger }
}

// WithSessionMetrics enables session gauges
func WithSessionMetrics(m *observability.Metrics) SessionOption {
	return func(s *SessionStore) { s.metrics = m }
}

// NewSessionStore creates a session store with the given TTL.
func NewSessionStore(ttl time.Duration, opts ...SessionOption) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		logger:   observability.NewLogger(observability.InfoLevel, nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a session for the given token hash.
func (s *SessionStore) Create(tokenHash string, tenantID, username string, role tenants.Role) *Session {
	now := time.Now().UTC()
	session := &Session{
		TenantID:  tenantID,
		Username:  username,
		Role:      role,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.mu.Lock()
	s.sessions[tokenHash] = session
	count := len(s.sessions)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SessionsActive.Set(float64(count))
	}
	return session
}

// Get looks up an active session by token hash. Expired sessions read as
// missing; the sweeper reclaims them later.
func (s *SessionStore) Get(tokenHash string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[tokenHash]
	s.mu.RUnlock()
	if !ok || session.Expired() {
		return nil, ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

// Delete removes a session. Deleting an unknown hash is not an error, so
// logout is idempotent.
func (s *SessionStore) Delete(tokenHash string) {
	s.mu.Lock()
	delete(s.sessions, tokenHash)
	count := len(s.sessions)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SessionsActive.Set(float64(count))
	}
}

// Sweep removes all expired sessions and returns how many were removed.
func (s *SessionStore) Sweep() int {
	now := time.Now()
	s.mu.Lock()
	swept := 0
	for hash, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, hash)
			swept++
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SessionsActive.Set(float64(count))
		if swept > 0 {
			s.metrics.SessionsSweptTotal.Add(float64(swept))
		}
	}
	if swept > 0 {
		s.logger.WithField("swept", swept).Debug("expired sessions purged")
	}
	return swept
}

// Len returns the number of stored sessions, including not-yet-swept
// expired ones.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// StartSweeper schedules Sweep on the given cron spec (for example
// "@every 5m") and runs until ctx is cancelled.
func (s *SessionStore) StartSweeper(ctx context.Context, schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { s.Sweep() }); err != nil {
		return err
	}
	c.Start()
	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return nil
}
