package wizard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultSessionTTL is how long an idle session is kept.
const DefaultSessionTTL = 2 * time.Hour

// Session status values.
const (
	StatusAwaitingConfirmation = "awaiting_confirmation"
	StatusActive               = "active"
	// StatusSubmitting marks a session whose entry is being recorded.
	StatusSubmitting = "submitting"
)

// Session is one coordinator's pass through the wizard for one member.
type Session struct {
	ID        string    `json:"id"`
	Owner     string    `json:"-"`
	Status    string    `json:"status"`
	Guard     string    `json:"guard"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionStore keeps sessions in memory keyed by id. Sessions idle longer
// than the TTL are dropped by Sweep.
type SessionStore struct {
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionStore(ttl time.Duration, logger zerolog.Logger) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create stores a new session and assigns its id.
func (s *SessionStore) Create(owner, status, guard string, state State) *Session {
	now := s.now()
	sess := &Session{
		ID:        uuid.New().String(),
		Owner:     owner,
		Status:    status,
		Guard:     guard,
		State:     state,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return copySession(sess)
}

// Get returns a copy of the session. Expired sessions are not returned.
func (s *SessionStore) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || s.expired(sess) {
		return nil, ErrSessionNotFound
	}
	return copySession(sess), nil
}

// Update replaces the stored session and refreshes its idle timer. A session
// claimed for submission cannot be updated until it is released.
func (s *SessionStore) Update(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sessions[sess.ID]
	if !ok {
		return ErrSessionNotFound
	}
	if cur.Status == StatusSubmitting {
		return ErrSubmitInProgress
	}
	cp := copySession(sess)
	cp.UpdatedAt = s.now()
	s.sessions[sess.ID] = cp
	sess.UpdatedAt = cp.UpdatedAt
	return nil
}

// Claim moves an active session to StatusSubmitting. Only one caller can hold
// the claim; the others get ErrSubmitInProgress.
func (s *SessionStore) Claim(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sessions[id]
	if !ok || s.expired(cur) {
		return ErrSessionNotFound
	}
	switch cur.Status {
	case StatusActive:
	case StatusSubmitting:
		return ErrSubmitInProgress
	default:
		return ErrAwaitingConfirmation
	}
	cur.Status = StatusSubmitting
	cur.UpdatedAt = s.now()
	return nil
}

// Release stores sess as active again after a claimed submit failed.
func (s *SessionStore) Release(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sessions[sess.ID]
	if !ok {
		return ErrSessionNotFound
	}
	if cur.Status != StatusSubmitting {
		return ErrSubmitInProgress
	}
	cp := copySession(sess)
	cp.Status = StatusActive
	cp.UpdatedAt = s.now()
	s.sessions[sess.ID] = cp
	sess.Status = cp.Status
	sess.UpdatedAt = cp.UpdatedAt
	return nil
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) expired(sess *Session) bool {
	return s.now().Sub(sess.UpdatedAt) > s.ttl
}

// Sweep removes expired sessions and reports how many were dropped.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps on every interval until ctx is cancelled.
func (s *SessionStore) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Info().Int("expired", n).Msg("wizard sessions expired")
			}
		}
	}
}

func copySession(sess *Session) *Session {
	cp := *sess
	cp.State = sess.State.clone()
	return &cp
}
