package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"kcgateway/internal/identity"
)

// Errors returned by the Store.
var (
	// ErrNotFound is returned when a session does not exist or has expired.
	ErrNotFound = errors.New("session not found")

	// ErrStateMismatch is returned by ConsumeState when the presented state
	// token does not match the session's pending state, including when no
	// pending state exists (already consumed, or login never started).
	ErrStateMismatch = errors.New("state token mismatch")
)

// Store manages sessions in-memory with idle-TTL expiry.
// It is safe for concurrent use; every mutation of a session record happens
// under the store mutex, so state transitions for one session ID are
// serialized while unrelated sessions proceed in parallel.
type Store struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	ttl         time.Duration
	sweepTicker *time.Ticker
	stopSweep   chan struct{}
}

// NewStore creates a session store with the given idle TTL.
// A background sweep removes expired entries every minute; expiry is also
// checked lazily on every lookup, so an expired session is never returned
// even between sweeps.
func NewStore(ttl time.Duration) *Store {
	s := &Store{
		sessions:    make(map[string]*Session),
		ttl:         ttl,
		sweepTicker: time.NewTicker(1 * time.Minute),
		stopSweep:   make(chan struct{}),
	}

	go s.sweepLoop()

	return s
}

// Stop stops the store's background sweep goroutine.
func (s *Store) Stop() {
	s.sweepTicker.Stop()
	close(s.stopSweep)
}

// Create creates a new anonymous session.
// The session ID is generated using crypto/rand (64 hex characters).
func (s *Store) Create() (*Session, error) {
	id, err := generateID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	sess := &Session{
		ID:        id,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	cp := *sess
	return &cp, nil
}

// Get retrieves a session by ID and slides its idle expiry forward.
// It returns a snapshot copy: callers must never mutate sessions directly,
// all transitions go through the store methods below.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	sess.ExpiresAt = time.Now().Add(s.ttl)

	cp := *sess
	return &cp, nil
}

// SetPending records a fresh login attempt: state token, PKCE verifier and
// the post-login redirect target. Any previous pending state is superseded.
func (s *Store) SetPending(id, state, verifier, returnTo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(id)
	if err != nil {
		return err
	}

	sess.PendingState = state
	sess.PendingVerifier = verifier
	sess.ReturnTo = returnTo
	return nil
}

// ConsumeState atomically compares the presented state token against the
// session's pending state and, on a match, clears it and returns the stored
// PKCE verifier and redirect target. The token is single-use: a second
// presentation, a mismatch, or an absent pending state all fail with
// ErrStateMismatch. A failed match does not clear anything, so a racing tab
// with the wrong state cannot invalidate the legitimate login attempt.
func (s *Store) ConsumeState(id, state string) (verifier, returnTo string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, lerr := s.lookup(id)
	if lerr != nil {
		return "", "", lerr
	}

	if state == "" || sess.PendingState == "" || sess.PendingState != state {
		return "", "", ErrStateMismatch
	}

	verifier = sess.PendingVerifier
	returnTo = sess.ReturnTo
	sess.PendingState = ""
	sess.PendingVerifier = ""
	sess.ReturnTo = ""
	return verifier, returnTo, nil
}

// Promote transitions the session to authenticated in one step: user and
// tokens are set together and any pending login data is cleared, so a reader
// can never observe a partially promoted session.
func (s *Store) Promote(id string, user *identity.User, tokens *Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(id)
	if err != nil {
		return err
	}

	sess.User = user
	sess.Tokens = tokens
	sess.PendingState = ""
	sess.PendingVerifier = ""
	return nil
}

// Destroy removes a session. It is idempotent: destroying an unknown or
// already-destroyed session is a no-op.
func (s *Store) Destroy(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Count returns the current number of stored sessions, expired or not.
// Useful for monitoring and testing.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// lookup finds a live session. Expired entries are removed on sight and
// reported as ErrNotFound. Must be called with mu held.
func (s *Store) lookup(id string) (*Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}

	if time.Now().After(sess.ExpiresAt) {
		delete(s.sessions, id)
		return nil, ErrNotFound
	}

	return sess, nil
}

// generateID generates a cryptographically secure random session ID.
// The ID is 64 hex characters (32 random bytes).
func generateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
