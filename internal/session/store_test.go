package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"kcgateway/internal/identity"
)

func newTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	s := NewStore(ttl)
	t.Cleanup(s.Stop)
	return s
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t, time.Hour)

	sess, err := store.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if len(sess.ID) != 64 {
		t.Errorf("session ID length = %d, want 64", len(sess.ID))
	}
	if sess.Authenticated() {
		t.Error("fresh session must be anonymous")
	}

	got, err := store.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != sess.ID {
		t.Errorf("Get returned ID %q, want %q", got.ID, sess.ID)
	}
}

func TestGetUnknownSession(t *testing.T) {
	store := newTestStore(t, time.Hour)

	if _, err := store.Get("does-not-exist"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty ID, got %v", err)
	}
}

func TestExpiry(t *testing.T) {
	store := newTestStore(t, 50*time.Millisecond)

	sess, err := store.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if _, err := store.Get(sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
	if store.Count() != 0 {
		t.Errorf("expired session still counted: %d", store.Count())
	}
}

func TestIdleExpirySlides(t *testing.T) {
	store := newTestStore(t, 150*time.Millisecond)

	sess, err := store.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Keep touching the session past its original lifetime.
	for i := 0; i < 4; i++ {
		time.Sleep(75 * time.Millisecond)
		if _, err := store.Get(sess.ID); err != nil {
			t.Fatalf("Get failed at touch %d: %v", i, err)
		}
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	store := newTestStore(t, time.Hour)

	sess, err := store.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	got.PendingState = "mutated-by-caller"

	again, err := store.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if again.PendingState != "" {
		t.Error("caller mutation leaked into the store")
	}
}

func TestSetPendingSupersedes(t *testing.T) {
	store := newTestStore(t, time.Hour)

	sess, err := store.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.SetPending(sess.ID, "state-1", "verifier-1", "/first"); err != nil {
		t.Fatalf("SetPending failed: %v", err)
	}
	if err := store.SetPending(sess.ID, "state-2", "verifier-2", "/second"); err != nil {
		t.Fatalf("SetPending failed: %v", err)
	}

	// The first attempt's state is gone.
	if _, _, err := store.ConsumeState(sess.ID, "state-1"); !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected ErrStateMismatch for superseded state, got %v", err)
	}

	verifier, returnTo, err := store.ConsumeState(sess.ID, "state-2")
	if err != nil {
		t.Fatalf("ConsumeState failed: %v", err)
	}
	if verifier != "verifier-2" {
		t.Errorf("verifier = %q, want verifier-2", verifier)
	}
	if returnTo != "/second" {
		t.Errorf("returnTo = %q, want /second", returnTo)
	}
}

func TestConsumeStateSingleUse(t *testing.T) {
	store := newTestStore(t, time.Hour)

	sess, err := store.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.SetPending(sess.ID, "state-1", "verifier-1", ""); err != nil {
		t.Fatalf("SetPending failed: %v", err)
	}

	if _, _, err := store.ConsumeState(sess.ID, "state-1"); err != nil {
		t.Fatalf("first consume failed: %v", err)
	}

	// The token is burned: replaying it must fail.
	if _, _, err := store.ConsumeState(sess.ID, "state-1"); !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected ErrStateMismatch on replay, got %v", err)
	}
}

func TestConsumeStateMismatchKeepsPending(t *testing.T) {
	store := newTestStore(t, time.Hour)

	sess, err := store.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.SetPending(sess.ID, "state-1", "verifier-1", ""); err != nil {
		t.Fatalf("SetPending failed: %v", err)
	}

	if _, _, err := store.ConsumeState(sess.ID, "wrong-state"); !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected ErrStateMismatch, got %v", err)
	}
	if _, _, err := store.ConsumeState(sess.ID, ""); !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected ErrStateMismatch for empty state, got %v", err)
	}

	// A failed match must not invalidate the legitimate attempt.
	if _, _, err := store.ConsumeState(sess.ID, "state-1"); err != nil {
		t.Fatalf("legitimate consume failed after mismatch: %v", err)
	}
}

func TestConsumeStateWithoutPending(t *testing.T) {
	store := newTestStore(t, time.Hour)

	sess, err := store.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, _, err := store.ConsumeState(sess.ID, "anything"); !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected ErrStateMismatch, got %v", err)
	}
}

func TestPromote(t *testing.T) {
	store := newTestStore(t, time.Hour)

	sess, err := store.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.SetPending(sess.ID, "state-1", "verifier-1", "/app"); err != nil {
		t.Fatalf("SetPending failed: %v", err)
	}

	user := &identity.User{Subject: "sub-1", Username: "alice"}
	tokens := &Tokens{AccessToken: "at", RefreshToken: "rt"}

	if err := store.Promote(sess.ID, user, tokens); err != nil {
		t.Fatalf("Promote failed: %v", err)
	}

	got, err := store.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Authenticated() {
		t.Fatal("promoted session must be authenticated")
	}
	if got.User.Username != "alice" {
		t.Errorf("username = %q, want alice", got.User.Username)
	}
	if got.Tokens.RefreshToken != "rt" {
		t.Errorf("refresh token = %q, want rt", got.Tokens.RefreshToken)
	}
	if got.PendingState != "" || got.PendingVerifier != "" {
		t.Error("promotion must clear pending login data")
	}
}

func TestPromoteUnknownSession(t *testing.T) {
	store := newTestStore(t, time.Hour)

	err := store.Promote("does-not-exist", &identity.User{Subject: "x"}, &Tokens{AccessToken: "at"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDestroyIdempotent(t *testing.T) {
	store := newTestStore(t, time.Hour)

	sess, err := store.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	store.Destroy(sess.ID)
	if _, err := store.Get(sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after destroy, got %v", err)
	}

	// Destroying again must not panic or error.
	store.Destroy(sess.ID)
	store.Destroy("never-existed")
}

func TestSessionIDsUnique(t *testing.T) {
	store := newTestStore(t, time.Hour)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		sess, err := store.Create()
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if seen[sess.ID] {
			t.Fatalf("duplicate session ID: %s", sess.ID)
		}
		seen[sess.ID] = true
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := newTestStore(t, time.Hour)

	sess, err := store.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			state := fmt.Sprintf("state-%d", n)
			_ = store.SetPending(sess.ID, state, "verifier", "/")
			_, _, _ = store.ConsumeState(sess.ID, state)
			_, _ = store.Get(sess.ID)
		}(i)
	}
	wg.Wait()

	if _, err := store.Get(sess.ID); err != nil {
		t.Fatalf("session lost after concurrent access: %v", err)
	}
}
