package session

import (
	"log/slog"
	"time"
)

// sweepLoop runs in a background goroutine and periodically removes expired
// sessions. It stops when the stopSweep channel is closed.
func (s *Store) sweepLoop() {
	for {
		select {
		case <-s.sweepTicker.C:
			s.sweep()
		case <-s.stopSweep:
			return
		}
	}
}

// sweep drops all expired sessions. The lazy expiry check in lookup already
// guarantees expired sessions are never served; the sweep only reclaims the
// memory of sessions that are never touched again.
func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	expired := 0

	for id, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, id)
			expired++
		}
	}

	if expired > 0 {
		slog.Info("swept expired sessions", "count", expired)
	}
}
