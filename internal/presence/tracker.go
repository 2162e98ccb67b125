// Package presence tracks online/offline transitions tied to connection
// lifecycle. A per-user live connection count guards the persisted flag so a
// second device disconnecting cannot mark a still-connected user offline.
package presence

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vietTNT/DoveRx-backend/internal/repositories"
)

// Tracker maintains live connection counts and persists the derived presence.
type Tracker struct {
	mu     sync.Mutex
	counts map[int]int
	repo   repositories.PresenceRepository
	log    *zerolog.Logger
}

// NewTracker constructs a Tracker.
func NewTracker(repo repositories.PresenceRepository, log *zerolog.Logger) *Tracker {
	return &Tracker{
		counts: make(map[int]int),
		repo:   repo,
		log:    log,
	}
}

// Connect records a new live connection for the user. The persisted flag
// flips to online on the first connection only.
func (t *Tracker) Connect(ctx context.Context, userID int) {
	t.mu.Lock()
	t.counts[userID]++
	first := t.counts[userID] == 1
	t.mu.Unlock()

	if !first {
		return
	}
	if err := t.repo.SetOnline(ctx, userID, true); err != nil {
		t.log.Error().Err(err).Int("user_id", userID).Msg("persist online status")
	}
}

// Disconnect records a closed connection. The persisted flag flips to offline
// only once no live connection for the user remains.
func (t *Tracker) Disconnect(ctx context.Context, userID int) {
	t.mu.Lock()
	if t.counts[userID] == 0 {
		t.mu.Unlock()
		return
	}
	t.counts[userID]--
	last := t.counts[userID] == 0
	if last {
		delete(t.counts, userID)
	}
	t.mu.Unlock()

	if !last {
		return
	}
	if err := t.repo.SetOnline(ctx, userID, false); err != nil {
		t.log.Error().Err(err).Int("user_id", userID).Msg("persist offline status")
	}
}

// IsOnline reports whether the user has at least one live connection on this
// process, falling back to the persisted flag for users connected elsewhere.
func (t *Tracker) IsOnline(ctx context.Context, userID int) bool {
	t.mu.Lock()
	live := t.counts[userID] > 0
	t.mu.Unlock()
	if live {
		return true
	}

	status, err := t.repo.GetStatus(ctx, userID)
	if err != nil {
		t.log.Error().Err(err).Int("user_id", userID).Msg("read persisted status")
		return false
	}
	return status.IsOnline
}
