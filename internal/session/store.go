package session

import (
	"context"
	"time"

	id "lifeshield/pkg/domain"
)

// Store persists sessions. Implementations return sentinel.ErrNotFound for
// unknown IDs, sentinel.ErrExpired for sessions past their TTL or archived
// by the sweeper, and sentinel.ErrConflict when an Update loses an
// optimistic-concurrency race.
type Store interface {
	// Create persists a new session. sentinel.ErrConflict if the ID exists.
	Create(ctx context.Context, s *Session) error

	// Get returns the current session state.
	Get(ctx context.Context, sessionID id.SessionID) (*Session, error)

	// Update persists changes. The session's Version must match the stored
	// version; on success the store bumps it by one.
	Update(ctx context.Context, s *Session) error

	// Sweep archives sessions whose TTL lapsed before now. Archived sessions
	// are retained for audit but no longer retrievable. Returns the number
	// archived.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// RunSweeper archives expired sessions on a fixed interval until the
// context is cancelled. Sweep errors are returned to the caller's errgroup.
func RunSweeper(ctx context.Context, store Store, interval time.Duration, onSweep func(archived int, err error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := store.Sweep(ctx, time.Now().UTC())
			if onSweep != nil {
				onSweep(n, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
