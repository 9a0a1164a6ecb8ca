// Package transcript records an ordered, append-only event log per interview
// session.
//
// Store is the persistence contract with three backends: MemoryStore,
// FileStore (one JSON document per session) and PostgresStore. Log sits in
// front of a Store and is what the rest of the service uses: it stamps
// events, orders writes per session and turns persistence failures into log
// lines instead of errors.
package transcript

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("transcript: session not found")

// Store persists sessions. Implementations must be safe for concurrent use.
type Store interface {
	// Start creates the session if missing. Existing sessions are untouched.
	Start(ctx context.Context, id string, at time.Time) error
	// Append adds ev, creating the session with StartedAt = ev.TS if missing.
	Append(ctx context.Context, id string, ev Event) error
	// End sets EndedAt once. Missing or already ended sessions are a no-op.
	End(ctx context.Context, id string, at time.Time) error
	Get(ctx context.Context, id string) (*Session, error)
	// List returns summaries, most recently started first.
	List(ctx context.Context) ([]Summary, error)
	// Delete reports whether a session was removed.
	Delete(ctx context.Context, id string) (bool, error)
	// Prune removes the oldest sessions until at most max remain and returns
	// the removed ids.
	Prune(ctx context.Context, max int) ([]string, error)
}

func sortNewestFirst(list []Summary) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].StartedAt.Equal(list[j].StartedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].StartedAt.After(list[j].StartedAt)
	})
}

// oldest returns the ids to evict so that at most max remain.
func oldest(list []Summary, max int) []string {
	if max < 0 {
		max = 0
	}
	if len(list) <= max {
		return nil
	}
	sorted := append([]Summary(nil), list...)
	sortNewestFirst(sorted)
	victims := sorted[max:]
	ids := make([]string, 0, len(victims))
	for i := len(victims) - 1; i >= 0; i-- {
		ids = append(ids, victims[i].ID)
	}
	return ids
}
