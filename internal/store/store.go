package store

import "photofx-bot/internal/access"

// Store persists access-state snapshots across restarts. Load on a
// store with no prior data returns an empty snapshot, not an error.
type Store interface {
	// Load reads the last saved snapshot.
	Load() (*access.Snapshot, error)

	// Save writes a full snapshot, replacing any previous one.
	Save(*access.Snapshot) error

	// Close releases resources.
	Close() error
}

func emptySnapshot() *access.Snapshot {
	return &access.Snapshot{
		Users:   make(map[int64]access.Record),
		Pending: nil,
	}
}
