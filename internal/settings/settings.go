package settings

import "sync"

// Settings holds admin-toggleable runtime flags shared across the
// event handlers. Safe for concurrent use.
type Settings struct {
	mu   sync.Mutex
	nsfw bool
}

// New creates Settings with NSFW mode disabled.
func New() *Settings {
	return &Settings{}
}

// NSFWEnabled reports whether NSFW generation is currently allowed.
func (s *Settings) NSFWEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nsfw
}

// ToggleNSFW flips the NSFW mode and returns the new value.
func (s *Settings) ToggleNSFW() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nsfw = !s.nsfw
	return s.nsfw
}
