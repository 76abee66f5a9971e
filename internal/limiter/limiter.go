package limiter

import (
	"sync"
)

// UserLimiter allows at most one in-flight transform per user.
type UserLimiter struct {
	mu          sync.Mutex
	activeUsers map[int64]struct{}
}

// NewUserLimiter creates a new user limiter
func NewUserLimiter() *UserLimiter {
	return &UserLimiter{
		activeUsers: make(map[int64]struct{}),
	}
}

// TryAcquire attempts to acquire a slot for a user
// Returns false if the user already has an active transform
func (l *UserLimiter) TryAcquire(userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.activeUsers[userID]; exists {
		return false
	}

	l.activeUsers[userID] = struct{}{}
	return true
}

// Release releases a user's slot
func (l *UserLimiter) Release(userID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.activeUsers, userID)
}

// ActiveCount returns the number of transforms currently in flight
func (l *UserLimiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.activeUsers)
}
