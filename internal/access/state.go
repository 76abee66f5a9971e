package access

import (
	"log/slog"
	"sort"
	"sync"
)

// Record holds the permission state for a single user. Approved and
// UsedTrial are independent: an approved user may have either trial
// value.
type Record struct {
	Approved  bool `json:"approved"`
	UsedTrial bool `json:"used_trial"`
}

// Snapshot is the serializable form of the access state. The field
// names match the persisted layout; integer map keys survive a JSON
// round trip as numeric IDs.
type Snapshot struct {
	Users   map[int64]Record `json:"user_database"`
	Pending []int64          `json:"access_requests"`
}

// Saver persists a snapshot after each mutation. Implementations live
// in internal/store; a nil Saver disables persistence.
type Saver interface {
	Save(*Snapshot) error
}

// State owns the user records, the pending-request set and the admin
// set. All methods are safe for concurrent use. Records are created
// lazily on first mutation, never on lookup.
type State struct {
	mu      sync.Mutex
	users   map[int64]Record
	pending map[int64]struct{}
	version uint64
	admins  AdminSet
	saver   Saver
	logger  *slog.Logger

	// saveMu serializes saver calls; savedVersion rejects snapshots
	// that lost the race to a newer mutation so the store never ends
	// up holding stale state.
	saveMu       sync.Mutex
	savedVersion uint64
}

// NewState creates a State seeded from an optional snapshot (pass nil
// to start empty). Mutations are persisted through saver when it is
// non-nil.
func NewState(admins AdminSet, snap *Snapshot, saver Saver, logger *slog.Logger) *State {
	s := &State{
		users:   make(map[int64]Record),
		pending: make(map[int64]struct{}),
		admins:  admins,
		saver:   saver,
		logger:  logger,
	}
	if snap != nil {
		for id, rec := range snap.Users {
			s.users[id] = rec
		}
		for _, id := range snap.Pending {
			s.pending[id] = struct{}{}
		}
	}
	return s
}

// IsAdmin reports whether the user is in the admin set.
func (s *State) IsAdmin(id int64) bool {
	return s.admins.Contains(id)
}

// HasAccess reports whether the user has approved access.
func (s *State) HasAccess(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id].Approved
}

// HasUsedTrial reports whether the user has consumed their free trial.
func (s *State) HasUsedTrial(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id].UsedTrial
}

// CanUseBot reports whether the user may run a transform right now:
// approved users always, everyone else until their trial is used.
func (s *State) CanUseBot(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.users[id]
	return rec.Approved || !rec.UsedTrial
}

// StatusOf classifies the user. Admin wins over all other state, then
// approved, then a pending request, then an exhausted trial.
func (s *State) StatusOf(id int64) Status {
	if s.admins.Contains(id) {
		return StatusAdmin
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.users[id]
	switch {
	case rec.Approved:
		return StatusApproved
	case s.hasPendingLocked(id):
		return StatusPending
	case rec.UsedTrial:
		return StatusTrialUsed
	default:
		return StatusNewUser
	}
}

func (s *State) hasPendingLocked(id int64) bool {
	_, ok := s.pending[id]
	return ok
}

// RecordTrialUse marks the user's trial as consumed. Idempotent;
// approval state is left untouched.
func (s *State) RecordTrialUse(id int64) {
	s.mu.Lock()
	rec := s.users[id]
	rec.UsedTrial = true
	s.users[id] = rec
	snap, v := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("trial recorded", "user_id", id)
	s.persist(snap, v)
}

// Approve grants the user standing access and removes any pending
// request. Idempotent.
func (s *State) Approve(id int64) {
	s.mu.Lock()
	rec := s.users[id]
	rec.Approved = true
	s.users[id] = rec
	delete(s.pending, id)
	snap, v := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("user approved", "user_id", id)
	s.persist(snap, v)
}

// Block revokes the user's approval. Blocking an id with no record
// creates one with the trial marked used, so an unknown blocked user
// cannot fall back to a free trial. The pending set is not touched.
func (s *State) Block(id int64) {
	s.mu.Lock()
	rec, known := s.users[id]
	rec.Approved = false
	if !known {
		rec.UsedTrial = true
	}
	s.users[id] = rec
	snap, v := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("user blocked", "user_id", id)
	s.persist(snap, v)
}

// RequestAccess records an outstanding access request. Returns false
// without mutating anything when the user is already approved.
func (s *State) RequestAccess(id int64) bool {
	s.mu.Lock()
	if s.users[id].Approved {
		s.mu.Unlock()
		return false
	}
	s.pending[id] = struct{}{}
	snap, v := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("access requested", "user_id", id)
	s.persist(snap, v)
	return true
}

// ListPending returns the pending request IDs in ascending order.
func (s *State) ListPending() []int64 {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ListAdmins returns the admin IDs in ascending order, for
// notification fan-out.
func (s *State) ListAdmins() []int64 {
	ids := make([]int64, 0, len(s.admins))
	for id := range s.admins {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ListApproved returns all approved user IDs in ascending order, for
// broadcast targeting.
func (s *State) ListApproved() []int64 {
	s.mu.Lock()
	var ids []int64
	for id, rec := range s.users {
		if rec.Approved {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Snapshot returns a deep copy of the current state for persistence.
func (s *State) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, _ := s.snapshotLocked()
	return snap
}

// snapshotLocked bumps the state version and returns it with the
// copy, so persist can tell which snapshot is newest.
func (s *State) snapshotLocked() (*Snapshot, uint64) {
	s.version++
	snap := &Snapshot{
		Users:   make(map[int64]Record, len(s.users)),
		Pending: make([]int64, 0, len(s.pending)),
	}
	for id, rec := range s.users {
		snap.Users[id] = rec
	}
	for id := range s.pending {
		snap.Pending = append(snap.Pending, id)
	}
	sort.Slice(snap.Pending, func(i, j int) bool { return snap.Pending[i] < snap.Pending[j] })
	return snap, s.version
}

// persist runs outside the state lock so a slow store never blocks
// access checks for other users. Saves are serialized and a snapshot
// older than the last saved one is dropped, so concurrent mutations
// cannot leave the store holding stale state.
func (s *State) persist(snap *Snapshot, version uint64) {
	if s.saver == nil {
		return
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if version <= s.savedVersion {
		return
	}
	s.savedVersion = version

	if err := s.saver.Save(snap); err != nil {
		s.logger.Error("failed to persist access state", "error", err)
	}
}
