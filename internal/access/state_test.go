package access

import (
	"log/slog"
	"reflect"
	"sync"
	"testing"
)

func newTestState(admins ...int64) *State {
	return NewState(NewAdminSet(admins), nil, nil, slog.Default())
}

func TestFreshUserHasTrial(t *testing.T) {
	s := newTestState(1)

	if !s.CanUseBot(100) {
		t.Fatal("fresh user should be able to use the bot")
	}
	if got := s.StatusOf(100); got != StatusNewUser {
		t.Fatalf("expected StatusNewUser, got %v", got)
	}
}

func TestRecordTrialUse(t *testing.T) {
	s := newTestState()

	s.RecordTrialUse(100)
	if s.CanUseBot(100) {
		t.Fatal("user should be gated after trial use")
	}
	if got := s.StatusOf(100); got != StatusTrialUsed {
		t.Fatalf("expected StatusTrialUsed, got %v", got)
	}
	if s.HasAccess(100) {
		t.Fatal("trial use must not grant approval")
	}

	// Idempotent.
	s.RecordTrialUse(100)
	if !s.HasUsedTrial(100) || s.HasAccess(100) {
		t.Fatal("second trial recording changed state")
	}
}

func TestApproveIdempotent(t *testing.T) {
	s := newTestState()

	if !s.RequestAccess(100) {
		t.Fatal("request from unapproved user should succeed")
	}
	s.Approve(100)
	s.Approve(100)

	if !s.HasAccess(100) {
		t.Fatal("user should be approved")
	}
	if len(s.ListPending()) != 0 {
		t.Fatalf("pending set should be empty, got %v", s.ListPending())
	}
	if got := s.StatusOf(100); got != StatusApproved {
		t.Fatalf("expected StatusApproved, got %v", got)
	}
}

func TestRequestAccessWhenApproved(t *testing.T) {
	s := newTestState()
	s.Approve(100)

	if s.RequestAccess(100) {
		t.Fatal("approved user should not be able to request access")
	}
	if len(s.ListPending()) != 0 {
		t.Fatalf("pending set should stay empty, got %v", s.ListPending())
	}
}

func TestBlockRevertsToTrialStatus(t *testing.T) {
	// Approval revoked falls back to trial-based status.
	cases := []struct {
		name      string
		usedTrial bool
		want      Status
	}{
		{"trial used", true, StatusTrialUsed},
		{"trial unused", false, StatusNewUser},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestState()
			if tc.usedTrial {
				s.RecordTrialUse(100)
			}
			s.Approve(100)
			s.Block(100)

			if s.HasAccess(100) {
				t.Fatal("blocked user should not have access")
			}
			if got := s.StatusOf(100); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestBlockUnknownUserExhaustsTrial(t *testing.T) {
	s := newTestState()

	s.Block(100)
	if s.CanUseBot(100) {
		t.Fatal("blocked unknown user should not get a trial")
	}
	if !s.HasUsedTrial(100) {
		t.Fatal("blocking an unknown user should mark the trial used")
	}
}

func TestBlockKeepsPendingRequest(t *testing.T) {
	s := newTestState()
	s.RecordTrialUse(100)
	s.RequestAccess(100)

	s.Block(100)
	if got := s.ListPending(); !reflect.DeepEqual(got, []int64{100}) {
		t.Fatalf("block must not clear the pending request, got %v", got)
	}
}

func TestAdminStatusWins(t *testing.T) {
	s := newTestState(5)
	s.RecordTrialUse(5)
	s.Block(5)

	if got := s.StatusOf(5); got != StatusAdmin {
		t.Fatalf("admin status must win over record state, got %v", got)
	}
	if !s.IsAdmin(5) || s.IsAdmin(6) {
		t.Fatal("IsAdmin mismatch")
	}
}

func TestListApproved(t *testing.T) {
	s := newTestState()
	s.Approve(30)
	s.Approve(10)
	s.Approve(20)
	s.RecordTrialUse(40)

	if got := s.ListApproved(); !reflect.DeepEqual(got, []int64{10, 20, 30}) {
		t.Fatalf("unexpected approved list: %v", got)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestState()
	s.Approve(42)
	s.RecordTrialUse(9)
	s.RequestAccess(7)

	snap := s.Snapshot()
	restored := NewState(nil, snap, nil, slog.Default())

	if !restored.HasAccess(42) || restored.HasUsedTrial(42) {
		t.Fatal("approved record lost in snapshot round trip")
	}
	if !restored.HasUsedTrial(9) || restored.HasAccess(9) {
		t.Fatal("trial record lost in snapshot round trip")
	}
	if got := restored.StatusOf(7); got != StatusPending {
		t.Fatalf("pending request lost in snapshot round trip, got %v", got)
	}
}

type recordingSaver struct {
	mu    sync.Mutex
	saves []*Snapshot
}

func (r *recordingSaver) Save(snap *Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, snap)
	return nil
}

func (r *recordingSaver) last() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saves) == 0 {
		return nil
	}
	return r.saves[len(r.saves)-1]
}

func TestPersistDropsStaleSnapshot(t *testing.T) {
	rec := &recordingSaver{}
	s := NewState(nil, nil, rec, slog.Default())

	s.Approve(42)

	// A snapshot that lost the race to a newer mutation must not
	// overwrite what the store already holds.
	s.persist(&Snapshot{Users: map[int64]Record{}}, 0)

	last := rec.last()
	if last == nil {
		t.Fatal("expected a saved snapshot")
	}
	if !last.Users[42].Approved {
		t.Fatalf("stale snapshot overwrote the store: %+v", last.Users)
	}
	if len(rec.saves) != 1 {
		t.Fatalf("expected 1 save, got %d", len(rec.saves))
	}
}

func TestConcurrentMutationsPersistLatestState(t *testing.T) {
	rec := &recordingSaver{}
	s := NewState(nil, nil, rec, slog.Default())

	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			s.Approve(id)
			s.RecordTrialUse(id)
		}(i)
	}
	wg.Wait()

	last := rec.last()
	if last == nil {
		t.Fatal("expected saved snapshots")
	}
	if !reflect.DeepEqual(last.Users, s.Snapshot().Users) {
		t.Fatal("last saved snapshot does not match the final state")
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusAdmin:     "Admin",
		StatusApproved:  "Approved",
		StatusPending:   "Pending Approval",
		StatusTrialUsed: "Trial Used (Blocked)",
		StatusNewUser:   "New User (Trial Available)",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Fatalf("Status(%d).String() = %q, want %q", status, got, want)
		}
	}
}
