package access

// Status classifies a user's relationship to the bot. Exactly one
// status applies to a given user at any instant; StatusOf evaluates
// them in priority order.
type Status int

const (
	StatusAdmin Status = iota
	StatusApproved
	StatusPending
	StatusTrialUsed
	StatusNewUser
)

// String returns the user-facing label for the status.
func (s Status) String() string {
	switch s {
	case StatusAdmin:
		return "Admin"
	case StatusApproved:
		return "Approved"
	case StatusPending:
		return "Pending Approval"
	case StatusTrialUsed:
		return "Trial Used (Blocked)"
	default:
		return "New User (Trial Available)"
	}
}

// AdminSet is the fixed set of admin user IDs loaded at startup.
// Admins bypass every other policy check.
type AdminSet map[int64]struct{}

// NewAdminSet builds an AdminSet from a slice of user IDs.
func NewAdminSet(ids []int64) AdminSet {
	set := make(AdminSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Contains reports whether the given user ID is an admin.
func (a AdminSet) Contains(id int64) bool {
	_, ok := a[id]
	return ok
}
