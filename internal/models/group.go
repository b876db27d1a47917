package models

// Group is a named community users join. The name is unique.
//
// A group always has at least one membership row while it exists: it is created
// together with its creator's admin membership and deleted when its last approved
// member leaves.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the unique display name of the group.
	Name string

	Description string

	CreatedAt int64
	UpdatedAt int64
}

// GroupUpdate is a partial update of a group. Nil fields are left unchanged.
type GroupUpdate struct {
	Name        *string
	Description *string
}

// Empty reports whether the update changes nothing.
func (u GroupUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil
}

// Membership is one row of the users × groups relation.
type Membership struct {
	GroupID string
	UserID  string

	// Approved is false while the membership is a pending join request.
	Approved bool

	// Admin grants elevated rights within the group.
	Admin bool

	CreatedAt int64
}

// Member is a user as seen through one of their group memberships.
type Member struct {
	User     *User
	Approved bool
	Admin    bool
}

// UserGroup is a group as seen by one of its members, with that member's flags.
type UserGroup struct {
	Group    *Group
	Approved bool
	Admin    bool
}

// MemberFilter selects which membership rows a member listing returns.
type MemberFilter int

const (
	// ApprovedMembers lists approved members, admins included.
	ApprovedMembers MemberFilter = iota
	// ApprovedAdmins lists approved members with the admin flag.
	ApprovedAdmins
	// PendingRequests lists rows still waiting for approval.
	PendingRequests
)

// Post is a message board entry inside a group. Messages addressed to a post
// are its comments.
type Post struct {
	ID      string
	GroupID string
	UserID  string
	Title   string
	Body    string

	CreatedAt int64
	UpdatedAt int64
}
