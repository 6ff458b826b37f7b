// Package perm models the three-tier caller capability used by every
// command and vote: admin > staff > participant.
package perm

// Permission is an ordered capability level. Higher values include lower ones.
type Permission int

const (
	None Permission = iota
	Participant
	Staff
	Admin
)

func (p Permission) String() string {
	switch p {
	case Participant:
		return "participant"
	case Staff:
		return "staff"
	case Admin:
		return "admin"
	}
	return "none"
}

// Roles maps external role identifiers to a level.
type Roles struct {
	AdminRoles map[string]struct{}
	StaffRoles map[string]struct{}
}

// NewRoles builds a Roles table from role ID lists.
func NewRoles(admin, staff []string) Roles {
	r := Roles{
		AdminRoles: make(map[string]struct{}, len(admin)),
		StaffRoles: make(map[string]struct{}, len(staff)),
	}
	for _, id := range admin {
		if id != "" {
			r.AdminRoles[id] = struct{}{}
		}
	}
	for _, id := range staff {
		if id != "" {
			r.StaffRoles[id] = struct{}{}
		}
	}
	return r
}

// Level returns the highest level granted by the given roles. Everyone
// is at least a Participant.
func (r Roles) Level(roles []string) Permission {
	lvl := Participant
	for _, id := range roles {
		if _, ok := r.AdminRoles[id]; ok {
			return Admin
		}
		if _, ok := r.StaffRoles[id]; ok {
			lvl = Staff
		}
	}
	return lvl
}

// Check reports whether the caller holding roles meets required.
func (r Roles) Check(roles []string, required Permission) bool {
	return r.Level(roles) >= required
}

// AtLeast reports whether p meets required.
func (p Permission) AtLeast(required Permission) bool { return p >= required }
