package auth

import "github.com/google/uuid"

// Role is the closed set of role tags a user may carry. A user can hold
// several roles at once; checks are always OR'd, never AND'd.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleExpert    Role = "EXPERT"
	RoleSupport   Role = "SUPPORT"
	RoleCareGiver Role = "CARE_GIVER"
	RoleUser      Role = "USER"
)

// AllRoles lists every valid role tag.
var AllRoles = []Role{RoleAdmin, RoleExpert, RoleSupport, RoleCareGiver, RoleUser}

// ValidRole reports whether s names a known role.
func ValidRole(s string) bool {
	for _, r := range AllRoles {
		if string(r) == s {
			return true
		}
	}
	return false
}

// Actor is a resolved caller. Registered actors carry a user id; guests are
// phone-only identities used for unauthenticated intake flows.
type Actor struct {
	UserID uuid.UUID
	Phone  string
	Roles  []Role
}

// Guest builds a phone-only actor.
func Guest(phone string) Actor {
	return Actor{Phone: phone}
}

// IsGuest reports whether the actor has no registered user identity.
func (a Actor) IsGuest() bool { return a.UserID == uuid.Nil }

// HasRole reports whether the actor holds at least one of the required roles.
func (a Actor) HasRole(required ...Role) bool {
	for _, req := range required {
		for _, has := range a.Roles {
			if has == req {
				return true
			}
		}
	}
	return false
}

// IsStaff reports broad staff visibility (ADMIN, EXPERT or SUPPORT).
func (a Actor) IsStaff() bool {
	return a.HasRole(RoleAdmin, RoleExpert, RoleSupport)
}
