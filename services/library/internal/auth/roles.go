package auth

import "strings"

// Role is the closed set of authorization roles. External role strings are
// mapped through roleNames; anything unmapped becomes RoleUnknown, which
// matches no authorization rule.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleLibrarian Role = "librarian"
	RoleBorrower  Role = "borrower"
	RoleUnknown   Role = "unknown"
)

// roleNames maps normalized external role strings to the closed enum. The
// long names are the legacy group names from the Auth Service.
var roleNames = map[string]Role{
	"admin":                        RoleAdmin,
	"system admin":                 RoleAdmin,
	"librarian":                    RoleLibrarian,
	"library employee":             RoleLibrarian,
	"librarian - library employee": RoleLibrarian,
	"student":                      RoleBorrower,
}

// ParseRole normalizes an external role string (trimmed, lower-cased) and
// maps it onto the closed role set.
func ParseRole(raw string) Role {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if role, ok := roleNames[normalized]; ok {
		return role
	}
	return RoleUnknown
}

// Elevated reports whether the role may manage catalog and inventory
// resources and see every loan record.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleLibrarian
}

// TokenUser is the identity resolved from a verified bearer token.
type TokenUser struct {
	ID            string `json:"user_id"`
	Username      string `json:"username"`
	Role          Role   `json:"role"`
	StudentNumber string `json:"student_number"`
}
