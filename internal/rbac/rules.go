package rbac

import (
	"fmt"
	"strings"
)

// Role is the closed set of account kinds.
type Role int

const (
	RoleUnknown Role = iota
	RoleStudent
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleAdmin:
		return "admin"
	case RoleUnknown:
		return ""
	}
	panic(fmt.Sprintf("rbac: unhandled role %d", int(r)))
}

// ParseRole maps a stored or claimed role name to a Role. "user" and "stud"
// are accepted for student accounts created by older clients.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "student", "stud", "user":
		return RoleStudent, nil
	case "admin":
		return RoleAdmin, nil
	}
	return RoleUnknown, fmt.Errorf("unknown role %q", s)
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

const (
	PermCatalogView   = "catalog:view"
	PermCatalogManage = "catalog:manage"
	PermScoreSubmit   = "score:submit"
	PermScoreViewOwn  = "score:view-own"
	PermScoreViewAll  = "score:view-all"
	PermSummaryUser   = "summary:user"
	PermSummaryAdmin  = "summary:admin"
	PermUsersExport   = "users:export"
	PermEventsRead    = "events:read"
)

// Permissions returns the grants for a role.
func (r Role) Permissions() []string {
	switch r {
	case RoleStudent:
		return []string{
			PermCatalogView,
			PermScoreSubmit,
			PermScoreViewOwn,
			PermSummaryUser,
		}
	case RoleAdmin:
		return []string{"*"}
	case RoleUnknown:
		return nil
	}
	panic(fmt.Sprintf("rbac: unhandled role %d", int(r)))
}
