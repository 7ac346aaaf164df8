package audit

import (
	"fmt"
	"strings"

	"github.com/user/secaudit/pkg/store"
)

// Role is the already-resolved role of the caller
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleAuditor Role = "AUDITOR"
)

func ParseRole(v string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(v)))
	switch r {
	case RoleAdmin, RoleAuditor:
		return r, nil
	}
	return "", fmt.Errorf("invalid role: %q", v)
}

// Actor identifies who performs an operation
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CanOperate reports whether the actor owns the scan or is an administrator
func CanOperate(a Actor, sc *store.Scan) bool {
	return a.IsAdmin() || (a.ID != "" && sc.AssignedTo == a.ID)
}

// scope returns the assignee filter for list queries
func (a Actor) scope() string {
	if a.IsAdmin() {
		return ""
	}
	return a.ID
}
