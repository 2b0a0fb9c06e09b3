// Package authz decides which roles may call which ledger operations. It is
// checked before a command reaches the ledger.
package authz

import (
	"errors"
	"fmt"

	"github.com/Israelshecktar/IMS/internal/domain/users"
)

var ErrForbidden = errors.New("forbidden")

type Operation string

const (
	OpAdd      Operation = "add"
	OpUpdate   Operation = "update"
	OpDelete   Operation = "delete"
	OpWithdraw Operation = "withdraw"
	OpRead     Operation = "read"
	OpReport   Operation = "report"
	OpScan     Operation = "scan"
	OpUsers    Operation = "users"
)

// Policy lists the roles allowed per operation.
type Policy map[Operation][]users.Role

func DefaultPolicy() Policy {
	admin := []users.Role{users.RoleAdmin}
	anyone := []users.Role{users.RoleAdmin, users.RoleMember}
	return Policy{
		OpAdd:      admin,
		OpUpdate:   admin,
		OpDelete:   admin,
		OpScan:     admin,
		OpUsers:    admin,
		OpWithdraw: anyone,
		OpRead:     anyone,
		OpReport:   anyone,
	}
}

// Authorize returns nil when role may perform op. Unlisted operations are denied.
func (p Policy) Authorize(role users.Role, op Operation) error {
	for _, r := range p[op] {
		if r == role {
			return nil
		}
	}
	if role == users.RoleNone {
		return fmt.Errorf("%w: unknown user may not %s", ErrForbidden, op)
	}
	return fmt.Errorf("%w: role %s may not %s", ErrForbidden, role, op)
}
