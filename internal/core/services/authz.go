package services

import "github.com/melih/lighthouse-panel/internal/core/domain"

type Action int

const (
	// ActionRead and ActionWrite are allowed to the resource owner and admins.
	ActionRead Action = iota
	ActionWrite
	// ActionManage is allowed to admins only.
	ActionManage
)

func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionWrite:
		return "write"
	default:
		return "manage"
	}
}

// Owned is a registry record exclusively owned by one identity.
type Owned interface {
	Owner() string
}

// Authorize is the single access decision for every operation.
// res may be nil for operations that do not target an owned record.
func Authorize(sub domain.Subject, res Owned, action Action) error {
	if sub.ID == "" {
		return domain.Unauthorized("authentication required")
	}
	if sub.IsAdmin() {
		return nil
	}
	if action == ActionManage {
		return domain.Forbidden("admin role required")
	}
	if res == nil || res.Owner() == sub.ID {
		return nil
	}
	return domain.Forbidden("you do not have access to this resource")
}

// ownerScope returns the owner filter for list operations: admins see everything.
func ownerScope(sub domain.Subject) string {
	if sub.IsAdmin() {
		return ""
	}
	return sub.ID
}
