package service

import (
	"time"

	"github.com/keyforge/keyforge/internal/model"
	"github.com/keyforge/keyforge/internal/pkg/errs"
)

// Decision is the outcome of evaluating a share link against a requester.
type Decision struct {
	Granted bool
	Role    model.Role
}

// Evaluate is the access decision function. It is deterministic and
// side-effect free so it can be tested in isolation.
//
// Expired links short-circuit with errs.ErrGone before any role logic,
// even for the owner. Otherwise: owner gets Editor unconditionally, public
// links grant the base role to anyone, private links grant the base role
// only to requesters on the allow-list. A nil requester (anonymous or a
// lookup miss) can only pass the public path.
func Evaluate(link *model.ShareLink, requester *model.User, now time.Time) (Decision, error) {
	if link.Expired(now) {
		return Decision{}, errs.ErrGone
	}
	if requester != nil && requester.ID == link.OwnerID {
		return Decision{Granted: true, Role: model.RoleEditor}, nil
	}
	if link.IsPublic {
		return Decision{Granted: true, Role: link.Role}, nil
	}
	if requester != nil && link.AllowsEmail(requester.Email) {
		return Decision{Granted: true, Role: link.Role}, nil
	}
	return Decision{}, nil
}

// DenialError maps an ungranted decision to the error a caller should
// surface: anonymous against a private link needs a login, an identified
// requester off the allow-list is forbidden.
func DenialError(requester *model.User) error {
	if requester == nil {
		return errs.ErrLoginRequired
	}
	return errs.ErrForbidden
}

// DenialReason is the hint attached to reduced share projections.
func DenialReason(requester *model.User) string {
	if requester == nil {
		return "login_required"
	}
	return "not_on_allowlist"
}
