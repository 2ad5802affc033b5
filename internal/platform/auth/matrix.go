package auth

import (
	"context"

	"github.com/carelink/carelink/internal/platform/apperr"
)

// Resource and Action identify a cell in the permission matrix.
type Resource string

type Action string

const (
	ResourceRequest  Resource = "request"
	ResourcePatient  Resource = "patient"
	ResourceDocument Resource = "document"
	ResourceUser     Resource = "user"
	ResourceCatalog  Resource = "catalog"
)

const (
	ActionRead      Action = "read"
	ActionReadAll   Action = "read_all"
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionAssign    Action = "assign"
	ActionClose     Action = "close"
	ActionResolve   Action = "resolve"
	ActionVerify    Action = "verify"
	ActionMintToken Action = "mint_token"
	ActionSearch    Action = "search"
)

// Matrix is the declarative (resource, action) -> allowed-roles table.
// It covers role-based gates only; ownership rules (assigned caregiver,
// primary/secondary requester link) stay with the owning service.
type Matrix map[Resource]map[Action][]Role

// DefaultMatrix returns the authorization table for the coordination engine.
func DefaultMatrix() Matrix {
	staff := []Role{RoleAdmin, RoleExpert, RoleSupport}
	editors := []Role{RoleAdmin, RoleExpert}
	return Matrix{
		ResourceRequest: {
			ActionReadAll:   staff,
			ActionUpdate:    editors,
			ActionAssign:    editors,
			ActionClose:     editors,
			ActionResolve:   {RoleAdmin, RoleSupport},
			ActionMintToken: editors,
		},
		ResourcePatient: {
			ActionReadAll: staff,
			ActionSearch:  staff,
			ActionUpdate:  editors,
			ActionVerify:  editors,
		},
		ResourceDocument: {
			ActionReadAll: staff,
			ActionVerify:  editors,
		},
		ResourceUser: {
			ActionRead:   editors,
			ActionCreate: editors,
		},
		ResourceCatalog: {
			ActionUpdate: editors,
		},
	}
}

// Allowed reports whether any of the actor's roles grants (resource, action).
// Unknown cells deny.
func (m Matrix) Allowed(a Actor, res Resource, act Action) bool {
	actions, ok := m[res]
	if !ok {
		return false
	}
	roles, ok := actions[act]
	if !ok {
		return false
	}
	return a.HasRole(roles...)
}

// Authorize checks the matrix for the actor carried by ctx. Guests get
// Unauthenticated, authenticated actors without a granting role Forbidden.
func (m Matrix) Authorize(ctx context.Context, res Resource, act Action) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.IsGuest() {
		return apperr.E(apperr.Unauthenticated, "authentication required")
	}
	if !m.Allowed(actor, res, act) {
		return apperr.E(apperr.Forbidden, "insufficient role")
	}
	return nil
}
