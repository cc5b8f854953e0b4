// Package access derives a user's role within a workspace and gates
// mutations on it. Handlers consult the gate before every write; the
// client additionally receives the membership snapshot so it can hide
// affordances, but the server-side check is the one that counts.
package access

import (
	"context"
	"fmt"

	"github.com/arvind-28/codeorbit/internal/models"
	"github.com/google/uuid"
)

// MemberReader is the slice of the member repository the gate needs.
type MemberReader interface {
	RoleOf(ctx context.Context, workspaceID, userID uuid.UUID) (models.Role, error)
}

type Gate struct {
	members MemberReader
}

func NewGate(members MemberReader) *Gate {
	return &Gate{members: members}
}

// RoleOf resolves the member record to a role; RoleNone when the user is
// not a member.
func (g *Gate) RoleOf(ctx context.Context, workspaceID, userID uuid.UUID) (models.Role, error) {
	role, err := g.members.RoleOf(ctx, workspaceID, userID)
	if err != nil {
		return models.RoleNone, fmt.Errorf("resolve role: %w", err)
	}
	return role, nil
}

// RequireMutate returns nil only for owners and contributors.
func (g *Gate) RequireMutate(ctx context.Context, workspaceID, userID uuid.UUID) error {
	role, err := g.RoleOf(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if !role.CanMutate() {
		return ErrForbidden
	}
	return nil
}

// RequireOwner returns nil only for the workspace owner.
func (g *Gate) RequireOwner(ctx context.Context, workspaceID, userID uuid.UUID) error {
	role, err := g.RoleOf(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if role != models.RoleOwner {
		return ErrForbidden
	}
	return nil
}

// ErrForbidden marks a role check failure; handlers map it to 403.
var ErrForbidden = fmt.Errorf("insufficient role")
