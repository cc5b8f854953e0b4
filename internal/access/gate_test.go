package access

import (
	"context"
	"errors"
	"testing"

	"github.com/arvind-28/codeorbit/internal/models"
	"github.com/google/uuid"
)

type fakeMembers struct {
	roles map[uuid.UUID]models.Role
}

func (f *fakeMembers) RoleOf(_ context.Context, _, userID uuid.UUID) (models.Role, error) {
	if role, ok := f.roles[userID]; ok {
		return role, nil
	}
	return models.RoleNone, nil
}

func TestRequireMutateByRole(t *testing.T) {
	owner := uuid.New()
	contributor := uuid.New()
	viewer := uuid.New()
	stranger := uuid.New()

	gate := NewGate(&fakeMembers{roles: map[uuid.UUID]models.Role{
		owner:       models.RoleOwner,
		contributor: models.RoleContributor,
		viewer:      models.RoleViewer,
	}})
	ws := uuid.New()

	if err := gate.RequireMutate(context.Background(), ws, owner); err != nil {
		t.Fatalf("owner must be allowed to mutate: %v", err)
	}
	if err := gate.RequireMutate(context.Background(), ws, contributor); err != nil {
		t.Fatalf("contributor must be allowed to mutate: %v", err)
	}
	if err := gate.RequireMutate(context.Background(), ws, viewer); !errors.Is(err, ErrForbidden) {
		t.Fatalf("viewer must never get mutation affordances, got %v", err)
	}
	if err := gate.RequireMutate(context.Background(), ws, stranger); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-member must be forbidden, got %v", err)
	}
}

func TestRequireOwner(t *testing.T) {
	owner := uuid.New()
	contributor := uuid.New()

	gate := NewGate(&fakeMembers{roles: map[uuid.UUID]models.Role{
		owner:       models.RoleOwner,
		contributor: models.RoleContributor,
	}})
	ws := uuid.New()

	if err := gate.RequireOwner(context.Background(), ws, owner); err != nil {
		t.Fatalf("owner check failed: %v", err)
	}
	if err := gate.RequireOwner(context.Background(), ws, contributor); !errors.Is(err, ErrForbidden) {
		t.Fatalf("contributor is not the owner, got %v", err)
	}
}

func TestRoleOfNonMember(t *testing.T) {
	gate := NewGate(&fakeMembers{roles: map[uuid.UUID]models.Role{}})
	role, err := gate.RoleOf(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("role lookup: %v", err)
	}
	if role != models.RoleNone {
		t.Fatalf("expected none, got %s", role)
	}
}
