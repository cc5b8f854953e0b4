package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/arvind-28/codeorbit/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MemberStore struct {
	pool *pgxpool.Pool
}

func NewMemberStore(pool *pgxpool.Pool) *MemberStore {
	return &MemberStore{pool: pool}
}

// Add inserts the member row. ON CONFLICT keeps the invariant of one row
// per (workspace, user): re-adding refreshes display metadata but never
// demotes an existing role (an owner accepting a stray invite stays
// owner).
func (s *MemberStore) Add(ctx context.Context, m models.Member) error {
	query := `
		INSERT INTO workspace_members (workspace_id, user_id, role, display_name, photo_url, joined_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (workspace_id, user_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    photo_url = EXCLUDED.photo_url`

	_, err := s.pool.Exec(ctx, query, m.WorkspaceID, m.UserID, m.Role, m.DisplayName, m.PhotoURL)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *MemberStore) Remove(ctx context.Context, workspaceID, userID uuid.UUID) error {
	query := `
		DELETE FROM workspace_members
		WHERE workspace_id = $1 AND user_id = $2`

	_, err := s.pool.Exec(ctx, query, workspaceID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

func (s *MemberStore) List(ctx context.Context, workspaceID uuid.UUID) ([]models.Member, error) {
	query := `
		SELECT workspace_id, user_id, role, display_name, photo_url, joined_at
		FROM workspace_members
		WHERE workspace_id = $1
		ORDER BY joined_at`

	rows, err := s.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := make([]models.Member, 0)
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.DisplayName, &m.PhotoURL, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}

	return members, nil
}

func (s *MemberStore) RoleOf(ctx context.Context, workspaceID, userID uuid.UUID) (models.Role, error) {
	query := `
		SELECT role FROM workspace_members
		WHERE workspace_id = $1 AND user_id = $2`

	var role models.Role
	err := s.pool.QueryRow(ctx, query, workspaceID, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RoleNone, nil
		}
		return models.RoleNone, fmt.Errorf("get role: %w", err)
	}
	return role, nil
}
