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

type WorkspaceStore struct {
	pool *pgxpool.Pool
}

func NewWorkspaceStore(pool *pgxpool.Pool) *WorkspaceStore {
	return &WorkspaceStore{pool: pool}
}

func (s *WorkspaceStore) Create(ctx context.Context, name string, isPublic bool, ownerID uuid.UUID) (*models.Workspace, error) {
	query := `
		INSERT INTO workspaces (id, name, is_public, owner_id, created_at)
		VALUES (uuid_generate_v4(), $1, $2, $3, now())
		RETURNING id, name, is_public, owner_id, created_at`

	var w models.Workspace
	err := s.pool.QueryRow(ctx, query, name, isPublic, ownerID).Scan(
		&w.ID,
		&w.Name,
		&w.IsPublic,
		&w.OwnerID,
		&w.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert workspace: %w", err)
	}
	return &w, nil
}

func (s *WorkspaceStore) GetByID(ctx context.Context, workspaceID uuid.UUID) (*models.Workspace, error) {
	query := `
		SELECT id, name, is_public, owner_id, created_at
		FROM workspaces
		WHERE id = $1`

	var w models.Workspace
	err := s.pool.QueryRow(ctx, query, workspaceID).Scan(
		&w.ID,
		&w.Name,
		&w.IsPublic,
		&w.OwnerID,
		&w.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get workspace: %w", err)
	}
	return &w, nil
}

// ListVisible feeds the dashboard: one query including the counts, so
// listing N workspaces is not N follow-up count queries.
func (s *WorkspaceStore) ListVisible(ctx context.Context, userID uuid.UUID) ([]models.WorkspaceSummary, error) {
	query := `
		SELECT DISTINCT w.id, w.name, w.is_public, w.owner_id, w.created_at,
			(SELECT count(*) FROM workspace_members wm WHERE wm.workspace_id = w.id) AS member_count,
			(SELECT count(*) FROM folders f WHERE f.workspace_id = w.id) AS folder_count,
			(SELECT count(*) FROM files fi WHERE fi.workspace_id = w.id) AS file_count
		FROM workspaces w
		LEFT JOIN workspace_members m ON m.workspace_id = w.id AND m.user_id = $1
		WHERE w.is_public OR m.user_id IS NOT NULL
		ORDER BY w.created_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	workspaces := make([]models.WorkspaceSummary, 0)
	for rows.Next() {
		var w models.WorkspaceSummary
		if err := rows.Scan(
			&w.ID,
			&w.Name,
			&w.IsPublic,
			&w.OwnerID,
			&w.CreatedAt,
			&w.MemberCount,
			&w.FolderCount,
			&w.FileCount,
		); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		workspaces = append(workspaces, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workspaces: %w", err)
	}

	return workspaces, nil
}

// Delete removes the workspace and all owned rows in one transaction, so
// a failure partway leaves everything intact. Pending invites referencing
// the workspace are pruned from user records too.
func (s *WorkspaceStore) Delete(ctx context.Context, workspaceID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete workspace: %w", err)
	}
	defer tx.Rollback(ctx)

	statements := []string{
		`DELETE FROM files WHERE workspace_id = $1`,
		`DELETE FROM folders WHERE workspace_id = $1`,
		`DELETE FROM messages WHERE workspace_id = $1`,
		`DELETE FROM workspace_members WHERE workspace_id = $1`,
		`UPDATE users SET invites = array_remove(invites, $1) WHERE $1 = ANY(invites)`,
		`DELETE FROM workspaces WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt, workspaceID); err != nil {
			return fmt.Errorf("delete workspace: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete workspace: %w", err)
	}
	return nil
}
