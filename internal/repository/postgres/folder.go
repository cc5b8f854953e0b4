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

type FolderStore struct {
	pool *pgxpool.Pool
}

func NewFolderStore(pool *pgxpool.Pool) *FolderStore {
	return &FolderStore{pool: pool}
}

func (s *FolderStore) Create(ctx context.Context, workspaceID uuid.UUID, name string, parentFolderID *uuid.UUID) (*models.Folder, error) {
	query := `
		INSERT INTO folders (id, workspace_id, name, parent_folder_id, created_at)
		VALUES (uuid_generate_v4(), $1, $2, $3, now())
		RETURNING id, workspace_id, name, parent_folder_id, created_at`

	var f models.Folder
	err := s.pool.QueryRow(ctx, query, workspaceID, name, parentFolderID).Scan(
		&f.ID,
		&f.WorkspaceID,
		&f.Name,
		&f.ParentFolderID,
		&f.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert folder: %w", err)
	}
	return &f, nil
}

func (s *FolderStore) GetByID(ctx context.Context, workspaceID, folderID uuid.UUID) (*models.Folder, error) {
	query := `
		SELECT id, workspace_id, name, parent_folder_id, created_at
		FROM folders
		WHERE id = $1 AND workspace_id = $2`

	var f models.Folder
	err := s.pool.QueryRow(ctx, query, folderID, workspaceID).Scan(
		&f.ID,
		&f.WorkspaceID,
		&f.Name,
		&f.ParentFolderID,
		&f.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get folder: %w", err)
	}
	return &f, nil
}

func (s *FolderStore) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]models.Folder, error) {
	query := `
		SELECT id, workspace_id, name, parent_folder_id, created_at
		FROM folders
		WHERE workspace_id = $1
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	folders := make([]models.Folder, 0)
	for rows.Next() {
		var f models.Folder
		if err := rows.Scan(&f.ID, &f.WorkspaceID, &f.Name, &f.ParentFolderID, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}

	return folders, nil
}

func (s *FolderStore) Move(ctx context.Context, workspaceID, folderID uuid.UUID, newParentID *uuid.UUID) error {
	query := `
		UPDATE folders
		SET parent_folder_id = $3
		WHERE id = $1 AND workspace_id = $2`

	tag, err := s.pool.Exec(ctx, query, folderID, workspaceID, newParentID)
	if err != nil {
		return fmt.Errorf("move folder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteCascade removes the folder closure and its files in one
// transaction. Files first: should the transaction ever be split, the
// failure mode is deleted files with surviving folders, never a file
// referencing a folder that no longer exists.
func (s *FolderStore) DeleteCascade(ctx context.Context, workspaceID uuid.UUID, folderIDs []uuid.UUID) (int64, int64, error) {
	if len(folderIDs) == 0 {
		return 0, 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin folder cascade: %w", err)
	}
	defer tx.Rollback(ctx)

	fileTag, err := tx.Exec(ctx,
		`DELETE FROM files WHERE workspace_id = $1 AND folder_id = ANY($2)`,
		workspaceID, folderIDs,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("delete subtree files: %w", err)
	}

	folderTag, err := tx.Exec(ctx,
		`DELETE FROM folders WHERE workspace_id = $1 AND id = ANY($2)`,
		workspaceID, folderIDs,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("delete subtree folders: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit folder cascade: %w", err)
	}
	return folderTag.RowsAffected(), fileTag.RowsAffected(), nil
}
