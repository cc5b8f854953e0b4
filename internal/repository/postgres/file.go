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

type FileStore struct {
	pool *pgxpool.Pool
}

func NewFileStore(pool *pgxpool.Pool) *FileStore {
	return &FileStore{pool: pool}
}

const fileColumns = `id, workspace_id, folder_id, name, content, created_at, updated_at`

func (s *FileStore) Create(ctx context.Context, workspaceID uuid.UUID, name string, folderID *uuid.UUID) (*models.File, error) {
	query := `
		INSERT INTO files (id, workspace_id, folder_id, name, content, created_at, updated_at)
		VALUES (uuid_generate_v4(), $1, $2, $3, '', now(), now())
		RETURNING ` + fileColumns

	var f models.File
	err := s.pool.QueryRow(ctx, query, workspaceID, folderID, name).Scan(
		&f.ID,
		&f.WorkspaceID,
		&f.FolderID,
		&f.Name,
		&f.Content,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert file: %w", err)
	}
	return &f, nil
}

func (s *FileStore) GetByID(ctx context.Context, workspaceID, fileID uuid.UUID) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1 AND workspace_id = $2`

	var f models.File
	err := s.pool.QueryRow(ctx, query, fileID, workspaceID).Scan(
		&f.ID,
		&f.WorkspaceID,
		&f.FolderID,
		&f.Name,
		&f.Content,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get file: %w", err)
	}
	return &f, nil
}

func (s *FileStore) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE workspace_id = $1 ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	files := make([]models.File, 0)
	for rows.Next() {
		var f models.File
		if err := rows.Scan(&f.ID, &f.WorkspaceID, &f.FolderID, &f.Name, &f.Content, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}

	return files, nil
}

// UpdateContent overwrites the whole content blob. Deliberately no
// version check: the most recent write wins, and concurrent editors of
// the same file overwrite each other without any conflict surfaced.
func (s *FileStore) UpdateContent(ctx context.Context, workspaceID, fileID uuid.UUID, content string) (*models.File, error) {
	query := `
		UPDATE files
		SET content = $3, updated_at = now()
		WHERE id = $1 AND workspace_id = $2
		RETURNING ` + fileColumns

	var f models.File
	err := s.pool.QueryRow(ctx, query, fileID, workspaceID, content).Scan(
		&f.ID,
		&f.WorkspaceID,
		&f.FolderID,
		&f.Name,
		&f.Content,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update file content: %w", err)
	}
	return &f, nil
}

func (s *FileStore) Delete(ctx context.Context, workspaceID, fileID uuid.UUID) error {
	query := `DELETE FROM files WHERE id = $1 AND workspace_id = $2`

	_, err := s.pool.Exec(ctx, query, fileID, workspaceID)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}
