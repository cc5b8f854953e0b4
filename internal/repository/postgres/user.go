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

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `id, email, display_name, photo_url, password_hash, invites, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&u.PhotoURL,
		&u.PasswordHash,
		&u.Invites,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if u.Invites == nil {
		u.Invites = []uuid.UUID{}
	}
	return &u, nil
}

func (s *UserStore) Create(ctx context.Context, email, displayName, photoURL, passwordHash string) (*models.User, error) {
	query := `
		INSERT INTO users (email, display_name, photo_url, password_hash, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, query, email, displayName, photoURL, passwordHash))
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2 WHERE id = $1`
	if _, err := s.pool.Exec(ctx, query, userID, passwordHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// SearchByEmailPrefix matches emails starting with the prefix,
// case-insensitively. The prefix is escaped so a stray % or _ in the
// search box cannot widen the match.
func (s *UserStore) SearchByEmailPrefix(ctx context.Context, prefix string, limit int) ([]models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email ILIKE replace(replace($1, '_', '\_'), '%', '\%') || '%'
		ORDER BY email
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

// AddInvite appends workspaceID to the user's invites unless already
// present. array_append inside a guarded UPDATE keeps this a single
// atomic statement, with no read-modify-write race between two inviters.
func (s *UserStore) AddInvite(ctx context.Context, userID, workspaceID uuid.UUID) error {
	query := `
		UPDATE users
		SET invites = array_append(invites, $2)
		WHERE id = $1 AND NOT ($2 = ANY(invites))`

	if _, err := s.pool.Exec(ctx, query, userID, workspaceID); err != nil {
		return fmt.Errorf("add invite: %w", err)
	}
	return nil
}

func (s *UserStore) RemoveInvite(ctx context.Context, userID, workspaceID uuid.UUID) error {
	query := `
		UPDATE users
		SET invites = array_remove(invites, $2)
		WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, userID, workspaceID); err != nil {
		return fmt.Errorf("remove invite: %w", err)
	}
	return nil
}

func (s *UserStore) ListInvites(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT invites FROM users WHERE id = $1`

	var invites []uuid.UUID
	err := s.pool.QueryRow(ctx, query, userID).Scan(&invites)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []uuid.UUID{}, nil
		}
		return nil, fmt.Errorf("list invites: %w", err)
	}
	if invites == nil {
		invites = []uuid.UUID{}
	}
	return invites, nil
}
