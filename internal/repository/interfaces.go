package repository

import (
	"context"

	"github.com/arvind-28/codeorbit/internal/models"
	"github.com/google/uuid"
)

// Every method takes a context (all of this is I/O) and, where it reads
// or writes workspace content, a workspaceID: queries are always scoped
// so a guessed UUID from another workspace matches nothing.
//
// Lookups return nil, nil for not-found; handlers translate that to 404.

// UserRepository handles accounts and the invite lists stored on them.
type UserRepository interface {
	Create(ctx context.Context, email, displayName, photoURL, passwordHash string) (*models.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error

	// SearchByEmailPrefix powers the invite search box: case-insensitive
	// prefix match, bounded result set.
	SearchByEmailPrefix(ctx context.Context, prefix string, limit int) ([]models.User, error)

	// AddInvite appends a workspace id to the user's pending invites;
	// inviting twice is a no-op (set semantics).
	AddInvite(ctx context.Context, userID, workspaceID uuid.UUID) error
	RemoveInvite(ctx context.Context, userID, workspaceID uuid.UUID) error
	ListInvites(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// WorkspaceRepository handles the top-level containers.
type WorkspaceRepository interface {
	Create(ctx context.Context, name string, isPublic bool, ownerID uuid.UUID) (*models.Workspace, error)
	GetByID(ctx context.Context, workspaceID uuid.UUID) (*models.Workspace, error)

	// ListVisible returns workspaces the user is a member of plus public
	// ones, newest first, with member/folder/file counts for the list view.
	ListVisible(ctx context.Context, userID uuid.UUID) ([]models.WorkspaceSummary, error)

	// Delete removes the workspace and everything owned by it (folders,
	// files, members, messages) in one transaction. Cursor entries live
	// in redis and are purged by the caller.
	Delete(ctx context.Context, workspaceID uuid.UUID) error
}

// MemberRepository handles role assignments. One row per (workspace, user).
type MemberRepository interface {
	Add(ctx context.Context, m models.Member) error
	Remove(ctx context.Context, workspaceID, userID uuid.UUID) error
	List(ctx context.Context, workspaceID uuid.UUID) ([]models.Member, error)

	// RoleOf is the hot-path check run before every mutation and ws
	// subscribe. RoleNone when no member row exists.
	RoleOf(ctx context.Context, workspaceID, userID uuid.UUID) (models.Role, error)
}

// FolderRepository handles tree nodes.
type FolderRepository interface {
	Create(ctx context.Context, workspaceID uuid.UUID, name string, parentFolderID *uuid.UUID) (*models.Folder, error)
	GetByID(ctx context.Context, workspaceID, folderID uuid.UUID) (*models.Folder, error)
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]models.Folder, error)
	Move(ctx context.Context, workspaceID, folderID uuid.UUID, newParentID *uuid.UUID) error

	// DeleteCascade removes the given folder ids and every file whose
	// folder id is in the set, atomically. Returns folders and files
	// deleted. The id closure comes from tree.Subtree so partial failure
	// can never leave a file pointing at a deleted folder.
	DeleteCascade(ctx context.Context, workspaceID uuid.UUID, folderIDs []uuid.UUID) (foldersDeleted, filesDeleted int64, err error)
}

// FileRepository handles documents. Content updates are whole-value
// overwrites: last writer wins, by design.
type FileRepository interface {
	Create(ctx context.Context, workspaceID uuid.UUID, name string, folderID *uuid.UUID) (*models.File, error)
	GetByID(ctx context.Context, workspaceID, fileID uuid.UUID) (*models.File, error)
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]models.File, error)
	UpdateContent(ctx context.Context, workspaceID, fileID uuid.UUID, content string) (*models.File, error)
	Delete(ctx context.Context, workspaceID, fileID uuid.UUID) error
}

// MessageRepository handles the append-only chat log.
type MessageRepository interface {
	Create(ctx context.Context, workspaceID, senderID uuid.UUID, senderName, avatarURL, body string) (*models.Message, error)

	// ListRecent returns the most recent `limit` messages in ascending
	// created_at order (ties broken by id), never a message from another
	// workspace.
	ListRecent(ctx context.Context, workspaceID uuid.UUID, limit int) ([]models.Message, error)

	// Clear deletes every message for the workspace; returns the count.
	Clear(ctx context.Context, workspaceID uuid.UUID) (int64, error)
}
