package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a user's standing inside a workspace. It is derived from the
// member record and drives which mutations are offered and accepted.
type Role string

const (
	RoleOwner       Role = "owner"
	RoleContributor Role = "contributor"
	RoleViewer      Role = "viewer"
	RoleNone        Role = "none" // not a member
)

// CanMutate reports whether the role may create or delete workspace
// content (folders, files, chat clear). Viewers and non-members read only.
func (r Role) CanMutate() bool {
	return r == RoleOwner || r == RoleContributor
}

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleContributor, RoleViewer:
		return true
	}
	return false
}

// User is a registered account. Invites holds workspace ids pending
// acceptance; accepting one creates a Member row and removes the id.
type User struct {
	ID           uuid.UUID   `json:"id"`
	Email        string      `json:"email"`
	DisplayName  string      `json:"display_name"`
	PhotoURL     string      `json:"photo_url,omitempty"`
	PasswordHash string      `json:"-"`
	Invites      []uuid.UUID `json:"invites"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Workspace is the top-level shared project container. Folders, files,
// members, messages and cursors all reference it by id; deleting the
// workspace cascades to every one of them.
type Workspace struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	IsPublic  bool      `json:"is_public"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// WorkspaceSummary is a workspace with the counts the dashboard list
// renders. Counts come from the same query, not follow-up requests.
type WorkspaceSummary struct {
	Workspace
	MemberCount int64 `json:"member_count"`
	FolderCount int64 `json:"folder_count"`
	FileCount   int64 `json:"file_count"`
}

// Member is a user's role assignment within a workspace. Exactly one row
// exists per (workspace, user) pair.
type Member struct {
	WorkspaceID uuid.UUID `json:"workspace_id"`
	UserID      uuid.UUID `json:"user_id"`
	Role        Role      `json:"role"`
	DisplayName string    `json:"display_name"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Folder is a node in the workspace file tree. A nil ParentFolderID means
// root level. Parent chains must terminate at root; the tree projector
// still guards against corrupt cyclic chains instead of trusting this.
type Folder struct {
	ID             uuid.UUID  `json:"id"`
	WorkspaceID    uuid.UUID  `json:"workspace_id"`
	Name           string     `json:"name"`
	ParentFolderID *uuid.UUID `json:"parent_folder_id"`
	CreatedAt      time.Time  `json:"created_at"`
}

// File is an editable text document. A nil FolderID means root level.
// Content is overwritten whole on save: last writer wins, no version
// check. Concurrent editors of the same file silently overwrite each
// other, an accepted limitation of this design.
type File struct {
	ID          uuid.UUID  `json:"id"`
	WorkspaceID uuid.UUID  `json:"workspace_id"`
	FolderID    *uuid.UUID `json:"folder_id"`
	Name        string     `json:"name"`
	Content     string     `json:"content"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Message is one chat entry. IDs are bigserial: messages are the
// highest-volume table and the sequence doubles as a stable tiebreaker
// for equal created_at values.
type Message struct {
	ID          int64     `json:"id"`
	WorkspaceID uuid.UUID `json:"workspace_id"`
	SenderID    uuid.UUID `json:"sender_id"`
	SenderName  string    `json:"sender_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}

// CursorEntry is a user's live pointer position inside a workspace.
// Ephemeral: stored in Redis with a TTL, overwritten at high frequency,
// removed best-effort on disconnect. Absence means "not present".
type CursorEntry struct {
	UserID      uuid.UUID `json:"user_id"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	DisplayName string    `json:"display_name"`
	Color       string    `json:"color"`
	UpdatedAt   time.Time `json:"updated_at"`
}
