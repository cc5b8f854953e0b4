package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/arvind-28/codeorbit/internal/middleware"
	"github.com/arvind-28/codeorbit/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fakeUserRepo struct {
	users []models.User
}

func (r *fakeUserRepo) Create(ctx context.Context, email, displayName, photoURL, passwordHash string) (*models.User, error) {
	u := models.User{ID: uuid.New(), Email: email, DisplayName: displayName, PhotoURL: photoURL, PasswordHash: passwordHash}
	r.users = append(r.users, u)
	return &u, nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	for _, u := range r.users {
		if u.ID == userID {
			uu := u
			return &uu, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			uu := u
			return &uu, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	return nil
}

func (r *fakeUserRepo) SearchByEmailPrefix(ctx context.Context, prefix string, limit int) ([]models.User, error) {
	out := make([]models.User, 0)
	for _, u := range r.users {
		if strings.HasPrefix(u.Email, prefix) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) AddInvite(ctx context.Context, userID, workspaceID uuid.UUID) error {
	return nil
}

func (r *fakeUserRepo) RemoveInvite(ctx context.Context, userID, workspaceID uuid.UUID) error {
	return nil
}

func (r *fakeUserRepo) ListInvites(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return []uuid.UUID{}, nil
}

func TestSearchReturnsPublicProfileOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)

	caller := models.User{ID: uuid.New(), Email: "dana@example.com", DisplayName: "dana"}
	other := models.User{
		ID:           uuid.New(),
		Email:        "dave@example.com",
		DisplayName:  "dave",
		PasswordHash: "x",
		Invites:      []uuid.UUID{uuid.New()},
	}
	repo := &fakeUserRepo{users: []models.User{caller, other}}
	h := NewUserHandler(repo, zap.NewNop())

	r := gin.New()
	r.GET("/v1/users", func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, caller.ID)
	}, h.Search)

	req := httptest.NewRequest(http.MethodGet, "/v1/users?q=da", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var results []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	// The caller matches the prefix but is excluded from their own search.
	if len(results) != 1 {
		t.Fatalf("expected exactly the other user, got %d results", len(results))
	}
	got := results[0]
	if got["email"] != other.Email || got["display_name"] != other.DisplayName {
		t.Fatalf("unexpected profile: %v", got)
	}

	// Private fields never leave the server.
	for _, key := range []string{"invites", "password_hash", "created_at"} {
		if _, ok := got[key]; ok {
			t.Fatalf("search result must not expose %q: %v", key, got)
		}
	}
}
