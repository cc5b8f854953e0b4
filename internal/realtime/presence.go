package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/arvind-28/codeorbit/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Fallbacks for cursor entries written by older or buggy clients.
// Missing fields render safely instead of erroring.
const (
	defaultCursorColor = "#ffffff"
	defaultCursorName  = "Anonymous"
)

// Presence stores live cursor positions in redis, one key per
// (workspace, user), expiring at the idle timeout. The TTL is the backstop
// for browsers that never ran their unload handler: a stale entry
// disappears on its own, and List filters by timestamp besides, so even
// an entry surviving in storage is excluded once idle.
type Presence struct {
	rdb         *redis.Client
	logger      *zap.Logger
	idleTimeout time.Duration
	minInterval time.Duration

	mu       sync.Mutex
	lastPush map[string]time.Time
}

func NewPresence(rdb *redis.Client, idleTimeout, minInterval time.Duration, logger *zap.Logger) *Presence {
	return &Presence{
		rdb:         rdb,
		logger:      logger,
		idleTimeout: idleTimeout,
		minInterval: minInterval,
		lastPush:    make(map[string]time.Time),
	}
}

func cursorKey(workspaceID, userID uuid.UUID) string {
	return fmt.Sprintf("cursor:%s:%s", workspaceID, userID)
}

// Publish stores the entry under its (workspace, user) key, whole-record
// overwrite (cursors are ephemeral and refreshed constantly, so LWW is
// fine here). Publishes arriving faster than the configured minimum
// interval per user are dropped, returning nil. On success the stored
// record is returned, normalized and timestamped, so callers fan out the
// exact record List would serve rather than the raw input.
func (p *Presence) Publish(ctx context.Context, workspaceID uuid.UUID, entry models.CursorEntry) (*models.CursorEntry, error) {
	now := time.Now()
	key := cursorKey(workspaceID, entry.UserID)

	if !p.allow(key, now) {
		return nil, nil
	}

	entry = stampCursor(entry, now)

	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encode cursor: %w", err)
	}
	if err := p.rdb.Set(ctx, key, payload, p.idleTimeout).Err(); err != nil {
		return nil, fmt.Errorf("store cursor: %w", err)
	}
	return &entry, nil
}

// allow implements the per-user throttle.
func (p *Presence) allow(key string, now time.Time) bool {
	if p.minInterval <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if last, ok := p.lastPush[key]; ok && now.Sub(last) < p.minInterval {
		return false
	}
	p.lastPush[key] = now
	return true
}

// List returns all live cursors for a workspace: normalized, and with
// idle entries filtered out even if redis has not expired them yet.
func (p *Presence) List(ctx context.Context, workspaceID uuid.UUID) ([]models.CursorEntry, error) {
	pattern := fmt.Sprintf("cursor:%s:*", workspaceID)

	entries := make([]models.CursorEntry, 0)
	now := time.Now()
	iter := p.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		raw, err := p.rdb.Get(ctx, iter.Val()).Result()
		if err != nil {
			if err == redis.Nil {
				continue // expired between scan and get
			}
			return nil, fmt.Errorf("read cursor %s: %w", iter.Val(), err)
		}
		var entry models.CursorEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			p.logger.Warn("dropping undecodable cursor", zap.String("key", iter.Val()), zap.Error(err))
			continue
		}
		if !cursorFresh(entry, now, p.idleTimeout) {
			continue
		}
		entries = append(entries, normalizeCursor(entry))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan cursors: %w", err)
	}
	return entries, nil
}

// Remove deletes the user's cursor. Best-effort: disconnect paths call
// this but cannot be relied on, hence the TTL.
func (p *Presence) Remove(ctx context.Context, workspaceID, userID uuid.UUID) error {
	key := cursorKey(workspaceID, userID)
	p.mu.Lock()
	delete(p.lastPush, key)
	p.mu.Unlock()
	if err := p.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("remove cursor: %w", err)
	}
	return nil
}

// RemoveAll clears every cursor for a workspace (workspace deletion).
func (p *Presence) RemoveAll(ctx context.Context, workspaceID uuid.UUID) error {
	pattern := fmt.Sprintf("cursor:%s:*", workspaceID)
	iter := p.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := p.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("remove cursor %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cursors: %w", err)
	}
	return nil
}

// stampCursor is the record Publish persists and returns: normalized
// display fields plus the write timestamp.
func stampCursor(entry models.CursorEntry, now time.Time) models.CursorEntry {
	entry = normalizeCursor(entry)
	entry.UpdatedAt = now
	return entry
}

// normalizeCursor fills safe fallbacks for missing display fields.
func normalizeCursor(entry models.CursorEntry) models.CursorEntry {
	if entry.Color == "" {
		entry.Color = defaultCursorColor
	}
	if entry.DisplayName == "" {
		entry.DisplayName = defaultCursorName
	}
	return entry
}

// cursorFresh reports whether the entry is within the idle timeout.
// A zero timeout disables filtering.
func cursorFresh(entry models.CursorEntry, now time.Time, idleTimeout time.Duration) bool {
	if idleTimeout <= 0 {
		return true
	}
	return now.Sub(entry.UpdatedAt) <= idleTimeout
}
