// Package persistence provides storage adapters implementing outbound ports.
package persistence

import (
	"context"
	"sync"
	"time"

	"leadscout/core/port/out"
	"leadscout/pkg/apperr"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// =============================================================================
// Redis Cursor Store
// =============================================================================

// cursorDoc is the stored cursor document. It is overwritten wholesale on
// every save so a partial write can never mix two cursor values.
type cursorDoc struct {
	HistoryID string    `json:"historyId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RedisCursorStore persists the sync cursor and the deployment reset marker
// in Redis.
type RedisCursorStore struct {
	client *redis.Client
	key    string
}

// NewRedisCursorStore creates a cursor store under the given key.
func NewRedisCursorStore(client *redis.Client, key string) *RedisCursorStore {
	return &RedisCursorStore{client: client, key: key}
}

func (s *RedisCursorStore) resetKey() string {
	return s.key + "/reset"
}

// Load returns the stored cursor, "" when none exists.
func (s *RedisCursorStore) Load(ctx context.Context) (string, error) {
	raw, err := s.client.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", apperr.Database(err)
	}

	var doc cursorDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		// A corrupt document is treated like no cursor at all: the syncer
		// re-baselines instead of failing forever.
		return "", nil
	}
	return doc.HistoryID, nil
}

// Save overwrites the stored cursor.
func (s *RedisCursorStore) Save(ctx context.Context, cursor string) error {
	doc := cursorDoc{HistoryID: cursor, UpdatedAt: time.Now().UTC()}
	raw, err := json.Marshal(doc)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to encode cursor", 500)
	}

	if err := s.client.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return apperr.Database(err)
	}
	return nil
}

// Clear removes the stored cursor.
func (s *RedisCursorStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return apperr.Database(err)
	}
	return nil
}

// MarkReset records that the cursor was cleared on purpose.
func (s *RedisCursorStore) MarkReset(ctx context.Context) error {
	stamp := time.Now().UTC().Format(time.RFC3339)
	if err := s.client.Set(ctx, s.resetKey(), stamp, 0).Err(); err != nil {
		return apperr.Database(err)
	}
	return nil
}

// WasReset reports whether a reset marker is present.
func (s *RedisCursorStore) WasReset(ctx context.Context) (bool, error) {
	n, err := s.client.Exists(ctx, s.resetKey()).Result()
	if err != nil {
		return false, apperr.Database(err)
	}
	return n > 0, nil
}

// ClearReset removes the reset marker.
func (s *RedisCursorStore) ClearReset(ctx context.Context) error {
	if err := s.client.Del(ctx, s.resetKey()).Err(); err != nil {
		return apperr.Database(err)
	}
	return nil
}

// =============================================================================
// Memory Cursor Store
// =============================================================================

// MemoryCursorStore is the in-process fallback used when no Redis URL is
// configured. State does not survive restarts, so every boot re-baselines.
type MemoryCursorStore struct {
	mu     sync.Mutex
	cursor string
	has    bool
	reset  bool
}

// NewMemoryCursorStore creates an empty in-memory cursor store.
func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{}
}

func (s *MemoryCursorStore) Load(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.has {
		return "", nil
	}
	return s.cursor, nil
}

func (s *MemoryCursorStore) Save(ctx context.Context, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = cursor
	s.has = true
	return nil
}

func (s *MemoryCursorStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = ""
	s.has = false
	return nil
}

func (s *MemoryCursorStore) MarkReset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset = true
	return nil
}

func (s *MemoryCursorStore) WasReset(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reset, nil
}

func (s *MemoryCursorStore) ClearReset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset = false
	return nil
}

// =============================================================================
// Interface Compliance
// =============================================================================

var (
	_ out.CursorStore = (*RedisCursorStore)(nil)
	_ out.CursorStore = (*MemoryCursorStore)(nil)
)
