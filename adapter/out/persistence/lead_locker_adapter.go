package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"leadscout/core/port/out"
	"leadscout/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// =============================================================================
// Redis Message Locker
// =============================================================================

// RedisLocker serializes message processing across worker instances with
// SETNX markers. The marker value is the acquisition timestamp so Age can be
// answered without a second data structure. Markers never expire; an
// orphaned lock (crash before release) stays visible through Age until an
// operator removes it.
type RedisLocker struct {
	client *redis.Client
	source string
}

// NewRedisLocker creates a locker scoped to one mailbox source.
func NewRedisLocker(client *redis.Client, source string) *RedisLocker {
	return &RedisLocker{client: client, source: source}
}

func (l *RedisLocker) lockKey(id string) string {
	return fmt.Sprintf("locks/%s_%s.lock", l.source, id)
}

// Acquire attempts to create the lock marker for id. Backend failures count
// as a conflict so two workers can never both proceed.
func (l *RedisLocker) Acquire(ctx context.Context, id string) bool {
	stamp := time.Now().UTC().Format(time.RFC3339Nano)
	ok, err := l.client.SetNX(ctx, l.lockKey(id), stamp, 0).Result()
	if err != nil {
		logger.WithMessageID(id).WithError(err).Warn("lock acquire failed, treating as conflict")
		return false
	}
	return ok
}

// Release deletes the marker, tolerating absence.
func (l *RedisLocker) Release(ctx context.Context, id string) {
	if err := l.client.Del(ctx, l.lockKey(id)).Err(); err != nil {
		logger.WithMessageID(id).WithError(err).Warn("lock release failed")
	}
}

// Age returns the elapsed time since the lock was created.
func (l *RedisLocker) Age(ctx context.Context, id string) (time.Duration, bool) {
	raw, err := l.client.Get(ctx, l.lockKey(id)).Result()
	if err != nil {
		return 0, false
	}
	stamp, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return 0, false
	}
	return time.Since(stamp), true
}

// =============================================================================
// Memory Message Locker
// =============================================================================

// MemoryLocker is the single-process fallback locker. It provides the same
// create-if-absent semantics within one instance.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
}

// NewMemoryLocker creates an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]time.Time)}
}

func (l *MemoryLocker) Acquire(ctx context.Context, id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.locks[id]; held {
		return false
	}
	l.locks[id] = time.Now()
	return true
}

func (l *MemoryLocker) Release(ctx context.Context, id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, id)
}

func (l *MemoryLocker) Age(ctx context.Context, id string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acquired, held := l.locks[id]
	if !held {
		return 0, false
	}
	return time.Since(acquired), true
}

// =============================================================================
// Interface Compliance
// =============================================================================

var (
	_ out.MessageLocker = (*RedisLocker)(nil)
	_ out.MessageLocker = (*MemoryLocker)(nil)
)
