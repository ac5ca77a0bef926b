package taskmanager

import (
	"context"
	"fmt"
	"sync"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// entityLocks is a per-key mutex map. Entries are reference counted and dropped
// once nobody holds or waits for them.
type entityLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

func newEntityLocks() *entityLocks {
	return &entityLocks{locks: make(map[string]*lockEntry)}
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(key) after unlocking.
func (l *entityLocks) acquire(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.locks[key]
	if !exists {
		entry = &lockEntry{}
		l.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (l *entityLocks) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.locks[key]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(l.locks, key)
	}
}

func (l *entityLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// withLock runs fn while holding the serialization point for key.
// Without entity locking configured, fn runs immediately.
func (m *Manager) withLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if m.locks == nil {
		return fn(ctx)
	}
	if key == "" {
		return fmt.Errorf("entity lock: empty key")
	}

	entry := m.locks.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.locks.release(key)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, key, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// Detached so a cancelled request still releases the lock
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"key", key,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
