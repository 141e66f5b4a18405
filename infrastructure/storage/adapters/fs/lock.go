package fs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"blobstore/domain/storage"
)

// pollInterval is how often a contended Acquire re-checks the lock table.
const pollInterval = 10 * time.Millisecond

// lockRecord is an ephemeral, in-memory claim of exclusive intent to mutate
// one key. Never persisted; a process restart clears the table, which is fine
// because the locks only serialize this process's own operations.
type lockRecord struct {
	holder     string
	acquiredAt time.Time
	expiresAt  time.Time
}

// keyLocks is the advisory per-key locking subsystem for the local backend.
// One instance belongs to one Store; sharing it across stores pointed at
// different roots would serialize unrelated trees.
type keyLocks struct {
	mu      sync.Mutex
	locks   map[string]lockRecord
	timeout time.Duration
	ttl     time.Duration

	stop chan struct{}
	once sync.Once
}

func newKeyLocks(timeout, ttl time.Duration) *keyLocks {
	l := &keyLocks{
		locks:   make(map[string]lockRecord),
		timeout: timeout,
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Acquire claims key, polling until the current holder releases or expires.
// Returns the holder token needed by Release, or TIMEOUT when the bounded
// wait elapses (including via ctx cancellation).
func (l *keyLocks) Acquire(ctx context.Context, key string) (string, error) {
	deadline := time.Now().Add(l.timeout)
	for {
		if token, ok := l.tryAcquire(key); ok {
			return token, nil
		}

		if time.Now().After(deadline) {
			return "", storage.NewError(storage.CodeTimeout, key)
		}
		select {
		case <-ctx.Done():
			return "", storage.WrapError(storage.CodeTimeout, key, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

func (l *keyLocks) tryAcquire(key string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if rec, held := l.locks[key]; held && now.Before(rec.expiresAt) {
		return "", false
	}
	token := uuid.NewString()
	l.locks[key] = lockRecord{
		holder:     token,
		acquiredAt: now,
		expiresAt:  now.Add(l.ttl),
	}
	return token, true
}

// Release drops the lock on key, but only if token still matches the current
// holder. A slow caller whose lock expired and was re-acquired by someone
// else cannot release the new holder's lock.
func (l *keyLocks) Release(key, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, held := l.locks[key]; held && rec.holder == token {
		delete(l.locks, key)
	}
}

// sweep periodically removes expired locks so a crashed holder cannot wedge
// a key forever.
func (l *keyLocks) sweep() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			now := time.Now()
			l.mu.Lock()
			for key, rec := range l.locks {
				if now.After(rec.expiresAt) {
					delete(l.locks, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Close stops the background sweeper.
func (l *keyLocks) Close() {
	l.once.Do(func() { close(l.stop) })
}
