package fs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blobstore/domain/storage"
)

func TestLockAcquireRelease(t *testing.T) {
	l := newKeyLocks(time.Second, 30*time.Second)
	defer l.Close()
	ctx := context.Background()

	token, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// held: an immediate re-acquire fails
	_, ok := l.tryAcquire("k")
	assert.False(t, ok)

	l.Release("k", token)
	token2, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	assert.NotEqual(t, token, token2)
	l.Release("k", token2)
}

func TestLockIndependentKeys(t *testing.T) {
	l := newKeyLocks(time.Second, 30*time.Second)
	defer l.Close()
	ctx := context.Background()

	t1, err := l.Acquire(ctx, "a")
	require.NoError(t, err)
	t2, err := l.Acquire(ctx, "b")
	require.NoError(t, err)
	l.Release("a", t1)
	l.Release("b", t2)
}

func TestLockReleaseRequiresMatchingToken(t *testing.T) {
	l := newKeyLocks(100*time.Millisecond, 30*time.Second)
	defer l.Close()
	ctx := context.Background()

	token, err := l.Acquire(ctx, "k")
	require.NoError(t, err)

	l.Release("k", "wrong-token")
	_, ok := l.tryAcquire("k")
	assert.False(t, ok, "a foreign token must not release the lock")

	l.Release("k", token)
	_, ok = l.tryAcquire("k")
	assert.True(t, ok)
}

func TestLockAcquireTimesOut(t *testing.T) {
	l := newKeyLocks(50*time.Millisecond, 30*time.Second)
	defer l.Close()
	ctx := context.Background()

	token, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	defer l.Release("k", token)

	start := time.Now()
	_, err = l.Acquire(ctx, "k")
	require.Error(t, err)
	assert.Equal(t, storage.CodeTimeout, storage.CodeOf(err))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestLockAcquireHonorsContext(t *testing.T) {
	l := newKeyLocks(10*time.Second, 30*time.Second)
	defer l.Close()

	token, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer l.Release("k", token)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "k")
	require.Error(t, err)
	assert.Equal(t, storage.CodeTimeout, storage.CodeOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLockExpiresAfterTTL(t *testing.T) {
	l := newKeyLocks(time.Second, 40*time.Millisecond)
	defer l.Close()
	ctx := context.Background()

	// acquire and never release, simulating a crashed holder
	_, err := l.Acquire(ctx, "k")
	require.NoError(t, err)

	token, err := l.Acquire(ctx, "k")
	require.NoError(t, err, "an expired lock must be reclaimable")
	l.Release("k", token)
}

func TestLockWaiterProceedsAfterRelease(t *testing.T) {
	l := newKeyLocks(2*time.Second, 30*time.Second)
	defer l.Close()
	ctx := context.Background()

	token, err := l.Acquire(ctx, "k")
	require.NoError(t, err)

	acquired := make(chan string, 1)
	go func() {
		t2, err := l.Acquire(ctx, "k")
		if err == nil {
			acquired <- t2
		}
		close(acquired)
	}()

	time.Sleep(30 * time.Millisecond)
	l.Release("k", token)

	select {
	case t2, ok := <-acquired:
		require.True(t, ok)
		l.Release("k", t2)
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock after release")
	}
}
