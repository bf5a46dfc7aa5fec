package store

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// writerLock is an advisory file lock held for the duration of each write
// transaction, so a CLI import and a running server never interleave writes.
type writerLock struct {
	flock   *flock.Flock
	retry   time.Duration
	timeout time.Duration
}

func newWriterLock(path string, timeout time.Duration) *writerLock {
	return &writerLock{
		flock:   flock.New(path),
		retry:   25 * time.Millisecond,
		timeout: timeout,
	}
}

// acquire blocks until the lock is held or the timeout elapses.
func (l *writerLock) acquire(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	ok, err := l.flock.TryLockContext(ctx, l.retry)
	if err != nil {
		return nil, fmt.Errorf("%w: waiting for writer lock %s: %v", ErrStorageUnavailable, l.flock.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: writer lock %s is held by another process", ErrStorageUnavailable, l.flock.Path())
	}
	return func() { _ = l.flock.Unlock() }, nil
}
