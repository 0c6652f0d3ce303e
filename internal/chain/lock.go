package chain

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	// LockFileName is the lock file that serializes writers of one chain directory.
	LockFileName = ".chain.lock"

	lockTimeout      = 30 * time.Second
	lockPollInterval = 50 * time.Millisecond
)

var ErrLockTimeout = errors.New("timed out waiting for chain directory lock")

// DirLock is an exclusive, cross-process lock on a chain directory. Version
// allocation and manifest writes take it so that separate commands working in
// the same directory never interleave.
type DirLock struct {
	flock   *flock.Flock
	timeout time.Duration
}

// NewDirLock returns an unlocked lock for dir.
func NewDirLock(dir string) *DirLock {
	return &DirLock{
		flock:   flock.New(filepath.Join(dir, LockFileName)),
		timeout: lockTimeout,
	}
}

// Acquire polls for the lock until it is held, ctx is done or the timeout passes.
func (l *DirLock) Acquire(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	for {
		locked, err := l.flock.TryLock()
		if err != nil {
			return fmt.Errorf("chain: lock %s: %w", l.flock.Path(), err)
		}
		if locked {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %s", ErrLockTimeout, l.flock.Path())
			}
			return ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// Release drops the lock. Calling it on an unlocked lock is a no-op.
func (l *DirLock) Release() error {
	return l.flock.Unlock()
}

// WithDirLock runs fn while holding the lock on dir.
func WithDirLock(ctx context.Context, dir string, fn func() error) error {
	lock := NewDirLock(dir)
	if err := lock.Acquire(ctx); err != nil {
		return err
	}
	defer lock.Release()
	return fn()
}
