package xcpindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gofrs/flock"
)

// indexLock is a per-index advisory lock preventing two concurrent
// repairs of the same index.
type indexLock struct {
	fl *flock.Flock
}

// acquireIndexLock takes the advisory lock next to the index, retrying
// briefly with backoff in case a previous run is just finishing.
func acquireIndexLock(ctx context.Context, indexPath string) (*indexLock, error) {
	fl := flock.New(indexPath + LockSuffix)

	err := retry.Do(
		func() error {
			locked, err := fl.TryLock()
			if err != nil {
				return err
			}
			if !locked {
				return errLockHeld
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, errLockHeld)
		}),
	)
	if err != nil {
		if errors.Is(err, errLockHeld) {
			return nil, fmt.Errorf("index %s is being repaired by another process", indexPath)
		}
		return nil, fmt.Errorf("failed to lock index %s: %w", indexPath, err)
	}
	return &indexLock{fl: fl}, nil
}

// release drops the lock; the lock file itself is left in place
func (l *indexLock) release() {
	if err := l.fl.Unlock(); err != nil {
		log.Warnf("failed to release index lock %s: %v", l.fl.Path(), err)
	}
}
