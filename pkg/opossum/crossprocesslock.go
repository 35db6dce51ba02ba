package opossum

import (
	"context"
	"time"
)

// crossProcessLock serializes appends across every process sharing a store
// directory, including over a network share. It wraps the platform-specific
// exclusive-lock primitive with bounded, doubling backoff.
type crossProcessLock struct {
	path    string
	timeout time.Duration
}

func newCrossProcessLock(path string, timeout time.Duration) *crossProcessLock {
	if timeout <= 0 {
		timeout = defaultCrossProcessLockTimeout
	}
	return &crossProcessLock{path: path, timeout: timeout}
}

// heldLock is the scoped resource returned by acquire; release() drops it.
type heldLock struct {
	pl *platformLock
}

func (h *heldLock) release() error {
	if h == nil {
		return nil
	}
	return h.pl.release()
}

// acquire blocks (subject to ctx and the configured timeout) until the lock
// is held, returning a LockTimeout StoreError if the deadline passes and a
// Cancelled StoreError if ctx is done first.
func (l *crossProcessLock) acquire(ctx context.Context) (*heldLock, error) {
	deadline := time.Now().Add(l.timeout)
	backoff := defaultLockBackoffInitial

	for {
		select {
		case <-ctx.Done():
			return nil, &StoreError{Kind: Cancelled, Op: "crossProcessLock.acquire", Path: l.path, Err: ctx.Err()}
		default:
		}

		pl, err := tryAcquirePlatformLock(l.path)
		if err != nil {
			return nil, newPathError(IO, "crossProcessLock.acquire", l.path, err)
		}
		if pl != nil {
			return &heldLock{pl: pl}, nil
		}

		if time.Now().After(deadline) {
			return nil, &StoreError{
				Kind: LockTimeout,
				Op:   "crossProcessLock.acquire",
				Path: l.path,
				Err:  errLockTimeout,
			}
		}

		wait := backoff
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &StoreError{Kind: Cancelled, Op: "crossProcessLock.acquire", Path: l.path, Err: ctx.Err()}
		case <-timer.C:
		}

		backoff *= 2
		if backoff > defaultLockBackoffMax {
			backoff = defaultLockBackoffMax
		}
	}
}
