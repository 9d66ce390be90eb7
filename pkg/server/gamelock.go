package server

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when a game's guard cannot be acquired before
// the caller's deadline.
var ErrLockTimeout = errors.New("timed out waiting for game lock")

// gameLock is a channel-based mutex with a holder count, so idle entries can
// be removed from the registry once the last waiter is gone.
type gameLock struct {
	ch   chan struct{}
	refs int
}

// GameLocks serializes operations per game ID. Every mutation of a game runs
// inside WithGameLock for that game; operations on different games proceed
// in parallel.
type GameLocks struct {
	mu    sync.Mutex
	locks map[string]*gameLock
}

// NewGameLocks creates an empty lock registry.
func NewGameLocks() *GameLocks {
	return &GameLocks{locks: make(map[string]*gameLock)}
}

// WithGameLock runs fn while holding the guard for the given game. It fails
// with ErrLockTimeout when the guard is not acquired before the timeout (or
// the context is canceled); fn's error passes through unchanged. The guard
// is released even when fn panics.
func (gl *GameLocks) WithGameLock(ctx context.Context, gameID string, timeout time.Duration, fn func() error) error {
	gl.mu.Lock()
	l, ok := gl.locks[gameID]
	if !ok {
		l = &gameLock{ch: make(chan struct{}, 1)}
		gl.locks[gameID] = l
	}
	l.refs++
	gl.mu.Unlock()

	release := func() {
		<-l.ch
		gl.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(gl.locks, gameID)
		}
		gl.mu.Unlock()
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		gl.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(gl.locks, gameID)
		}
		gl.mu.Unlock()
		return ErrLockTimeout
	}

	defer release()
	return fn()
}
