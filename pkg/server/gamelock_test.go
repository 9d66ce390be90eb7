package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGameLockSerializesSameGame(t *testing.T) {
	locks := NewGameLocks()

	const workers = 20
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locks.WithGameLock(context.Background(), "g1", time.Second, func() error {
				// Unsynchronized on purpose: the lock is the only thing
				// keeping this race-free.
				v := counter
				time.Sleep(time.Millisecond)
				counter = v + 1
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, workers, counter)
}

func TestGameLockIndependentGames(t *testing.T) {
	locks := NewGameLocks()

	blocked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		locks.WithGameLock(context.Background(), "g1", time.Second, func() error {
			close(blocked)
			<-release
			return nil
		})
	}()
	<-blocked

	// A different game must not wait for g1's holder.
	done := make(chan struct{})
	go func() {
		err := locks.WithGameLock(context.Background(), "g2", 100*time.Millisecond, func() error { return nil })
		require.NoError(t, err)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent game blocked behind another game's lock")
	}
	close(release)
}

func TestGameLockTimeout(t *testing.T) {
	locks := NewGameLocks()

	blocked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		locks.WithGameLock(context.Background(), "g1", time.Second, func() error {
			close(blocked)
			<-release
			return nil
		})
	}()
	<-blocked

	err := locks.WithGameLock(context.Background(), "g1", 20*time.Millisecond, func() error {
		t.Error("fn ran despite the lock being held")
		return nil
	})
	require.ErrorIs(t, err, ErrLockTimeout)
	close(release)
}

func TestGameLockReleasedOnPanic(t *testing.T) {
	locks := NewGameLocks()

	func() {
		defer func() { recover() }()
		locks.WithGameLock(context.Background(), "g1", time.Second, func() error {
			panic("boom")
		})
	}()

	// The guard must be free again.
	err := locks.WithGameLock(context.Background(), "g1", 100*time.Millisecond, func() error { return nil })
	require.NoError(t, err)
}

func TestGameLockCleansUpIdleEntries(t *testing.T) {
	locks := NewGameLocks()

	for i := 0; i < 5; i++ {
		err := locks.WithGameLock(context.Background(), "g1", time.Second, func() error { return nil })
		require.NoError(t, err)
	}

	locks.mu.Lock()
	defer locks.mu.Unlock()
	require.Empty(t, locks.locks, "idle locks should be removed from the registry")
}
