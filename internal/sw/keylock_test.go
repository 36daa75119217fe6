package sw

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestKeyedMutex(t *testing.T) {
	t.Run("keys are independent", func(t *testing.T) {
		k := NewKeyedMutex()
		if !k.TryLock(1) {
			t.Fatal("TryLock(1) = false on a free key")
		}
		if !k.TryLock(2) {
			t.Error("TryLock(2) = false while only 1 is held")
		}
		if k.TryLock(1) {
			t.Error("TryLock(1) = true while 1 is held")
		}
		k.Unlock(1)
		k.Unlock(2)
		if len(k.slots) != 0 {
			t.Errorf("slots = %d after unlocking everything, want 0", len(k.slots))
		}
	})

	t.Run("LockContext waits for Unlock", func(t *testing.T) {
		k := NewKeyedMutex()
		if err := k.LockContext(context.Background(), 7); err != nil {
			t.Fatalf("LockContext() error = %v", err)
		}

		acquired := make(chan struct{})
		go func() {
			if err := k.LockContext(context.Background(), 7); err != nil {
				t.Errorf("LockContext() error = %v", err)
			}
			close(acquired)
		}()

		select {
		case <-acquired:
			t.Fatal("second LockContext() did not wait")
		case <-time.After(20 * time.Millisecond):
		}
		k.Unlock(7)
		<-acquired
		k.Unlock(7)
	})

	t.Run("LockContext gives up when the context ends", func(t *testing.T) {
		k := NewKeyedMutex()
		k.TryLock(3)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := k.LockContext(ctx, 3); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("LockContext() error = %v, want DeadlineExceeded", err)
		}
		k.Unlock(3)
		if len(k.slots) != 0 {
			t.Errorf("slots = %d, want 0", len(k.slots))
		}
	})

	t.Run("serializes concurrent holders", func(t *testing.T) {
		k := NewKeyedMutex()
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			inside  int
			maxSeen int
		)
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := k.LockContext(context.Background(), 9); err != nil {
					t.Errorf("LockContext() error = %v", err)
					return
				}
				mu.Lock()
				inside++
				maxSeen = max(maxSeen, inside)
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				k.Unlock(9)
			}()
		}
		wg.Wait()
		if maxSeen != 1 {
			t.Errorf("max concurrent holders = %d, want 1", maxSeen)
		}
	})

	t.Run("unlocking a free key panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("Unlock() of a free key did not panic")
			}
		}()
		NewKeyedMutex().Unlock(5)
	})
}
