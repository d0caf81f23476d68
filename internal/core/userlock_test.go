package core

import (
	"sync"
	"testing"
)

// TestUserLocker_SerializesSameUser runs concurrent increments under one
// user's lock; a lost update means the lock does not serialize.
func TestUserLocker_SerializesSameUser(t *testing.T) {
	locker := NewUserLocker()

	const workers = 50
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock("user1234")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Fatalf("counter = %d, want %d", counter, workers)
	}
}

// TestUserLocker_ReleasesEntries verifies the lock table does not grow
// forever.
func TestUserLocker_ReleasesEntries(t *testing.T) {
	locker := NewUserLocker()

	unlock := locker.Lock("a")
	unlock()
	unlock = locker.Lock("b")
	unlock()

	locker.mu.Lock()
	defer locker.mu.Unlock()
	if len(locker.locks) != 0 {
		t.Fatalf("lock table holds %d entries after release, want 0", len(locker.locks))
	}
}
