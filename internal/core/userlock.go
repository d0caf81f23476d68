package core

import "sync"

// UserLocker serializes read-modify-write cycles per username so two
// concurrent usage reports or admin edits for the same user never
// interleave. Different users proceed in parallel.
type UserLocker struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

// NewUserLocker returns an empty locker.
func NewUserLocker() *UserLocker {
	return &UserLocker{locks: make(map[string]*userLock)}
}

// Lock acquires the per-user mutex and returns its release func. Entries
// are dropped from the table once the last holder releases.
func (l *UserLocker) Lock(username string) func() {
	l.mu.Lock()
	entry, ok := l.locks[username]
	if !ok {
		entry = &userLock{}
		l.locks[username] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.Mutex.Lock()
	return func() {
		entry.Mutex.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, username)
		}
		l.mu.Unlock()
	}
}
