package sync

import "sync"

// keyedMutex serializes sync passes per organization. Two concurrent calls
// for the same org queue instead of interleaving their batch writes and
// last-sync stamps; calls for different orgs proceed in parallel.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for the key and returns its unlock function.
// Entries are never evicted; the key space is the set of organization ids,
// which is small and stable.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
