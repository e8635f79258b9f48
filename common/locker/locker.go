package locker

import (
	"sync"
)

// Keyed serializes work per string key. Git working trees are not safe for
// concurrent checkout/commit/push sequences, so every orchestrator operation
// holds the lock for its {organization}/{application}/{repo} key for its
// whole duration. Distinct keys proceed in parallel.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyed creates a new keyed lock arena
func NewKeyed() *Keyed {
	return &Keyed{
		entries: make(map[string]*entry),
	}
}

// Acquire blocks until the key's lock is held and returns a release func.
// Entries are refcounted so the map does not grow with dead keys.
func (k *Keyed) Acquire(key string) (release func()) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			k.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(k.entries, key)
			}
			k.mu.Unlock()
		})
	}
}
