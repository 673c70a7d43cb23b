package services

import (
	"sort"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
)

type keyLock struct {
	mu   sync.Mutex
	refs int // guarded by the map shard lock
}

// KeyedLocker serializes work on the same logical record inside one process.
// Entries are reference counted and dropped once no goroutine holds or waits on them.
type KeyedLocker struct {
	locks cmap.ConcurrentMap[string, *keyLock]
}

// NewKeyedLocker creates an empty lock table
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: cmap.New[*keyLock]()}
}

// Lock acquires every key in sorted order and returns a function releasing them.
// Duplicate keys are acquired once.
func (l *KeyedLocker) Lock(keys ...string) func() {
	sorted := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	held := make([]*keyLock, len(sorted))
	for i, k := range sorted {
		held[i] = l.acquire(k)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(sorted) - 1; i >= 0; i-- {
				held[i].mu.Unlock()
				l.release(sorted[i])
			}
		})
	}
}

func (l *KeyedLocker) acquire(key string) *keyLock {
	entry := l.locks.Upsert(key, nil, func(exist bool, current, _ *keyLock) *keyLock {
		if !exist {
			current = &keyLock{}
		}
		current.refs++
		return current
	})
	entry.mu.Lock()
	return entry
}

func (l *KeyedLocker) release(key string) {
	l.locks.RemoveCb(key, func(_ string, entry *keyLock, exists bool) bool {
		if !exists {
			return false
		}
		entry.refs--
		return entry.refs == 0
	})
}

// Len returns the number of keys currently held or awaited.
func (l *KeyedLocker) Len() int {
	return l.locks.Count()
}
