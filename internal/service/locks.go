package service

import (
	"slices"
	"sync"
)

// keyedMutex serializes writers per key. Entries are reference counted and
// dropped once no goroutine holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is free and returns the matching unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()

	return func() {
		m.Unlock()

		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// LockAll locks every distinct key in sorted order and returns one function
// releasing them all. The fixed order keeps two callers with overlapping
// keys from deadlocking.
func (k *keyedMutex) LockAll(keys []string) func() {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	unlocks := make([]func(), 0, len(sorted))
	for _, key := range sorted {
		unlocks = append(unlocks, k.Lock(key))
	}

	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// flagSet holds non-blocking per-key in-flight flags.
type flagSet struct {
	mu  sync.Mutex
	set map[string]struct{}
}

func newFlagSet() *flagSet {
	return &flagSet{set: make(map[string]struct{})}
}

// tryAcquire raises the flag for key and reports whether it was clear.
func (f *flagSet) tryAcquire(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, busy := f.set[key]; busy {
		return false
	}
	f.set[key] = struct{}{}
	return true
}

func (f *flagSet) release(key string) {
	f.mu.Lock()
	delete(f.set, key)
	f.mu.Unlock()
}
