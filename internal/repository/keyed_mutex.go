package repository

import (
	"bytes"
	"sort"
	"sync"

	"github.com/GoPolymarket/arena/internal/address"
)

// keyedMutex hands out one mutex per address. Entries are reference counted and dropped when idle.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[address.Address]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[address.Address]*refMutex)}
}

// LockAll locks the distinct keys in byte order, so two callers naming overlapping sets cannot
// deadlock. The returned func releases them.
func (k *keyedMutex) LockAll(keys []address.Address) func() {
	ordered := dedupe(keys)
	held := make([]*refMutex, 0, len(ordered))
	for _, key := range ordered {
		m := k.acquire(key)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
			k.release(ordered[i])
		}
	}
}

func (k *keyedMutex) acquire(key address.Address) *refMutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	return m
}

func (k *keyedMutex) release(key address.Address) {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		return
	}
	m.refs--
	if m.refs == 0 {
		delete(k.locks, key)
	}
}

func dedupe(keys []address.Address) []address.Address {
	out := make([]address.Address, 0, len(keys))
	seen := make(map[address.Address]struct{}, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
