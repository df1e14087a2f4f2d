package workflow

import (
	"sync"

	"github.com/google/uuid"
)

// keyedMutex serializes mutating operations per correspondence id. Locks are
// created on first use and kept for the life of the process; the set of live
// correspondence ids is small enough that reclamation is not worth the
// bookkeeping.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (k *keyedMutex) Lock(id uuid.UUID) {
	k.mu.Lock()
	lock, ok := k.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[id] = lock
	}
	k.mu.Unlock()
	lock.Lock()
}

func (k *keyedMutex) Unlock(id uuid.UUID) {
	k.mu.Lock()
	lock := k.locks[id]
	k.mu.Unlock()
	lock.Unlock()
}
