package concurrency

import "sync"

// ActorLockManager serializes per-actor event processing so two events from
// the same actor never interleave inside the gateway pipeline.
type ActorLockManager struct {
	locks map[string]*sync.Mutex
	mu    sync.Mutex
}

func NewActorLockManager() *ActorLockManager {
	return &ActorLockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

func (m *ActorLockManager) Lock(actorID string) {
	m.mu.Lock()
	lock, ok := m.locks[actorID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[actorID] = lock
	}
	m.mu.Unlock()
	lock.Lock()
}

func (m *ActorLockManager) Unlock(actorID string) {
	m.mu.Lock()
	lock, ok := m.locks[actorID]
	if ok {
		lock.Unlock()
	}
	m.mu.Unlock()
}
