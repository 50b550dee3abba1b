package store

import (
	"bytes"
	"encoding/json"
	"os"
	"sync"

	"github.com/natefinch/atomic"
)

// Store is the file-backed durable document store behind the gateway: actor
// records, durable cooldowns, and deferred actions, one JSON file each. All
// mutations are single-record operations applied under the store mutex and
// flushed atomically; a flock on the data dir keeps other processes out.
type Store struct {
	base string
	lock *FileLock

	mu        sync.RWMutex
	actors    actorIndex
	cooldowns cooldownIndex
	deferred  deferredIndex
}

// New opens (or creates) the data directory at base and loads all
// collections. The returned store holds the directory flock until Close.
func New(base string, lockCfg *FileLockConfig) (*Store, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}

	lock, err := NewFileLock(base, lockCfg)
	if err != nil {
		return nil, err
	}

	s := &Store{
		base:      base,
		lock:      lock,
		actors:    actorIndex{Actors: make(map[string]*Actor)},
		cooldowns: cooldownIndex{Entries: make(map[string]*CooldownEntry)},
		deferred:  deferredIndex{Actions: make(map[string]*DeferredAction)},
	}

	if err := s.load(); err != nil {
		lock.Unlock()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() {
	if s.lock != nil {
		s.lock.Unlock()
	}
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := readJSON(actorsPath(s.base), &s.actors); err != nil {
		return err
	}
	if s.actors.Actors == nil {
		s.actors.Actors = make(map[string]*Actor)
	}
	if err := readJSON(cooldownsPath(s.base), &s.cooldowns); err != nil {
		return err
	}
	if s.cooldowns.Entries == nil {
		s.cooldowns.Entries = make(map[string]*CooldownEntry)
	}
	if err := readJSON(deferredPath(s.base), &s.deferred); err != nil {
		return err
	}
	if s.deferred.Actions == nil {
		s.deferred.Actions = make(map[string]*DeferredAction)
	}
	return nil
}

func readJSON(path string, out interface{}) error {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(content) == 0 {
		return nil
	}
	return json.Unmarshal(content, out)
}

func writeJSON(path string, in interface{}) error {
	b, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(b))
}

// Internal save helpers, store mutex held by caller.

func (s *Store) saveActors() error {
	return writeJSON(actorsPath(s.base), s.actors)
}

func (s *Store) saveCooldowns() error {
	return writeJSON(cooldownsPath(s.base), s.cooldowns)
}

func (s *Store) saveDeferred() error {
	return writeJSON(deferredPath(s.base), s.deferred)
}
