package store

import (
	"time"
)

// GetOrCreateActor loads the actor record, creating it lazily on first sight
// (upsert-on-read). A copy is returned; mutations go through the dedicated
// methods below.
func (s *Store) GetOrCreateActor(id string) (*Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actors.Actors[id]
	if !ok {
		now := time.Now()
		a = &Actor{
			ID:        id,
			Usage:     make(map[string]int),
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.actors.Actors[id] = a
		if err := s.saveActors(); err != nil {
			delete(s.actors.Actors, id)
			return nil, err
		}
	}

	cp := *a
	return &cp, nil
}

// IncrementUsage bumps the actor's per-command counter, creating it at 1 if
// absent.
func (s *Store) IncrementUsage(id, command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actors.Actors[id]
	if !ok {
		now := time.Now()
		a = &Actor{ID: id, Usage: make(map[string]int), CreatedAt: now, UpdatedAt: now}
		s.actors.Actors[id] = a
	}
	if a.Usage == nil {
		a.Usage = make(map[string]int)
	}
	a.Usage[command]++
	a.UpdatedAt = time.Now()
	return s.saveActors()
}

// ClearMute clears mute-until only if it still matches the expired value the
// caller observed, so a fresh mute applied by another process is not undone.
func (s *Store) ClearMute(id string, observed time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actors.Actors[id]
	if !ok || a.MuteUntil == nil {
		return nil
	}
	if !a.MuteUntil.Equal(observed) {
		return nil
	}
	a.MuteUntil = nil
	a.UpdatedAt = time.Now()
	return s.saveActors()
}

// SetMuteUntil mutes the actor until the given time.
func (s *Store) SetMuteUntil(id string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actors.Actors[id]
	if !ok {
		now := time.Now()
		a = &Actor{ID: id, Usage: make(map[string]int), CreatedAt: now}
		s.actors.Actors[id] = a
	}
	a.MuteUntil = &until
	a.UpdatedAt = time.Now()
	return s.saveActors()
}

// AddWarning appends a timestamped warning to the actor's audit trail.
func (s *Store) AddWarning(id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actors.Actors[id]
	if !ok {
		now := time.Now()
		a = &Actor{ID: id, Usage: make(map[string]int), CreatedAt: now}
		s.actors.Actors[id] = a
	}
	a.Warnings = append(a.Warnings, Warning{At: time.Now(), Reason: reason})
	a.UpdatedAt = time.Now()
	return s.saveActors()
}

// SetAdminLevel sets the actor's admin level.
func (s *Store) SetAdminLevel(id string, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actors.Actors[id]
	if !ok {
		now := time.Now()
		a = &Actor{ID: id, Usage: make(map[string]int), CreatedAt: now}
		s.actors.Actors[id] = a
	}
	a.AdminLevel = level
	a.UpdatedAt = time.Now()
	return s.saveActors()
}
