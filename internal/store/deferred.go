package store

import (
	"time"
)

// PutDeferred persists a deferred action. Scheduling persists first, the
// in-process timer is armed only after this returns.
func (s *Store) PutDeferred(a *DeferredAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	s.deferred.Actions[a.ID] = &cp
	return s.saveDeferred()
}

// DeleteDeferred removes a deferred action (cancellation). A timer that later
// fires will observe NotFound from TransitionDeferred and no-op.
func (s *Store) DeleteDeferred(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.deferred.Actions[id]; !ok {
		return nil
	}
	delete(s.deferred.Actions, id)
	return s.saveDeferred()
}

// GetDeferred returns a copy of the action, or nil if absent.
func (s *Store) GetDeferred(id string) (*DeferredAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.deferred.Actions[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

// ListPendingDeferred returns copies of every pending action with target time
// at or before the cutoff, for the recovery sweep.
func (s *Store) ListPendingDeferred(cutoff time.Time) ([]*DeferredAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*DeferredAction
	for _, a := range s.deferred.Actions {
		if a.Status != StatusPending {
			continue
		}
		if a.TargetTime.After(cutoff) {
			continue
		}
		cp := *a
		due = append(due, &cp)
	}
	return due, nil
}

// TransitionDeferred performs the single conditional pending -> resolved
// update. On Transitioned it returns the pre-transition record; duplicate
// fires observe AlreadyResolved and cancelled ones NotFound. This is the
// mechanism that keeps fire at-most-once under a timer/sweep race.
func (s *Store) TransitionDeferred(id string) (*DeferredAction, TransitionOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.deferred.Actions[id]
	if !ok {
		return nil, NotFound, nil
	}
	if a.Status != StatusPending {
		return nil, AlreadyResolved, nil
	}

	before := *a

	now := time.Now()
	a.Status = StatusResolved
	a.ResolvedAt = &now
	if err := s.saveDeferred(); err != nil {
		// Roll the in-memory state back so a later fire can retry.
		a.Status = StatusPending
		a.ResolvedAt = nil
		return nil, Transitioned, err
	}
	return &before, Transitioned, nil
}
