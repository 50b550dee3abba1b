package store

import (
	"time"
)

// GetDurableCooldown returns the live expiry for key, or the zero time if no
// live entry exists. Expiry is checked by timestamp comparison; an expired
// record is reaped as a side effect (lazy expiry).
func (s *Store) GetDurableCooldown(key string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.cooldowns.Entries[key]
	if !ok {
		return time.Time{}, nil
	}

	now := time.Now()
	if !now.Before(e.ExpiresAt) {
		delete(s.cooldowns.Entries, key)
		if err := s.saveCooldowns(); err != nil {
			return time.Time{}, err
		}
		return time.Time{}, nil
	}
	return e.ExpiresAt, nil
}

// SetDurableCooldown installs a cooldown for key with an absolute expiry, so
// clock drift across processes cannot desynchronize readers. ttl is extra
// slack before the record itself is purged.
func (s *Store) SetDurableCooldown(key string, expiresAt time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cooldowns.Entries[key] = &CooldownEntry{
		Key:       key,
		ExpiresAt: expiresAt,
		PurgeAt:   expiresAt.Add(ttl),
	}
	return s.saveCooldowns()
}

// DeleteDurableCooldown removes the entry for key, if present.
func (s *Store) DeleteDurableCooldown(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cooldowns.Entries[key]; !ok {
		return nil
	}
	delete(s.cooldowns.Entries, key)
	return s.saveCooldowns()
}

// PruneCooldowns drops every record past its purge time. Returns the number
// removed.
func (s *Store) PruneCooldowns() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	count := 0
	for k, e := range s.cooldowns.Entries {
		if now.After(e.PurgeAt) {
			delete(s.cooldowns.Entries, k)
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}
	return count, s.saveCooldowns()
}
