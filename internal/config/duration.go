package config

import (
	"fmt"
	"strings"
	"time"
)

// DurationOrDefault resolves a duration field from the loaded config,
// substituting defaultValue when the field was left unset. Durations use Go
// syntax ("90s", "2m", "1h30m").
func DurationOrDefault(value string, defaultValue string) (time.Duration, error) {
	candidate := strings.TrimSpace(value)
	if candidate == "" {
		candidate = strings.TrimSpace(defaultValue)
	}
	if candidate == "" {
		return 0, fmt.Errorf("duration value is empty")
	}

	d, err := time.ParseDuration(candidate)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", candidate, err)
	}
	return d, nil
}
