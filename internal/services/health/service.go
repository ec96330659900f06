// Package health reports whether the stores a run depends on are reachable.
package health

import (
	"context"
	"errors"
	"sort"
	"time"

	"resumind/internal/shared/storage/kv"
	"resumind/internal/shared/telemetry"
)

const pingKey = "health:ping"

// Check tests one dependency.
type Check func(ctx context.Context) error

// Service runs named checks.
type Service struct {
	checks  map[string]Check
	timeout time.Duration
}

// NewService constructs a health service with no checks.
func NewService() *Service {
	return &Service{checks: map[string]Check{}, timeout: 2 * time.Second}
}

// With registers a named check and returns s.
func (s *Service) With(name string, check Check) *Service {
	s.checks[name] = check
	return s
}

// KVCheck reads a ping key; a missing key still proves the store answers.
func KVCheck(store kv.Store) Check {
	return func(ctx context.Context) error {
		_, err := store.Get(ctx, pingKey)
		if err != nil && !errors.Is(err, kv.ErrNotFound) {
			return err
		}
		return nil
	}
}

// Status runs every check and returns {"ok": all passed, "<name>": passed}.
func (s *Service) Status(ctx context.Context) map[string]bool {
	out := map[string]bool{"ok": true}
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.checks[name](cctx)
		cancel()
		out[name] = err == nil
		if err != nil {
			out["ok"] = false
			telemetry.Warn("health.check_failed", map[string]any{"check": name, "err": err})
		}
	}
	return out
}
