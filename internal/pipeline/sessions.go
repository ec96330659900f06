package pipeline

import (
	"context"
	"sync"
)

// Sessions hands out one Runner per session key so a session cannot start a
// second run while its first is in flight.
type Sessions struct {
	deps Deps

	mu      sync.Mutex
	entries map[string]*sessionEntry
}

// sessionEntry is removed once no caller holds its runner.
type sessionEntry struct {
	runner *Runner
	refs   int
}

// NewSessions returns a registry that builds runners from deps.
func NewSessions(deps Deps) *Sessions {
	return &Sessions{deps: deps, entries: make(map[string]*sessionEntry)}
}

// Run executes in on the runner for key. Callers sharing a key share a runner
// until the last of them returns, so an overlapping submission gets
// ErrRunInProgress. An empty key gets a fresh, unshared runner.
func (s *Sessions) Run(ctx context.Context, key string, in Input) (Result, error) {
	if key == "" {
		return NewRunner(s.deps).Run(ctx, in)
	}
	r := s.acquire(key)
	defer s.release(key)
	return r.Run(ctx, in)
}

// Len reports how many sessions currently hold a runner.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Sessions) acquire(key string) *Runner {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		e = &sessionEntry{runner: NewRunner(s.deps)}
		s.entries[key] = e
	}
	e.refs++
	return e.runner
}

func (s *Sessions) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(s.entries, key)
	}
}
