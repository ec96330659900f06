package extract

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"resumind/internal/shared/telemetry"
)

// Lazy owns the process-wide Engine. The first Get builds it; concurrent first
// callers share that single build, and a failed build is retried by the next call.
type Lazy struct {
	newEngine func(ctx context.Context) (*Engine, error)

	group  singleflight.Group
	mu     sync.RWMutex
	engine *Engine
}

// NewLazy returns a handle that builds its engine with newEngine, or NewEngine when nil.
func NewLazy(newEngine func(ctx context.Context) (*Engine, error)) *Lazy {
	if newEngine == nil {
		newEngine = NewEngine
	}
	return &Lazy{newEngine: newEngine}
}

// Get returns the ready engine, building it on first use.
func (l *Lazy) Get(ctx context.Context) (*Engine, error) {
	if e := l.ready(); e != nil {
		return e, nil
	}
	v, err, shared := l.group.Do("engine", func() (any, error) {
		if e := l.ready(); e != nil {
			return e, nil
		}
		e, err := l.newEngine(ctx)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.engine = e
		l.mu.Unlock()
		telemetry.Info("extract.engine_ready", nil)
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("init extraction engine: %w", err)
	}
	if shared {
		telemetry.Info("extract.engine_init_shared", nil)
	}
	return v.(*Engine), nil
}

// ExtractText is a convenience for Get followed by Engine.ExtractText.
func (l *Lazy) ExtractText(ctx context.Context, data []byte) (string, error) {
	e, err := l.Get(ctx)
	if err != nil {
		return "", &ExtractionError{Reason: "PDF text extraction is unavailable", Err: err}
	}
	return e.ExtractText(ctx, data)
}

func (l *Lazy) ready() *Engine {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.engine
}
