// Package kv is the key/value storage collaborator used to persist résumé
// records. Values are opaque strings; callers serialize their own JSON.
package kv

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kv: key not found")

// Store is implemented by every backend. Set on a single key is atomic.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// List returns the keys containing substring, sorted ascending.
	List(ctx context.Context, substring string) ([]string, error)
}

// Closer is implemented by backends holding network clients.
type Closer interface {
	Close() error
}

func matchAndSort(keys []string, substring string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.Contains(k, substring) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
