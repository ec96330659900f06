// Package runs keeps a queryable projection of pipeline status events, one
// entry per run, so clients can poll progress while a submission is open.
package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"resumind/internal/queue"
	"resumind/internal/shared/metrics"
	"resumind/internal/shared/storage/kv"
)

// KeyPrefix namespaces run projections in the key/value store.
const KeyPrefix = "run:"

// ErrNotFound is returned when no events were seen for a run.
var ErrNotFound = errors.New("run not found")

// Entry is one status transition.
type Entry struct {
	Stage  string    `json:"stage"`
	Status string    `json:"status"`
	Failed bool      `json:"failed,omitempty"`
	At     time.Time `json:"at"`
}

// Status is the projected state of one run.
type Status struct {
	RunID         string    `json:"runId"`
	RequestID     string    `json:"requestId,omitempty"`
	Stage         string    `json:"stage"`
	StatusMessage string    `json:"statusMessage"`
	Failed        bool      `json:"failed"`
	RecordID      string    `json:"recordId,omitempty"`
	NavigateTo    string    `json:"navigateTo,omitempty"`
	History       []Entry   `json:"history"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Projector folds status messages into Status values stored under run:<id>.
// Events may arrive out of order or more than once; entries are ordered by
// their timestamp and exact duplicates are dropped.
type Projector struct {
	KV  kv.Store
	Now func() time.Time

	mu sync.Mutex
}

// NewProjector returns a projector over store.
func NewProjector(store kv.Store) *Projector {
	return &Projector{KV: store, Now: time.Now}
}

// Key is the storage key for runID.
func Key(runID string) string {
	return KeyPrefix + runID
}

// Get returns the projection for runID.
func (p *Projector) Get(ctx context.Context, runID string) (Status, error) {
	if strings.TrimSpace(runID) == "" {
		return Status{}, ErrNotFound
	}
	raw, err := p.KV.Get(ctx, Key(runID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return Status{}, ErrNotFound
		}
		return Status{}, err
	}
	var st Status
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return Status{}, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return st, nil
}

// HandleMessage parses body and applies it. Parse failures are returned as
// ErrEmptyBody, ErrDecode or ErrMissingRunID; store failures as ErrProcess.
func (p *Projector) HandleMessage(ctx context.Context, body string) error {
	msg, _, err := ParseMessage(body)
	if err != nil {
		metrics.IncStatusEvent("dropped")
		return err
	}
	_, err = p.Apply(ctx, msg)
	return err
}

// Apply folds msg into the run's projection and stores the result.
func (p *Projector) Apply(ctx context.Context, msg queue.Message) (Status, error) {
	if strings.TrimSpace(msg.RunID) == "" {
		return Status{}, ErrMissingRunID{RequestID: msg.RequestID}
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	st, err := p.Get(ctx, msg.RunID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		metrics.IncStatusEvent("failed")
		return Status{}, ErrProcess{RunID: msg.RunID, Err: err}
	}
	st = fold(st, msg, p.now())

	data, err := json.Marshal(st)
	if err != nil {
		return Status{}, ErrProcess{RunID: msg.RunID, Err: err}
	}
	if err := p.KV.Set(ctx, Key(msg.RunID), string(data)); err != nil {
		metrics.IncStatusEvent("failed")
		return Status{}, ErrProcess{RunID: msg.RunID, Err: err}
	}
	metrics.IncStatusEvent("applied")
	return st, nil
}

func (p *Projector) now() time.Time {
	if p.Now == nil {
		return time.Now().UTC()
	}
	return p.Now().UTC()
}

func fold(st Status, msg queue.Message, now time.Time) Status {
	at, err := time.Parse(time.RFC3339Nano, msg.OccurredAt)
	if err != nil {
		at = now
	}
	entry := Entry{Stage: msg.Stage, Status: msg.Status, Failed: msg.Failed, At: at.UTC()}

	st.RunID = msg.RunID
	if msg.RequestID != "" {
		st.RequestID = msg.RequestID
	}
	if msg.RecordID != "" {
		st.RecordID = msg.RecordID
	}
	for _, e := range st.History {
		if e.Stage == entry.Stage && e.Status == entry.Status && e.Failed == entry.Failed && e.At.Equal(entry.At) {
			return st
		}
	}
	st.History = append(st.History, entry)
	sort.SliceStable(st.History, func(i, j int) bool {
		return st.History[i].At.Before(st.History[j].At)
	})

	last := st.History[len(st.History)-1]
	st.Stage = last.Stage
	st.StatusMessage = last.Status
	st.Failed = last.Failed
	st.UpdatedAt = now
	st.NavigateTo = ""
	if st.Stage == "completed" && st.RecordID != "" {
		st.NavigateTo = "/resume/" + st.RecordID
	}
	return st
}
