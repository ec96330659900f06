package resumes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"resumind/internal/pipeline"
	"resumind/internal/shared/storage/kv"
	"resumind/internal/shared/storage/object"
	"resumind/internal/shared/telemetry"
)

// Repo stores records as JSON under resume:<id>. Previews, when an object
// store is configured, are removed together with their record.
type Repo struct {
	KV       kv.Store
	Previews object.ObjectStore
	Now      func() time.Time
}

// NewRepo builds a Repo. previews may be nil.
func NewRepo(store kv.Store, previews object.ObjectStore) *Repo {
	return &Repo{KV: store, Previews: previews, Now: time.Now}
}

func (r *Repo) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}

// Persist writes a completed pipeline draft as a new record.
func (r *Repo) Persist(ctx context.Context, id string, d pipeline.Draft) error {
	fb := d.Feedback
	_, err := r.Create(ctx, Record{
		ID:             id,
		ImageURL:       d.PreviewRef,
		CompanyName:    d.CompanyName,
		JobTitle:       d.JobTitle,
		JobDescription: d.JobDescription,
		Feedback:       &fb,
	})
	return err
}

// Create stamps CreatedAt and writes rec.
func (r *Repo) Create(ctx context.Context, rec Record) (Record, error) {
	if err := validID(rec.ID); err != nil {
		return Record{}, err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("encode resume: %w", err)
	}
	key := Key(rec.ID)
	if err := r.KV.Set(ctx, key, string(data)); err != nil {
		return Record{}, &StorageError{Op: "set", Key: key, Err: err}
	}
	return rec, nil
}

// Get loads the record with id.
func (r *Repo) Get(ctx context.Context, id string) (Record, error) {
	if err := validID(id); err != nil {
		return Record{}, err
	}
	return r.load(ctx, Key(id))
}

func (r *Repo) load(ctx context.Context, key string) (Record, error) {
	raw, err := r.KV.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, &StorageError{Op: "get", Key: key, Err: err}
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, &StorageError{Op: "get", Key: key, Err: fmt.Errorf("decode: %w", err)}
	}
	return rec, nil
}

// List returns every record, newest first. Entries that fail to decode are
// logged and skipped.
func (r *Repo) List(ctx context.Context) ([]Record, error) {
	keys, err := r.KV.List(ctx, KeyPrefix)
	if err != nil {
		return nil, &StorageError{Op: "list", Key: KeyPrefix, Err: err}
	}
	out := make([]Record, 0, len(keys))
	for _, key := range keys {
		if !strings.HasPrefix(key, KeyPrefix) {
			continue
		}
		rec, err := r.load(ctx, key)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			telemetry.Warn("resumes.list_skip", map[string]any{"key": key, "err": err})
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes the record and its preview. Missing records return ErrNotFound.
func (r *Repo) Delete(ctx context.Context, id string) error {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return r.remove(ctx, Key(id), rec.ImageURL)
}

func (r *Repo) remove(ctx context.Context, key, preview string) error {
	if err := r.KV.Delete(ctx, key); err != nil {
		return &StorageError{Op: "delete", Key: key, Err: err}
	}
	if r.Previews != nil && preview != "" {
		if err := r.Previews.Delete(ctx, preview); err != nil && !errors.Is(err, object.ErrNotFound) {
			telemetry.Warn("resumes.preview_delete_failed", map[string]any{"key": key, "preview": preview, "err": err})
		}
	}
	return nil
}

// Wipe deletes every record under the résumé prefix and returns how many were removed.
func (r *Repo) Wipe(ctx context.Context) (int, error) {
	keys, err := r.KV.List(ctx, KeyPrefix)
	if err != nil {
		return 0, &StorageError{Op: "list", Key: KeyPrefix, Err: err}
	}
	deleted := 0
	for _, key := range keys {
		if !strings.HasPrefix(key, KeyPrefix) {
			continue
		}
		var preview string
		if rec, err := r.load(ctx, key); err == nil {
			preview = rec.ImageURL
		}
		if err := r.remove(ctx, key, preview); err != nil {
			return deleted, err
		}
		deleted++
	}
	telemetry.Info("resumes.wiped", map[string]any{"deleted": deleted})
	return deleted, nil
}

func validID(id string) error {
	if strings.TrimSpace(id) == "" || strings.ContainsAny(id, "/:") {
		return ErrInvalidID
	}
	return nil
}
