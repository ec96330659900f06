package kv

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements Store with one document per key.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

type firestoreEntry struct {
	Key       string    `firestore:"key"`
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// NewFirestoreStore connects to Firestore in projectID.
func NewFirestoreStore(ctx context.Context, projectID, collection string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("FIRESTORE_PROJECT_ID must be set for the firestore kv backend")
	}
	if collection == "" {
		collection = "kv"
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return &FirestoreStore{client: client, collection: collection}, nil
}

func (s *FirestoreStore) Get(ctx context.Context, key string) (string, error) {
	snap, err := s.doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kv get %s: %w", key, err)
	}
	var entry firestoreEntry
	if err := snap.DataTo(&entry); err != nil {
		return "", fmt.Errorf("kv decode %s: %w", key, err)
	}
	return entry.Value, nil
}

func (s *FirestoreStore) Set(ctx context.Context, key, value string) error {
	entry := firestoreEntry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	if _, err := s.doc(key).Set(ctx, entry); err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, key string) error {
	if _, err := s.doc(key).Delete(ctx); err != nil {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}

// List walks the collection; Firestore has no substring query.
func (s *FirestoreStore) List(ctx context.Context, substring string) ([]string, error) {
	iter := s.client.Collection(s.collection).Select("key").Documents(ctx)
	defer iter.Stop()

	var keys []string
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("kv list: %w", err)
		}
		var entry firestoreEntry
		if err := snap.DataTo(&entry); err != nil {
			return nil, fmt.Errorf("kv decode %s: %w", snap.Ref.ID, err)
		}
		keys = append(keys, entry.Key)
	}
	return matchAndSort(keys, substring), nil
}

// Close releases the Firestore client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func (s *FirestoreStore) doc(key string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(firestoreDocID(key))
}

// firestoreDocID escapes '/' which Firestore treats as a path separator.
func firestoreDocID(key string) string {
	return url.PathEscape(key)
}

var _ Store = (*FirestoreStore)(nil)
