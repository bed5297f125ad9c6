package firestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/huanth/bi-a-manager/internal/platform/firestore"
	"github.com/huanth/bi-a-manager/internal/repositories/docstore"
)

const defaultDocumentCollection = "venue_documents"

// documentEntry stores one top-level key of the venue document. The value is kept as JSON
// text so unmodelled keys round-trip unchanged.
type documentEntry struct {
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// DocumentBackend keeps the venue document in a Firestore collection, one Firestore
// document per top-level key. Replace rewrites the collection in a single transaction.
type DocumentBackend struct {
	provider   *pfirestore.Provider
	collection string
	clock      func() time.Time
}

var (
	_ docstore.Backend = (*DocumentBackend)(nil)
	_ docstore.Pinger  = (*DocumentBackend)(nil)
)

// NewDocumentBackend binds the backend to collection.
func NewDocumentBackend(provider *pfirestore.Provider, collection string, clock func() time.Time) (*DocumentBackend, error) {
	if provider == nil {
		return nil, errors.New("firestore document backend: provider is required")
	}
	if strings.TrimSpace(collection) == "" {
		collection = defaultDocumentCollection
	}
	if clock == nil {
		clock = time.Now
	}
	return &DocumentBackend{
		provider:   provider,
		collection: strings.TrimSpace(collection),
		clock:      clock,
	}, nil
}

// Fetch implements docstore.Backend. All keys are read in one read-only transaction so a
// concurrent Replace is never seen half applied.
func (b *DocumentBackend) Fetch(ctx context.Context) (docstore.Document, error) {
	coll, err := b.provider.Collection(ctx, b.collection)
	if err != nil {
		return nil, err
	}
	var out docstore.Document
	err = b.provider.RunTransaction(ctx, "document.fetch", func(ctx context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.Documents(coll).GetAll()
		if err != nil {
			return err
		}
		out = make(docstore.Document, len(snaps))
		for _, snap := range snaps {
			var entry documentEntry
			if err := snap.DataTo(&entry); err != nil {
				return fmt.Errorf("decode key %q: %w", snap.Ref.ID, err)
			}
			out[snap.Ref.ID] = json.RawMessage(entry.Value)
		}
		return nil
	}, pfirestore.ReadOnly())
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Replace implements docstore.Backend. Keys absent from doc are deleted.
func (b *DocumentBackend) Replace(ctx context.Context, doc docstore.Document) error {
	for key := range doc {
		if key == "" || strings.Contains(key, "/") {
			return &docstore.Error{Op: "firestore.replace", Err: fmt.Errorf("key %q cannot be stored", key)}
		}
	}
	coll, err := b.provider.Collection(ctx, b.collection)
	if err != nil {
		return err
	}
	now := b.clock().UTC()

	return b.provider.RunTransaction(ctx, "document.replace", func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(coll).GetAll()
		if err != nil {
			return err
		}
		for _, snap := range existing {
			if _, keep := doc[snap.Ref.ID]; !keep {
				if err := tx.Delete(snap.Ref); err != nil {
					return err
				}
			}
		}
		for key, raw := range doc {
			entry := documentEntry{Value: string(raw), UpdatedAt: now}
			if err := tx.Set(coll.Doc(key), entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// Ping implements docstore.Pinger.
func (b *DocumentBackend) Ping(ctx context.Context) error {
	return b.provider.Ping(ctx)
}
