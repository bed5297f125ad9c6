package idempotency

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/huanth/bi-a-manager/internal/platform/firestore"
)

const defaultCollection = "settlement_keys"

// FirestoreOption customises FirestoreStore.
type FirestoreOption func(*FirestoreStore)

// WithCollection overrides the collection holding reservations.
func WithCollection(name string) FirestoreOption {
	return func(store *FirestoreStore) {
		if name != "" {
			store.collection = name
		}
	}
}

// WithTxOptions forwards transaction options such as attempts and timeout.
func WithTxOptions(opts ...pfirestore.TxOption) FirestoreOption {
	return func(store *FirestoreStore) {
		store.txOpts = append(store.txOpts, opts...)
	}
}

// FirestoreStore keeps reservations in Firestore so every API instance shares them.
type FirestoreStore struct {
	provider   *pfirestore.Provider
	collection string
	txOpts     []pfirestore.TxOption
}

var _ Store = (*FirestoreStore)(nil)

// NewFirestoreStore binds a store to provider.
func NewFirestoreStore(provider *pfirestore.Provider, opts ...FirestoreOption) (*FirestoreStore, error) {
	if provider == nil {
		return nil, errors.New("idempotency: firestore provider is required")
	}
	store := &FirestoreStore{provider: provider, collection: defaultCollection}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// Reserve implements Store.
func (s *FirestoreStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	key, now, ttl, err := normalise(key, now, ttl)
	if err != nil {
		return Reservation{}, err
	}
	ref, err := s.ref(ctx, key)
	if err != nil {
		return Reservation{}, err
	}

	var res Reservation
	err = s.provider.RunTransaction(ctx, "idempotency.reserve", func(ctx context.Context, tx *firestore.Transaction) error {
		stored, found, err := readRecord(tx, ref)
		if err != nil {
			return err
		}
		var write bool
		if res, write, err = reserveTransition(stored, found, key, fingerprint, now, ttl); err != nil || !write {
			return err
		}
		return tx.Set(ref, res.Record)
	}, s.txOpts...)
	if errors.Is(err, ErrFingerprintMismatch) {
		return Reservation{}, ErrFingerprintMismatch
	}
	return res, err
}

// Complete implements Store.
func (s *FirestoreStore) Complete(ctx context.Context, key, fingerprint string, result []byte, now time.Time, ttl time.Duration) error {
	key, now, ttl, err := normalise(key, now, ttl)
	if err != nil {
		return err
	}
	ref, err := s.ref(ctx, key)
	if err != nil {
		return err
	}
	err = s.provider.RunTransaction(ctx, "idempotency.complete", func(ctx context.Context, tx *firestore.Transaction) error {
		stored, found, err := readRecord(tx, ref)
		if err != nil {
			return err
		}
		next, err := completeTransition(stored, found, key, fingerprint, result, now, ttl)
		if err != nil {
			return err
		}
		return tx.Set(ref, next)
	}, s.txOpts...)
	if errors.Is(err, ErrFingerprintMismatch) {
		return ErrFingerprintMismatch
	}
	return err
}

// Release implements Store. A reservation held under another fingerprint is left alone.
func (s *FirestoreStore) Release(ctx context.Context, key, fingerprint string) error {
	ref, err := s.ref(ctx, key)
	if err != nil {
		return err
	}
	return s.provider.RunTransaction(ctx, "idempotency.release", func(ctx context.Context, tx *firestore.Transaction) error {
		record, found, err := readRecord(tx, ref)
		if err != nil || !found || record.Fingerprint != fingerprint {
			return err
		}
		return tx.Delete(ref)
	}, s.txOpts...)
}

// CleanupExpired implements Store.
func (s *FirestoreStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	client, err := s.provider.Client(ctx)
	if err != nil {
		return 0, err
	}
	docs, err := client.Collection(s.collection).
		Where("expires_at", "<=", now.UTC()).
		Limit(limit).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, pfirestore.WrapError("idempotency.cleanup", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	writer := client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(docs))
	for _, doc := range docs {
		job, err := writer.Delete(doc.Ref)
		if err != nil {
			writer.End()
			return 0, pfirestore.WrapError("idempotency.cleanup", err)
		}
		jobs = append(jobs, job)
	}
	writer.End()

	removed := 0
	for _, job := range jobs {
		if _, err := job.Results(); err == nil {
			removed++
		}
	}
	return removed, nil
}

// Ping checks the backing Firestore client.
func (s *FirestoreStore) Ping(ctx context.Context) error {
	return s.provider.Ping(ctx)
}

func (s *FirestoreStore) ref(ctx context.Context, key string) (*firestore.DocumentRef, error) {
	coll, err := s.provider.Collection(ctx, s.collection)
	if err != nil {
		return nil, err
	}
	return coll.Doc(documentID(key)), nil
}

func readRecord(tx *firestore.Transaction, ref *firestore.DocumentRef) (Record, bool, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	var stored Record
	if err := snap.DataTo(&stored); err != nil {
		return Record{}, false, err
	}
	return stored, true, nil
}
