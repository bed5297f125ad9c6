// Package storage writes venue document snapshots to Cloud Storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/oklog/ulid/v2"
)

// ObjectStore is the subset of Cloud Storage used by the exporter.
type ObjectStore interface {
	Write(ctx context.Context, bucket, object, contentType string, data []byte, metadata map[string]string) error
	Copy(ctx context.Context, bucket, source, dest string) error
}

// ExportResult describes a written snapshot.
type ExportResult struct {
	Bucket    string    `json:"bucket"`
	Object    string    `json:"object"`
	Latest    string    `json:"latest"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// ExporterOption customises an Exporter.
type ExporterOption func(*Exporter)

// WithExportClock overrides the clock used for object paths.
func WithExportClock(clock func() time.Time) ExporterOption {
	return func(e *Exporter) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithExportIDGenerator overrides object ID generation.
func WithExportIDGenerator(gen func() string) ExporterOption {
	return func(e *Exporter) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// WithExportLocation sets the zone used for the dated path segments.
func WithExportLocation(loc *time.Location) ExporterOption {
	return func(e *Exporter) {
		if loc != nil {
			e.location = loc
		}
	}
}

// Exporter writes snapshots under a bucket prefix and refreshes a latest.json alias.
type Exporter struct {
	store    ObjectStore
	bucket   string
	layout   Layout
	clock    func() time.Time
	newID    func() string
	location *time.Location
}

// NewExporter constructs an exporter for bucket.
func NewExporter(store ObjectStore, bucket, prefix string, opts ...ExporterOption) (*Exporter, error) {
	if store == nil {
		return nil, errors.New("storage exporter: object store is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("storage exporter: bucket is required")
	}
	e := &Exporter{
		store:    store,
		bucket:   bucket,
		clock:    time.Now,
		newID:    func() string { return ulid.Make().String() },
		location: time.UTC,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	layout, err := NewLayout(prefix, e.location)
	if err != nil {
		return nil, err
	}
	e.layout = layout
	return e, nil
}

// Export writes snapshot as a new object, then copies it to the latest alias.
func (e *Exporter) Export(ctx context.Context, snapshot []byte, actor string) (ExportResult, error) {
	if len(snapshot) == 0 {
		return ExportResult{}, errors.New("storage exporter: snapshot is empty")
	}
	now := e.clock().UTC()
	object, err := e.layout.Snapshot(now, e.newID())
	if err != nil {
		return ExportResult{}, err
	}
	latest := e.layout.Latest()

	metadata := map[string]string{"exportedAt": now.Format(time.RFC3339)}
	if actor = strings.TrimSpace(actor); actor != "" {
		metadata["exportedBy"] = actor
	}
	if err := e.store.Write(ctx, e.bucket, object, "application/json", snapshot, metadata); err != nil {
		return ExportResult{}, fmt.Errorf("storage exporter: write %s: %w", object, err)
	}
	if err := e.store.Copy(ctx, e.bucket, object, latest); err != nil {
		return ExportResult{}, fmt.Errorf("storage exporter: copy to %s: %w", latest, err)
	}
	return ExportResult{Bucket: e.bucket, Object: object, Latest: latest, Size: len(snapshot), CreatedAt: now}, nil
}

// GCSObjectStore implements ObjectStore on a Cloud Storage client.
type GCSObjectStore struct {
	client *gcs.Client
}

var _ ObjectStore = (*GCSObjectStore)(nil)

// NewGCSObjectStore wraps client.
func NewGCSObjectStore(client *gcs.Client) (*GCSObjectStore, error) {
	if client == nil {
		return nil, errors.New("storage: client is required")
	}
	return &GCSObjectStore{client: client}, nil
}

// Write uploads data, failing if the object already exists.
func (s *GCSObjectStore) Write(ctx context.Context, bucket, object, contentType string, data []byte, metadata map[string]string) error {
	w := s.client.Bucket(bucket).Object(object).If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = metadata
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Copy copies source to dest inside bucket.
func (s *GCSObjectStore) Copy(ctx context.Context, bucket, source, dest string) error {
	if source == dest {
		return nil
	}
	b := s.client.Bucket(bucket)
	_, err := b.Object(dest).CopierFrom(b.Object(source)).Run(ctx)
	return err
}

// Ping checks that bucket is reachable.
func (s *GCSObjectStore) Ping(ctx context.Context, bucket string) error {
	_, err := s.client.Bucket(bucket).Attrs(ctx)
	return err
}

// Close releases the client.
func (s *GCSObjectStore) Close() error {
	return s.client.Close()
}
