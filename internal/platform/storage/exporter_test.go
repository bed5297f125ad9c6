package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type write struct {
	bucket, object, contentType string
	data                        []byte
	metadata                    map[string]string
}

type fakeObjectStore struct {
	writes   []write
	copies   [][2]string
	writeErr error
}

func (f *fakeObjectStore) Write(_ context.Context, bucket, object, contentType string, data []byte, metadata map[string]string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, write{bucket, object, contentType, data, metadata})
	return nil
}

func (f *fakeObjectStore) Copy(_ context.Context, _ string, source, dest string) error {
	f.copies = append(f.copies, [2]string{source, dest})
	return nil
}

func TestExporterWritesDatedObjectAndAlias(t *testing.T) {
	store := &fakeObjectStore{}
	saigon, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	require.NoError(t, err)
	// 18:30 UTC is already the next day in Saigon.
	now := time.Date(2025, 3, 9, 18, 30, 0, 0, time.UTC)

	exporter, err := NewExporter(store, "venue-backups", "exports/",
		WithExportClock(func() time.Time { return now }),
		WithExportIDGenerator(func() string { return "01JEXPORT" }),
		WithExportLocation(saigon),
	)
	require.NoError(t, err)

	res, err := exporter.Export(context.Background(), []byte(`{"tables":[]}`), "chu.quan")
	require.NoError(t, err)

	assert.Equal(t, "exports/2025/03/10/01JEXPORT.json", res.Object)
	assert.Equal(t, "exports/latest.json", res.Latest)
	require.Len(t, store.writes, 1)
	assert.Equal(t, "application/json", store.writes[0].contentType)
	assert.Equal(t, "chu.quan", store.writes[0].metadata["exportedBy"])
	assert.Equal(t, [][2]string{{"exports/2025/03/10/01JEXPORT.json", "exports/latest.json"}}, store.copies)
}

func TestExporterFailures(t *testing.T) {
	_, err := NewExporter(nil, "b", "")
	assert.Error(t, err)
	_, err = NewExporter(&fakeObjectStore{}, " ", "")
	assert.Error(t, err)
	_, err = NewExporter(&fakeObjectStore{}, "b", "../etc")
	assert.Error(t, err)

	exporter, err := NewExporter(&fakeObjectStore{writeErr: errors.New("denied")}, "b", "")
	require.NoError(t, err)
	_, err = exporter.Export(context.Background(), []byte(`{}`), "")
	assert.Error(t, err)
	_, err = exporter.Export(context.Background(), nil, "")
	assert.Error(t, err)
}

func TestLayout(t *testing.T) {
	ict := time.FixedZone("ICT", 7*3600)
	lateNight := time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC)

	root, err := NewLayout("", nil)
	require.NoError(t, err)
	object, err := root.Snapshot(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), "X")
	require.NoError(t, err)
	assert.Equal(t, "2025/01/02/X.json", object)
	assert.Equal(t, "latest.json", root.Latest())

	venue, err := NewLayout("/club/exports/", ict)
	require.NoError(t, err)
	object, err = venue.Snapshot(lateNight, "01J")
	require.NoError(t, err)
	assert.Equal(t, "club/exports/2025/03/11/01J.json", object)
	assert.Equal(t, "club/exports/latest.json", venue.Latest())

	for _, id := range []string{"", "a/b", "..", `a\b`} {
		_, err := venue.Snapshot(lateNight, id)
		assert.Error(t, err, id)
	}
	for _, prefix := range []string{"a/../b", "a//b", "."} {
		_, err := NewLayout(prefix, nil)
		assert.Error(t, err, prefix)
	}
}
