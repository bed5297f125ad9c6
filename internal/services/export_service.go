package services

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/huanth/bi-a-manager/internal/domain"
	"github.com/huanth/bi-a-manager/internal/platform/storage"
	"github.com/huanth/bi-a-manager/internal/repositories"
)

const exportEventWritten = "export.written"

// ExportServiceDeps bundles collaborators required to construct the export service.
type ExportServiceDeps struct {
	Snapshots repositories.SnapshotRepository
	Exporter  SnapshotExporter
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type exportService struct {
	snapshots repositories.SnapshotRepository
	exporter  SnapshotExporter
	logger    func(context.Context, string, map[string]any)
}

var _ ExportService = (*exportService)(nil)

// NewExportService builds the export service. A nil exporter yields a service that reports
// ErrExportNotConfigured.
func NewExportService(deps ExportServiceDeps) (ExportService, error) {
	if deps.Snapshots == nil {
		return nil, errors.New("export service: snapshot repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &exportService{snapshots: deps.Snapshots, exporter: deps.Exporter, logger: logger}, nil
}

// Export writes the current venue document to object storage.
func (s *exportService) Export(ctx context.Context, actor domain.Actor) (storage.ExportResult, error) {
	if s.exporter == nil {
		return storage.ExportResult{}, ErrExportNotConfigured
	}
	snapshot, err := s.snapshots.Snapshot(ctx)
	if err != nil {
		return storage.ExportResult{}, storeError("snapshot", err)
	}
	result, err := s.exporter.Export(ctx, snapshot, actor.Name())
	if err != nil {
		return storage.ExportResult{}, fmt.Errorf("export service: %w", err)
	}
	s.logger(ctx, exportEventWritten, map[string]any{
		"bucket": result.Bucket,
		"object": result.Object,
		"size":   result.Size,
		"actor":  actor.Name(),
	})
	return result, nil
}
