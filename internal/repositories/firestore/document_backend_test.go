package firestore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	pconfig "github.com/huanth/bi-a-manager/internal/platform/config"
	pfirestore "github.com/huanth/bi-a-manager/internal/platform/firestore"
	"github.com/huanth/bi-a-manager/internal/repositories/docstore"
)

func TestNewDocumentBackendRequiresProvider(t *testing.T) {
	if _, err := NewDocumentBackend(nil, "venue", nil); err == nil {
		t.Fatal("expected error for nil provider")
	}
}

func TestDocumentBackendRejectsUnstorableKeys(t *testing.T) {
	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: "unit-test"})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })

	backend, err := NewDocumentBackend(provider, "", nil)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}

	for _, key := range []string{"", "tables/1"} {
		err := backend.Replace(context.Background(), docstore.Document{key: json.RawMessage(`[]`)})
		var storeErr *docstore.Error
		if !errors.As(err, &storeErr) {
			t.Fatalf("key %q: expected docstore error, got %v", key, err)
		}
	}
}
