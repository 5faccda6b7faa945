package llm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileModelStore_MaterializesAsset(t *testing.T) {
	t.Parallel()

	assetsDir := t.TempDir()
	dataDir := filepath.Join(t.TempDir(), "promptforge") // not created yet
	payload := []byte("gguf payload bytes")
	if err := os.WriteFile(filepath.Join(assetsDir, "m.gguf"), payload, 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewFileModelStore(assetsDir, dataDir, "m.gguf")
	path, err := store.EnsureModel(context.Background())
	if err != nil {
		t.Fatalf("EnsureModel() error = %v", err)
	}
	if path != filepath.Join(dataDir, "m.gguf") {
		t.Errorf("EnsureModel() = %q; want path under data dir", path)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading materialized payload: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("materialized payload = %q; want %q", got, payload)
	}
}

func TestFileModelStore_ReusesMaterializedPayload(t *testing.T) {
	t.Parallel()

	// No asset dir at all — only the already materialized copy exists.
	dataDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dataDir, "m.gguf"), []byte("existing"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewFileModelStore("/nonexistent/assets", dataDir, "m.gguf")
	path, err := store.EnsureModel(context.Background())
	if err != nil {
		t.Fatalf("EnsureModel() error = %v; want reuse of existing payload", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "existing" {
		t.Errorf("payload = %q; want the pre-existing copy untouched", got)
	}
}

func TestFileModelStore_AssetMissing(t *testing.T) {
	t.Parallel()

	store := NewFileModelStore(t.TempDir(), t.TempDir(), "m.gguf")
	_, err := store.EnsureModel(context.Background())
	if !errors.Is(err, ErrModelAssetMissing) {
		t.Errorf("EnsureModel() error = %v; want ErrModelAssetMissing", err)
	}
}

func TestFileModelStore_CanceledCopyLeavesNoPartial(t *testing.T) {
	t.Parallel()

	assetsDir := t.TempDir()
	dataDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(assetsDir, "m.gguf"), []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewFileModelStore(assetsDir, dataDir, "m.gguf")
	if _, err := store.EnsureModel(ctx); err == nil {
		t.Fatal("EnsureModel() error = nil with canceled context; want error")
	}

	if _, err := os.Stat(filepath.Join(dataDir, "m.gguf")); !os.IsNotExist(err) {
		t.Error("partial payload left behind after canceled copy")
	}
}
