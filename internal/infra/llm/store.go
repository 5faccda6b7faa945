// Package llm — model payload store.
// The bundled model asset ships alongside the binary; on first load it is
// materialized into the service data directory so the runtime always reads
// from stable private storage, surviving asset-dir relocation or upgrades.
package llm

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ModelStore resolves the absolute path of the model payload, materializing
// it on first use.
type ModelStore interface {
	// EnsureModel returns the absolute path of the payload in private
	// storage, copying it from the bundled asset if not yet materialized.
	EnsureModel(ctx context.Context) (string, error)
}

// FileModelStore copies a bundled asset file into a data directory.
type FileModelStore struct {
	assetsDir string
	dataDir   string
	filename  string
}

// NewFileModelStore creates a FileModelStore. Directories are not created
// until EnsureModel runs.
func NewFileModelStore(assetsDir, dataDir, filename string) *FileModelStore {
	return &FileModelStore{assetsDir: assetsDir, dataDir: dataDir, filename: filename}
}

// EnsureModel materializes the payload under dataDir and returns its path.
// A payload already present in dataDir is reused without copying, so repeated
// initialization is cheap. Returns ErrModelAssetMissing when neither the
// materialized payload nor the bundled asset exists.
func (s *FileModelStore) EnsureModel(ctx context.Context) (string, error) {
	dst := filepath.Join(s.dataDir, s.filename)
	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}

	src := filepath.Join(s.assetsDir, s.filename)
	info, err := os.Stat(src)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", ErrModelAssetMissing, src)
	}
	if err != nil {
		return "", fmt.Errorf("stat asset %q: %w", src, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrModelAssetMissing, src)
	}

	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir %q: %w", s.dataDir, err)
	}

	if err := copyFile(ctx, src, dst); err != nil {
		// Remove a partial copy so the next attempt starts clean.
		_ = os.Remove(dst)
		return "", fmt.Errorf("materialize model payload: %w", err)
	}

	return dst, nil
}

// copyFile copies src to dst, checking ctx between chunks so a multi-GB
// payload copy can be abandoned.
func copyFile(ctx context.Context, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck

	buf := make([]byte, 1<<20) // 1MB chunks
	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		n, readErr := in.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return writeErr
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return readErr
		}
	}
	return out.Close()
}
