// Package storage holds the blob-storage collaborator. The core only ever
// sees the stored name, public URL and MIME type it returns.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/conecta-ies/solicitation-service/internal/config"
)

// StoredFile is what the core persists about an uploaded blob.
type StoredFile struct {
	StoredName string
	PublicURL  string
	MimeType   string
}

// BlobStore persists raw upload bytes somewhere reachable by URL.
type BlobStore interface {
	Save(ctx context.Context, originalName, mimeType string, content io.Reader) (StoredFile, error)
}

type localStore struct {
	dir     string
	baseURL string
}

// NewLocalStore writes blobs to a directory served statically under baseURL.
func NewLocalStore(cfg config.UploadConfig) (BlobStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &localStore{dir: cfg.Dir, baseURL: strings.TrimRight(cfg.BaseURL, "/")}, nil
}

// Save stores the content under a random name, keeping only the original
// extension so uploads cannot collide or traverse paths.
func (s *localStore) Save(_ context.Context, originalName, mimeType string, content io.Reader) (StoredFile, error) {
	ext := filepath.Ext(originalName)
	name := strings.ReplaceAll(uuid.NewString(), "-", "") + ext

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return StoredFile{}, fmt.Errorf("create blob: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		return StoredFile{}, fmt.Errorf("write blob: %w", err)
	}

	return StoredFile{
		StoredName: name,
		PublicURL:  s.baseURL + "/" + name,
		MimeType:   mimeType,
	}, nil
}
