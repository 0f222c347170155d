package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Archive keeps a copy of every invoice document the API receives,
// laid out by receipt date so operators can replay or audit a batch.
type Archive struct {
	basePath string
}

func New(basePath string) (*Archive, error) {
	if basePath == "" {
		basePath = "./data/invoices"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Archive{basePath: basePath}, nil
}

// Store writes the raw document and returns the archive key.
func (a *Archive) Store(_ context.Context, data io.Reader) (string, error) {
	day := time.Now().UTC().Format("2006-01-02")
	dir := filepath.Join(a.basePath, day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive day dir: %w", err)
	}

	key := filepath.Join(day, uuid.NewString()+".xml")
	f, err := os.Create(filepath.Join(a.basePath, key))
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return "", fmt.Errorf("write archive file: %w", err)
	}
	return filepath.ToSlash(key), nil
}

// Open returns the archived document for a key produced by Store.
func (a *Archive) Open(_ context.Context, key string) (io.ReadCloser, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, fmt.Errorf("invalid archive key %q", key)
	}
	f, err := os.Open(filepath.Join(a.basePath, clean))
	if err != nil {
		return nil, fmt.Errorf("open archive file: %w", err)
	}
	return f, nil
}
