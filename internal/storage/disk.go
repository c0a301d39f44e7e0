package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DiskStore writes photos under a local directory that the HTTP server also
// serves at URLPrefix.
type DiskStore struct {
	root      string
	urlPrefix string
}

func NewDiskStore(root, urlPrefix string) (*DiskStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("upload dir is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &DiskStore{
		root:      root,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
	}, nil
}

func (s *DiskStore) Root() string {
	return s.root
}

func (s *DiskStore) Save(ctx context.Context, key, contentType string, data []byte) (Stored, error) {
	if err := ctx.Err(); err != nil {
		return Stored{}, err
	}
	name := filepath.Base(key)
	if name == "." || name == string(filepath.Separator) || name != key {
		return Stored{}, fmt.Errorf("invalid object key %q", key)
	}

	dst := filepath.Join(s.root, name)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return Stored{}, fmt.Errorf("failed to write file: %w", err)
	}
	return Stored{
		Reference: dst,
		URL:       path.Join(s.urlPrefix, name),
	}, nil
}
