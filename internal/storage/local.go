package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalService writes files under a fixed directory on disk.
type LocalService struct {
	root string
}

func NewLocalService(root string) (*LocalService, error) {
	root = filepath.Clean(root)
	if root == "" || root == "." {
		return nil, fmt.Errorf("storage directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalService{root: root}, nil
}

func (s *LocalService) Save(ctx context.Context, obj Object) (string, error) {
	if obj.Body == nil {
		return "", fmt.Errorf("file body is required")
	}
	path := filepath.Join(s.root, UniqueName(obj.Field, obj.Filename))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file %s: %w", path, err)
	}
	_, err = io.Copy(f, obj.Body)
	closeErr := f.Close()
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write file %s: %w", path, err)
	}
	if closeErr != nil {
		os.Remove(path)
		return "", fmt.Errorf("close file %s: %w", path, closeErr)
	}
	return filepath.ToSlash(path), nil
}

// Delete removes a file previously returned by Save. References outside the root are refused.
func (s *LocalService) Delete(ctx context.Context, ref string) error {
	if strings.TrimSpace(ref) == "" {
		return nil
	}
	clean := filepath.Clean(filepath.FromSlash(ref))
	rel, err := filepath.Rel(s.root, clean)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("path %s is outside storage root", ref)
	}
	if err := os.Remove(clean); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file %s: %w", clean, err)
	}
	return nil
}

var _ Service = (*LocalService)(nil)
