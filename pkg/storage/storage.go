package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore writes uploaded files under a root directory. Paths
// handed out are relative so they stay valid across hosts sharing the
// same volume.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// Save streams content to the given relative path, creating parent
// directories as needed.
func (s *LocalStore) Save(relPath string, content io.Reader) error {
	fullPath := filepath.Join(s.root, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Path resolves a relative path to its absolute location on disk.
func (s *LocalStore) Path(relPath string) string {
	return filepath.Join(s.root, relPath)
}

// Open returns a reader for a stored file.
func (s *LocalStore) Open(relPath string) (*os.File, error) {
	return os.Open(s.Path(relPath))
}

// Remove deletes a stored file. Missing files are not an error.
func (s *LocalStore) Remove(relPath string) error {
	err := os.Remove(s.Path(relPath))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
