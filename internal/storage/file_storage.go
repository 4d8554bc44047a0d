package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// CompletenessPolicy decides whether a file already on disk counts as downloaded.
type CompletenessPolicy string

const (
	// PolicyExists accepts any non-empty file.
	PolicyExists CompletenessPolicy = "exists"
	// PolicySize additionally requires the size reported by the upstream metadata, when known.
	PolicySize CompletenessPolicy = "size"
)

func ParseCompletenessPolicy(s string) (CompletenessPolicy, error) {
	switch CompletenessPolicy(s) {
	case PolicyExists, PolicySize:
		return CompletenessPolicy(s), nil
	}
	return "", fmt.Errorf("unknown completeness policy %q", s)
}

// FileStorage wraps a filesystem with the temp-then-rename write protocol.
type FileStorage struct {
	fs     afero.Fs
	policy CompletenessPolicy
}

// NewFileStorage creates a FileStorage on fs.
func NewFileStorage(fs afero.Fs, policy CompletenessPolicy) *FileStorage {
	if policy == "" {
		policy = PolicySize
	}
	return &FileStorage{fs: fs, policy: policy}
}

func (s *FileStorage) Fs() afero.Fs { return s.fs }

// IsComplete applies the completeness policy to the file at path.
// expected is the upstream-reported size, or 0 when unknown.
func (s *FileStorage) IsComplete(path string, expected int64) bool {
	info, err := s.fs.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return false
	}
	if s.policy == PolicySize && expected > 0 {
		return info.Size() == expected
	}
	return true
}

// CreateTemp truncates or creates the file at path, creating parent directories.
func (s *FileStorage) CreateTemp(path string) (afero.File, error) {
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	return s.fs.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
}

// Commit atomically moves a fully written temp file to its final path.
func (s *FileStorage) Commit(tempPath, finalPath string) error {
	if err := s.fs.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return fmt.Errorf("create target dir: %w", err)
	}
	if err := s.fs.Rename(tempPath, finalPath); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(finalPath), err)
	}
	return nil
}

// Remove deletes path, ignoring a missing file.
func (s *FileStorage) Remove(path string) error {
	if err := s.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RemoveEmptyDir deletes dir when it holds no entries, ignoring a missing directory.
func (s *FileStorage) RemoveEmptyDir(dir string) error {
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(entries) > 0 {
		return nil
	}
	return s.Remove(dir)
}

// WriteFile writes data to path via a temp file and rename.
func (s *FileStorage) WriteFile(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := s.CreateTemp(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = s.Remove(tmp)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		_ = s.Remove(tmp)
		return err
	}
	return s.Commit(tmp, path)
}
