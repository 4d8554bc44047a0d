package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/afero"

	"github.com/veranemoloko/clip-downloader/internal/domain"
	errpkg "github.com/veranemoloko/clip-downloader/internal/errors"
	"github.com/veranemoloko/clip-downloader/internal/storage"
)

// FileHistory keeps the history in memory and persists it to a JSON state file.
type FileHistory struct {
	mu      sync.RWMutex
	entries map[string]Entry
	file    string
	store   *storage.FileStorage
	logger  *slog.Logger
}

// NewFileHistory creates a FileHistory and loads entries from the file if it exists.
func NewFileHistory(fsys afero.Fs, filePath string, logger *slog.Logger) (*FileHistory, error) {
	repo := &FileHistory{
		entries: make(map[string]Entry),
		file:    filepath.Clean(filePath),
		store:   storage.NewFileStorage(fsys, storage.PolicyExists),
		logger:  logger.With("component", "history"),
	}

	if err := repo.restore(); err != nil {
		return nil, fmt.Errorf("failed to load state from file: %w", err)
	}

	repo.logger.Info("history initialized", "file_path", repo.file, "entries", len(repo.entries))
	return repo, nil
}

func (r *FileHistory) restore() error {
	data, err := afero.ReadFile(r.store.Fs(), r.file)
	if errors.Is(err, fs.ErrNotExist) {
		r.logger.Info("state file does not exist, starting with empty history", "file_path", r.file)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}

	if len(data) == 0 {
		r.logger.Warn("state file is empty")
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to unmarshal state file: %w", err)
	}

	for _, e := range entries {
		r.entries[key(e.Platform, e.ItemID)] = e
	}
	return nil
}

// persist must be called with r.mu held.
func (r *FileHistory) persist() error {
	entries := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return key(entries[i].Platform, entries[i].ItemID) < key(entries[j].Platform, entries[j].ItemID)
	})

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := r.store.WriteFile(r.file, data); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	r.logger.Debug("history saved", "entries", len(entries), "file_path", r.file)
	return nil
}

// Record upserts entries and persists the file.
func (r *FileHistory) Record(ctx context.Context, entries ...Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.entries[key(e.Platform, e.ItemID)] = e
	}
	if err := r.persist(); err != nil {
		return fmt.Errorf("failed to save state after recording: %w", err)
	}
	return nil
}

// Get retrieves the entry of one item.
func (r *FileHistory) Get(ctx context.Context, platform domain.Platform, itemID string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	e, ok := r.entries[key(platform, itemID)]
	r.mu.RUnlock()

	if !ok {
		return nil, errpkg.ErrNotFound
	}
	return &e, nil
}
