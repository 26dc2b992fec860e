package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/travel-support/internal/application/port"
)

// LocalFileStorage implements port.FileStorage on the local filesystem.
// Refs are slash-separated keys relative to baseDir.
type LocalFileStorage struct {
	baseDir string
	baseURL string
	logger  *zap.Logger
}

// NewLocalFileStorage creates a new LocalFileStorage. When baseURL is set,
// saved files get a download URL of baseURL/key.
func NewLocalFileStorage(baseDir, baseURL string, logger *zap.Logger) *LocalFileStorage {
	return &LocalFileStorage{
		baseDir: baseDir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// Save writes content under key, creating parent directories
func (s *LocalFileStorage) Save(ctx context.Context, key string, content []byte) (port.StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return port.StoredFile{}, err
	}

	fullPath, err := s.resolve(key)
	if err != nil {
		return port.StoredFile{}, err
	}

	parentDir := filepath.Dir(fullPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("path", parentDir),
			zap.Error(err))
		return port.StoredFile{}, fmt.Errorf("failed to create directories: %w", err)
	}

	// write to a temp file first so a reader never sees a partial receipt
	tmp := fullPath + ".part"
	if err := os.WriteFile(tmp, content, 0644); err != nil {
		s.logger.Error("Failed to write file",
			zap.String("path", fullPath),
			zap.Error(err))
		return port.StoredFile{}, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		_ = os.Remove(tmp)
		return port.StoredFile{}, fmt.Errorf("failed to move file into place: %w", err)
	}

	s.logger.Debug("File saved",
		zap.String("key", key),
		zap.Int("size", len(content)))

	file := port.StoredFile{Ref: key}
	if s.baseURL != "" {
		file.URL = s.baseURL + "/" + key
	}
	return file, nil
}

// Read returns the content stored under ref
func (s *LocalFileStorage) Read(ctx context.Context, ref string) ([]byte, error) {
	fullPath, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("file %s: %w", ref, err)
		}
		s.logger.Error("Failed to read file",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return content, nil
}

// Delete removes ref and any directories it leaves empty. Deleting a
// missing file succeeds.
func (s *LocalFileStorage) Delete(ctx context.Context, ref string) error {
	fullPath, err := s.resolve(ref)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Error("Failed to delete file",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to delete file: %w", err)
	}

	s.pruneEmptyDirs(filepath.Dir(fullPath))
	s.logger.Debug("File deleted", zap.String("key", ref))
	return nil
}

// Exists reports whether a file is stored under ref
func (s *LocalFileStorage) Exists(ref string) bool {
	fullPath, err := s.resolve(ref)
	if err != nil {
		return false
	}
	info, err := os.Stat(fullPath)
	return err == nil && !info.IsDir()
}

// pruneEmptyDirs walks up from dir removing empty request and expense
// folders, stopping at baseDir
func (s *LocalFileStorage) pruneEmptyDirs(dir string) {
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return
	}
	for {
		absDir, err := filepath.Abs(dir)
		if err != nil || absDir == absBase || !strings.HasPrefix(absDir, absBase+string(filepath.Separator)) {
			return
		}
		entries, err := os.ReadDir(absDir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(absDir); err != nil {
			return
		}
		dir = filepath.Dir(absDir)
	}
}

// resolve maps a key to a path inside baseDir, refusing anything that
// would escape it
func (s *LocalFileStorage) resolve(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty storage key")
	}
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(key))

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes base directory: %s", key)
	}
	return absPath, nil
}

var _ port.FileStorage = (*LocalFileStorage)(nil)
