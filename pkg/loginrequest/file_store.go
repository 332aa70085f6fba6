package loginrequest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileStore keeps one JSON file per scope under dataDir. Expired files are
// swept by Save at most once per ttl.
type FileStore struct {
	dataDir   string
	expiry    expiry
	lastSweep time.Time
	mutex     sync.Mutex
}

// NewFileStore creates a file-based store, creating dataDir if needed
func NewFileStore(dataDir string, opts ...StoreOption) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{dataDir: dataDir, expiry: newExpiry(opts)}, nil
}

func (s *FileStore) path(scope string) string {
	return filepath.Join(s.dataDir, url.PathEscape(Key(scope))+".json")
}

func (s *FileStore) Save(ctx context.Context, scope string, req LoginRequest) error {
	data, err := encode(req, s.expiry.now())
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.expiry.sweepDue(&s.lastSweep) {
		if _, err := s.pruneLocked(); err != nil {
			slog.Warn("Failed to prune login requests", "dir", s.dataDir, "error", err)
		}
	}

	if err := os.WriteFile(s.path(scope), data, 0600); err != nil {
		return fmt.Errorf("failed to write login request: %w", err)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context, scope string) (*LoginRequest, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	path := s.path(scope)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read login request: %w", err)
	}

	rec, ok := decode(data)
	if !ok {
		slog.Warn("Discarding malformed login request", "path", path)
		if err := removeFile(path); err != nil {
			return nil, fmt.Errorf("failed to remove malformed login request: %w", err)
		}
		return nil, nil
	}
	if s.expiry.expired(rec.CreatedAt) {
		if err := removeFile(path); err != nil {
			return nil, fmt.Errorf("failed to remove expired login request: %w", err)
		}
		return nil, nil
	}
	return &rec.LoginRequest, nil
}

func (s *FileStore) Clear(ctx context.Context, scope string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := removeFile(s.path(scope)); err != nil {
		return fmt.Errorf("failed to remove login request: %w", err)
	}
	return nil
}

// Prune removes expired and malformed login request files
func (s *FileStore) Prune(ctx context.Context) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.pruneLocked()
}

func (s *FileStore) pruneLocked() (int, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return 0, fmt.Errorf("failed to list login requests: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dataDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if rec, ok := decode(data); ok && !s.expiry.expired(rec.CreatedAt) {
			continue
		}
		if err := removeFile(path); err != nil {
			return removed, fmt.Errorf("failed to remove login request: %w", err)
		}
		removed++
	}
	return removed, nil
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
