package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	// ErrNotFound is returned by Get for a missing object.
	ErrNotFound = errors.New("artifacts: object not found")
	// ErrInvalidKey is returned for keys that could escape the store root.
	ErrInvalidKey = errors.New("artifacts: invalid key")
)

// Store is the object store recipe images are uploaded to. Keys are chosen by
// the caller; PublicURL resolves the retrieval URL for a key.
type Store interface {
	// Upload persists data under key.
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	// Get retrieves data by key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Exists checks if an object exists.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes an object.
	Delete(ctx context.Context, key string) error
	// PublicURL returns the URL the object is served from.
	PublicURL(key string) string
}

// ValidateKey rejects keys that could escape the bucket or base directory.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + (&url.URL{Path: key}).EscapedPath()
}

// FileStore is a filesystem-backed implementation of Store. Objects are
// served by the API under baseURL.
type FileStore struct {
	baseDir string
	baseURL string
	mu      sync.RWMutex
}

// NewFileStore creates a store rooted at baseDir.
func NewFileStore(baseDir, baseURL string) (*FileStore, error) {
	//nolint:gosec // G301: 0755 is intentional for a served image directory
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure image dir: %w", err)
	}
	return &FileStore{baseDir: baseDir, baseURL: baseURL}, nil
}

func (s *FileStore) path(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(key)), nil
}

func (s *FileStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	//nolint:gosec // G301: see NewFileStore
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to ensure object dir: %w", err)
	}

	// Write to temp, then rename
	tmpPath := path + ".tmp"
	//nolint:gosec // G306: 0644 is intentional for served files
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to commit object: %w", err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(path) //nolint:gosec // key validated
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		//nolint:wrapcheck // caller provides context
		return nil, err
	}
	defer f.Close() //nolint:errcheck // best-effort close

	//nolint:wrapcheck // caller provides context
	return io.ReadAll(f)
}

func (s *FileStore) Exists(ctx context.Context, key string) (bool, error) {
	path, err := s.path(key)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	//nolint:wrapcheck // caller provides context
	return false, err
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (s *FileStore) PublicURL(key string) string {
	return joinURL(s.baseURL, key)
}
