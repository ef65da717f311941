package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// File is a [Store] backed by a single JSON object on disk. Every write
// rewrites the file through a temp file and rename, so a crash never leaves
// a half-written credential behind.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile returns a [File] store at path, creating the parent directory
// with 0700 permissions. The file itself is created lazily on first write.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("persist: file path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: create dir: %w", ErrUnavailable, err)
	}
	return &File{path: path}, nil
}

// DefaultPath returns the per-user location of the CLI's credential file.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "volunteerhub", "session.json"), nil
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Get reads the file and returns the value under key. A missing file
// reads as empty.
func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := data[key]
	return v, ok, nil
}

// Set rewrites the file with key set to value.
func (f *File) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return err
	}
	data[key] = value
	return f.save(data)
}

// Remove rewrites the file without keys. Nothing is written when no key
// was present.
func (f *File) Remove(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := data[k]; ok {
			delete(data, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.save(data)
}

func (f *File) load() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrUnavailable, f.path, err)
	}
	if len(raw) == 0 {
		return map[string]string{}, nil
	}

	data := map[string]string{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrUnavailable, f.path, err)
	}
	return data, nil
}

func (f *File) save(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrUnavailable, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*.json")
	if err != nil {
		return fmt.Errorf("%w: temp file: %w", ErrUnavailable, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: chmod: %w", ErrUnavailable, err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write: %w", ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrUnavailable, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("%w: rename: %w", ErrUnavailable, err)
	}
	return nil
}
