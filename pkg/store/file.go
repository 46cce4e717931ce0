package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 10 * time.Millisecond

// FileArea keeps an area as a single JSON document on disk.
//
// The daemon and one-shot CLI commands share the same files, so every
// operation re-reads the document under an advisory lock on <name>.json.lock:
// shared for reads, exclusive for read-modify-write.
type FileArea struct {
	path string
	lock *flock.Flock
	// mu serialises goroutines of this process; the file lock only
	// excludes other open descriptors
	mu sync.Mutex
}

// NewFileArea opens (or creates) <dir>/<name>.json
func NewFileArea(dir, name string) (*FileArea, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	path := filepath.Join(dir, name+".json")
	a := &FileArea{
		path: path,
		lock: flock.New(path + ".lock"),
	}

	// fail early on a corrupt document
	if err := a.read(context.Background(), func(map[string]json.RawMessage) {}); err != nil {
		return nil, err
	}
	return a, nil
}

// Path returns the backing file
func (a *FileArea) Path() string {
	return a.path
}

func (a *FileArea) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	var raw json.RawMessage
	var ok bool
	err := a.read(ctx, func(values map[string]json.RawMessage) {
		raw, ok = values[key]
	})
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return true, nil
}

func (a *FileArea) Set(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}

	return a.update(ctx, func(values map[string]json.RawMessage) bool {
		values[key] = raw
		return true
	})
}

func (a *FileArea) Remove(ctx context.Context, key string) error {
	return a.update(ctx, func(values map[string]json.RawMessage) bool {
		if _, ok := values[key]; !ok {
			return false
		}
		delete(values, key)
		return true
	})
}

func (a *FileArea) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := a.read(ctx, func(values map[string]json.RawMessage) {
		for k := range values {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// read hands the current document to fn under a shared lock
func (a *FileArea) read(ctx context.Context, fn func(map[string]json.RawMessage)) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	locked, err := a.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", a.path, err)
	}
	if !locked {
		return fmt.Errorf("failed to lock %s", a.path)
	}
	defer a.lock.Unlock()

	values, err := a.load()
	if err != nil {
		return err
	}
	fn(values)
	return nil
}

// update applies fn to the current document under an exclusive lock and
// writes it back when fn reports a change
func (a *FileArea) update(ctx context.Context, fn func(map[string]json.RawMessage) bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	locked, err := a.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", a.path, err)
	}
	if !locked {
		return fmt.Errorf("failed to lock %s", a.path)
	}
	defer a.lock.Unlock()

	values, err := a.load()
	if err != nil {
		return err
	}
	if !fn(values) {
		return nil
	}
	return a.flush(values)
}

// load reads the document; callers hold the file lock
func (a *FileArea) load() (map[string]json.RawMessage, error) {
	values := make(map[string]json.RawMessage)

	data, err := os.ReadFile(a.path)
	switch {
	case os.IsNotExist(err):
		return values, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", a.path, err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", a.path, err)
		}
	}
	return values, nil
}

// flush writes the document atomically; callers hold the exclusive lock
func (a *FileArea) flush(values map[string]json.RawMessage) error {
	tempPath := a.path + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(values); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync state file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tempPath, a.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
