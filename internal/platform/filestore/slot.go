package filestore

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"time"

	"github.com/phrazzld/autobuild/internal/store"
	"github.com/sethvargo/go-retry"
)

const (
	defaultLockTimeout = 5 * time.Second
	defaultStaleLock   = 30 * time.Second
	lockPollInterval   = 10 * time.Millisecond
)

var errLocked = errors.New("slot file is locked")

// Slot stores the task collection in a single JSON file. The version of
// the slot is a hash of the file content, so writers in different
// processes agree on it without extra state. Writes go through a lock file
// and an atomic rename.
type Slot struct {
	path        string
	lockPath    string
	lockTimeout time.Duration
	staleLock   time.Duration
}

// NewSlot creates a Slot at path, creating its directory when needed.
func NewSlot(path string) (*Slot, error) {
	if path == "" {
		return nil, errors.New("slot path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create slot directory: %w", err)
	}

	return &Slot{
		path:        path,
		lockPath:    path + ".lock",
		lockTimeout: defaultLockTimeout,
		staleLock:   defaultStaleLock,
	}, nil
}

// Path returns the file backing the slot.
func (s *Slot) Path() string {
	return s.path
}

// Load implements store.Slot.
func (s *Slot) Load(ctx context.Context) ([]byte, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, store.NewStoreError("slot", "load", "failed to read slot file", err)
	}
	return data, contentVersion(data), nil
}

// Save implements store.Slot.
func (s *Slot) Save(ctx context.Context, data []byte, expectedVersion int64) (int64, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return 0, store.NewStoreError("slot", "save", "failed to lock slot file", err)
	}
	defer unlock()

	_, current, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	if current != expectedVersion {
		return 0, store.ErrVersionConflict
	}

	if err := writeAtomic(s.path, data); err != nil {
		return 0, store.NewStoreError("slot", "save", "failed to write slot file", err)
	}
	return contentVersion(data), nil
}

// lock creates the lock file, polling until it is free or the lock
// timeout passes. Lock files older than the stale threshold are assumed
// to belong to a crashed writer and are removed.
func (s *Slot) lock(ctx context.Context) (func(), error) {
	backoff := retry.WithMaxDuration(s.lockTimeout, retry.NewConstant(lockPollInterval))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
			return f.Close()
		}
		if !errors.Is(err, os.ErrExist) {
			return err
		}

		if info, statErr := os.Stat(s.lockPath); statErr == nil && time.Since(info.ModTime()) > s.staleLock {
			_ = os.Remove(s.lockPath)
		}
		return retry.RetryableError(errLocked)
	})
	if err != nil {
		return nil, err
	}

	return func() { _ = os.Remove(s.lockPath) }, nil
}

// writeAtomic writes data to a temp file next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, path)
}

// contentVersion returns a positive hash of data. Version 0 is reserved
// for a missing file.
func contentVersion(data []byte) int64 {
	h := fnv.New64a()
	_, _ = h.Write(data)
	v := int64(h.Sum64() & 0x7fffffffffffffff)
	if v == 0 {
		v = 1
	}
	return v
}
