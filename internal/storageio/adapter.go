// Package storageio is the storage adapter collaborator spec.md §6
// describes: read/write/append/ensureDir/watch. The default
// implementation is a thin wrapper over os and fsnotify, grounded on the
// teacher's direct os.ReadFile/os.WriteFile use in internal/configfile and
// internal/jsonl.
package storageio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"github.com/steveyegge/proseql/internal/dberrors"
)

// lockTimeout bounds how long Write/Append wait for another process's
// exclusive lock on the same file before giving up — generalized from the
// teacher's JSONLLock (cmd/bd/jsonl_lock.go), which guards concurrent
// export/auto-flush/auto-import access to one issues.jsonl the same way.
const lockTimeout = 5 * time.Second

// withFileLock runs fn while holding an exclusive flock on path+".lock",
// so two processes (or this process's debounced flush racing an external
// editor) never interleave writes to the same file.
func withFileLock(path string, fn func() error) error {
	fl := flock.New(path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	locked, err := fl.TryLockContext(ctx, 25*time.Millisecond)
	if err != nil {
		return wrapErr(path, err)
	}
	if !locked {
		return wrapErr(path, errors.New("timed out waiting for file lock"))
	}
	defer fl.Unlock()
	return fn()
}

// Event is one file-change notification delivered by Watch.
type Event struct {
	Path string
	Op   string // "write", "create", "remove", "rename"
}

// Adapter is the storage collaborator interface. Embedding programs may
// supply their own (e.g. an in-memory fake for tests, or an S3-backed one).
type Adapter interface {
	Read(path string) ([]byte, error)
	Write(path string, data []byte) error
	Append(path string, data []byte) error
	EnsureDir(path string) error
	Watch(ctx context.Context, path string) (<-chan Event, error)
}

// FS is the default filesystem-backed adapter.
type FS struct{}

func (FS) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path supplied by collection config
	if err != nil {
		return nil, wrapErr(path, err)
	}
	return data, nil
}

func (FS) Write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return wrapErr(path, err)
	}
	return withFileLock(path, func() error {
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return wrapErr(path, err)
		}
		if err := os.Rename(tmp, path); err != nil {
			return wrapErr(path, err)
		}
		return nil
	})
}

func (FS) Append(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return wrapErr(path, err)
	}
	return withFileLock(path, func() error {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G304
		if err != nil {
			return wrapErr(path, err)
		}
		defer f.Close()
		if _, err := f.Write(data); err != nil {
			return wrapErr(path, err)
		}
		return nil
	})
}

func (FS) EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return wrapErr(path, err)
	}
	return nil
}

// Watch spawns an fsnotify watcher on path's parent directory (files get
// replaced wholesale by Write's rename-into-place, which fsnotify only
// reports on the containing directory) and filters events down to path.
// Watcher failures are non-fatal: the returned error only reflects setup
// failure, and the channel is closed when ctx is done.
func (FS) Watch(ctx context.Context, path string) (<-chan Event, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, wrapErr(path, err)
	}
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, wrapErr(path, err)
	}

	out := make(chan Event, 8)
	go func() {
		defer w.Close()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				out <- Event{Path: path, Op: opName(ev.Op)}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
				// Swallowed: watcher errors are non-fatal per spec.md §4.12.
			}
		}
	}()
	return out, nil
}

func opName(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Write != 0:
		return "write"
	case op&fsnotify.Create != 0:
		return "create"
	case op&fsnotify.Remove != 0:
		return "remove"
	case op&fsnotify.Rename != 0:
		return "rename"
	default:
		return "unknown"
	}
}

func wrapErr(path string, err error) error {
	kind := "io"
	if errors.Is(err, os.ErrNotExist) {
		kind = "not-found"
	} else if errors.Is(err, os.ErrPermission) {
		kind = "permission-denied"
	}
	return &dberrors.StorageError{Kind: kind, Path: path, Cause: err}
}
