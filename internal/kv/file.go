package kv

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// LockTimeout is the maximum time to wait for the file lock. If exceeded,
// operations proceed without locking so the CLI never hangs on a stale lock.
const LockTimeout = 100 * time.Millisecond

// File is a Store kept as one JSON object on disk, guarded by an advisory
// lock so several washbay processes can share it. Values are written with
// 0600 permissions, which makes it usable as the plaintext credential
// fallback when no system keyring exists.
type File struct {
	path string
}

// NewFile returns a File store at path. The file is created on first write.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

func (f *File) lockPath() string {
	return f.path + ".lock"
}

// acquireLock returns nil without error when the lock is contended past
// LockTimeout (fail-open). Real lock errors are returned.
func (f *File) acquireLock() (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return nil, err
	}

	fl := flock.New(f.lockPath())
	ctx, cancel := context.WithTimeout(context.Background(), LockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, err
	}
	if !locked {
		return nil, nil
	}
	return fl, nil
}

func (f *File) withLock(fn func() error) error {
	fl, err := f.acquireLock()
	if err != nil {
		return err
	}
	if fl != nil {
		defer func() { _ = fl.Unlock() }()
	}
	return fn()
}

// load reads the whole map. A corrupt file reads as empty.
func (f *File) load() (map[string][]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]byte{}, nil
		}
		return nil, err
	}

	var all map[string][]byte
	if err := json.Unmarshal(data, &all); err != nil || all == nil {
		return map[string][]byte{}, nil
	}
	return all, nil
}

func (f *File) save(all map[string][]byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// Windows cannot rename over an existing file
	if runtime.GOOS == "windows" {
		_ = os.Remove(f.path)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func (f *File) Get(key string) ([]byte, bool, error) {
	var (
		value []byte
		ok    bool
	)
	err := f.withLock(func() error {
		all, err := f.load()
		if err != nil {
			return err
		}
		value, ok = all[key]
		return nil
	})
	if err != nil {
		return nil, false, &Error{Op: "get", Backend: "file", Key: key, Cause: err}
	}
	return value, ok, nil
}

func (f *File) Set(key string, value []byte) error {
	err := f.withLock(func() error {
		all, err := f.load()
		if err != nil {
			return err
		}
		all[key] = value
		return f.save(all)
	})
	if err != nil {
		return &Error{Op: "set", Backend: "file", Key: key, Cause: err}
	}
	return nil
}

func (f *File) Remove(key string) error {
	err := f.withLock(func() error {
		all, err := f.load()
		if err != nil {
			return err
		}
		if _, ok := all[key]; !ok {
			return nil
		}
		delete(all, key)
		return f.save(all)
	})
	if err != nil {
		return &Error{Op: "remove", Backend: "file", Key: key, Cause: err}
	}
	return nil
}

func (f *File) Keys(prefix string) ([]string, error) {
	var keys []string
	err := f.withLock(func() error {
		all, err := f.load()
		if err != nil {
			return err
		}
		for k := range all {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		return nil
	})
	if err != nil {
		return nil, &Error{Op: "keys", Backend: "file", Cause: err}
	}
	slices.Sort(keys)
	return keys, nil
}
