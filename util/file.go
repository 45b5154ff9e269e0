package util

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// WriteFileAtomic replaces path with data. The bytes are written to a
// temporary file in the same directory, synced, and renamed over path, so
// readers observe either the old or the new contents and never a partial
// write.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "creating directory '%s'", dir)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "creating temporary file")
	}
	tmp := f.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmp)
		}
	}()

	if err = writeBytes(f, data); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "writing temporary file '%s'", tmp)
	}
	if err = f.Close(); err != nil {
		return errors.Wrapf(err, "closing temporary file '%s'", tmp)
	}
	if err = os.Chmod(tmp, 0644); err != nil {
		return errors.Wrapf(err, "setting permissions on '%s'", tmp)
	}
	if err = os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "renaming '%s' to '%s'", tmp, path)
	}
	committed = true

	return errors.WithStack(syncDir(dir))
}

// LockOwner describes the current process for lock files.
func LockOwner() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d\n", host, os.Getpid())
}

func writeBytes(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(f.Sync())
}

// syncDir flushes the directory entry so the rename survives a crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return errors.WithStack(err)
	}
	defer d.Close()

	if err = d.Sync(); err != nil && !os.IsPermission(err) {
		return errors.Wrapf(err, "syncing directory '%s'", dir)
	}
	return nil
}
