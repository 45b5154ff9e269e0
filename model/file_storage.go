package model

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/evergreen-ci/larch/util"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

const (
	defaultLockTimeout  = 10 * time.Second
	defaultStaleLockAge = 5 * time.Minute
	lockPollInterval    = 25 * time.Millisecond
)

// FileOptions configure a document stored on the local file system.
type FileOptions struct {
	Path string
	// Format defaults to the one implied by the path's extension.
	Format DocumentFormat
	// LockTimeout bounds how long a writer waits for another writer's
	// lock file to disappear.
	LockTimeout time.Duration
	// StaleLockAge is the age after which a leftover lock file from a
	// crashed writer is removed.
	StaleLockAge time.Duration
}

func (opts *FileOptions) validate() error {
	if opts.Path == "" {
		return errors.New("must specify a document path")
	}
	if opts.Format == "" {
		opts.Format = FormatForPath(opts.Path)
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = defaultLockTimeout
	}
	if opts.StaleLockAge <= 0 {
		opts.StaleLockAge = defaultStaleLockAge
	}
	return errors.WithStack(opts.Format.Validate())
}

type fileBackend struct {
	opts FileOptions
}

// NewFileBackend returns a Backend that keeps the document in a single
// local file. Writes go to a temporary file in the same directory that is
// synced and renamed over the target, so a crash never leaves a partially
// written document. A sibling lock file serializes the compare-and-swap
// window between processes.
func NewFileBackend(opts FileOptions) (Backend, error) {
	if err := opts.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid file backend options")
	}
	return &fileBackend{opts: opts}, nil
}

func (b *fileBackend) Format() DocumentFormat { return b.opts.Format }

func (b *fileBackend) Read(_ context.Context) ([]byte, Revision, error) {
	data, err := os.ReadFile(b.opts.Path)
	if os.IsNotExist(err) {
		return nil, "", ErrDocumentNotFound
	}
	if err != nil {
		return nil, "", errors.Wrapf(err, "reading '%s'", b.opts.Path)
	}

	return data, contentRevision(data), nil
}

func (b *fileBackend) Write(ctx context.Context, data []byte, expected Revision) (Revision, error) {
	unlock, err := b.lock(ctx)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer unlock()

	_, current, err := b.Read(ctx)
	if err != nil && err != ErrDocumentNotFound {
		return "", errors.WithStack(err)
	}
	if current != expected {
		return "", ErrRevisionMismatch
	}

	if err = util.WriteFileAtomic(b.opts.Path, data); err != nil {
		return "", errors.Wrapf(err, "writing '%s'", b.opts.Path)
	}

	return contentRevision(data), nil
}

func (b *fileBackend) lock(ctx context.Context) (func(), error) {
	path := b.opts.Path + ".lock"
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, "creating directory for '%s'", b.opts.Path)
	}

	ctx, cancel := context.WithTimeout(ctx, b.opts.LockTimeout)
	defer cancel()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "acquiring lock '%s'", path)
		case <-timer.C:
			f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
			if err == nil {
				writeLockOwner(f, path)
				return func() {
					grip.Warning(message.WrapError(os.Remove(path), message.Fields{
						"message": "problem removing lock file",
						"path":    path,
					}))
				}, nil
			}
			if !os.IsExist(err) {
				return nil, errors.Wrapf(err, "creating lock '%s'", path)
			}

			removeStaleLock(path, b.opts.StaleLockAge)
			timer.Reset(lockPollInterval)
		}
	}
}

// writeLockOwner records the holder of a new lock file and closes it.
func writeLockOwner(f *os.File, path string) {
	_, err := f.WriteString(util.LockOwner())
	grip.Warning(message.WrapError(err, message.Fields{
		"message": "problem writing lock owner",
		"path":    path,
	}))
	grip.Warning(message.WrapError(f.Close(), message.Fields{
		"message": "problem closing lock file",
		"path":    path,
	}))
}

// removeStaleLock removes the lock file at path when it is older than
// maxAge.
func removeStaleLock(path string, maxAge time.Duration) {
	info, err := os.Stat(path)
	if err != nil || time.Since(info.ModTime()) <= maxAge {
		return
	}

	grip.Warning(message.Fields{
		"message": "removing stale lock file",
		"path":    path,
		"age":     time.Since(info.ModTime()).String(),
	})
	grip.Warning(message.WrapError(os.Remove(path), message.Fields{
		"message": "problem removing stale lock file",
		"path":    path,
	}))
}
