package filestore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
)

const randomSuffixBytes = 8

// ErrCrossDevice is returned by Move when source and destination live on
// different volumes and the copy fallback is disabled.
var ErrCrossDevice = errors.New("move across devices is not supported")

// Local performs primitive file operations on the local filesystem.
type Local struct {
	logger              *slog.Logger
	crossDeviceFallback bool
}

// LocalOption configures a Local store.
type LocalOption func(*Local)

// WithLogger sets the logger used for tolerated failures.
func WithLogger(logger *slog.Logger) LocalOption {
	return func(l *Local) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithCrossDeviceFallback makes Move copy and then remove the source when a
// rename fails because the paths are on different volumes.
func WithCrossDeviceFallback() LocalOption {
	return func(l *Local) {
		l.crossDeviceFallback = true
	}
}

// NewLocal creates a local file store.
func NewLocal(opts ...LocalOption) *Local {
	l := &Local{logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// EnsureDir creates dir and its parents when missing.
func (l *Local) EnsureDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("directory is required")
	}
	return os.MkdirAll(dir, 0o755)
}

// Upload streams r into a new file at destPath. It refuses to overwrite an
// existing file and removes the partial file when the copy fails.
func (l *Local) Upload(ctx context.Context, r io.Reader, destPath string) (int64, error) {
	if r == nil {
		return 0, fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, err
	}
	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(destPath)
	}

	n, err := io.Copy(f, &contextReader{ctx: ctx, r: r})
	if err != nil {
		cleanup()
		return 0, err
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return 0, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(destPath)
		return 0, err
	}
	return n, nil
}

// Move renames source to destination. A failed rename leaves source intact.
func (l *Local) Move(source, destination string) error {
	err := os.Rename(source, destination)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return err
	}
	if !l.crossDeviceFallback {
		return fmt.Errorf("%w: %s -> %s", ErrCrossDevice, source, destination)
	}
	l.logger.Warn("rename crossed devices, copying instead", "source", source, "destination", destination)
	return copyThenRemove(source, destination)
}

// Unlink removes path. A missing file is logged and treated as success.
func (l *Local) Unlink(path string) error {
	err := os.Remove(path)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("file not found", "path", path)
		return nil
	}
	return err
}

// Open opens path for reading.
func (l *Local) Open(path string) (*os.File, error) {
	return os.Open(path)
}

// RandomSuffix returns a 16 character hex token.
func (l *Local) RandomSuffix() (string, error) {
	b := make([]byte, randomSuffixBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return false
	}
	return errors.Is(linkErr.Err, syscall.EXDEV)
}

func copyThenRemove(source, destination string) error {
	src, err := os.Open(source)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(destination), ".move-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := io.Copy(tmp, src); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, destination); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Remove(source)
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
