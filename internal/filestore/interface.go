package filestore

import (
	"context"
	"io"
	"os"
	"time"
)

// FileStore is the primitive file surface used by TaskFiles.
type FileStore interface {
	EnsureDir(dir string) error
	Upload(ctx context.Context, r io.Reader, destPath string) (int64, error)
	Move(source, destination string) error
	Unlink(path string) error
	Open(path string) (*os.File, error)
	RandomSuffix() (string, error)
}

// AttachmentFiles is the task attachment surface consumed by the
// attachment workflow.
type AttachmentFiles interface {
	Upload(ctx context.Context, filename string, r io.Reader) (int64, error)
	MoveOldToTemp(oldFilename string) (string, error)
	MoveTempToOld(tempFilename, oldFilename string) error
	Delete(filename string) error
	Open(filename string) (*os.File, error)
	SweepTemp(ctx context.Context, olderThan time.Duration, dryRun bool) (TempSweepResult, error)
}

var (
	_ FileStore       = (*Local)(nil)
	_ AttachmentFiles = (*TaskFiles)(nil)
)
