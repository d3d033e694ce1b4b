package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	tempDirName    = "temp"
	tempFilePrefix = "temp-"
)

// TaskFiles applies the task attachment layout on top of a FileStore:
// canonical files live in <root>/<tasksDir>, staged files in
// <root>/<tasksDir>/temp.
type TaskFiles struct {
	store   FileStore
	dir     string
	tempDir string
	now     func() time.Time
}

// TempSweepResult reports one sweep over the staging directory.
type TempSweepResult struct {
	CandidateCount int   `json:"candidate_count"`
	DeletedCount   int   `json:"deleted_count"`
	FailedCount    int   `json:"failed_count"`
	ReclaimedBytes int64 `json:"reclaimed_bytes"`
	DryRun         bool  `json:"dry_run"`
}

// NewTaskFiles creates the attachment and staging directories when missing.
func NewTaskFiles(store FileStore, uploadRoot, tasksDir string) (*TaskFiles, error) {
	if store == nil {
		return nil, fmt.Errorf("file store is required")
	}
	uploadRoot = strings.TrimSpace(uploadRoot)
	if uploadRoot == "" {
		return nil, fmt.Errorf("upload root is required")
	}
	root, err := filepath.Abs(uploadRoot)
	if err != nil {
		return nil, err
	}
	dir, err := SafeJoin(root, tasksDir)
	if err != nil {
		return nil, fmt.Errorf("tasks dir: %w", err)
	}

	tf := &TaskFiles{
		store:   store,
		dir:     dir,
		tempDir: filepath.Join(dir, tempDirName),
		now:     time.Now,
	}
	if err := store.EnsureDir(tf.dir); err != nil {
		return nil, err
	}
	if err := store.EnsureDir(tf.tempDir); err != nil {
		return nil, err
	}
	return tf, nil
}

// Dir returns the canonical attachment directory.
func (t *TaskFiles) Dir() string {
	return t.dir
}

// TempDir returns the staging directory.
func (t *TaskFiles) TempDir() string {
	return t.tempDir
}

// Path returns the canonical path for filename.
func (t *TaskFiles) Path(filename string) (string, error) {
	return SafeJoin(t.dir, filename)
}

// Upload writes a new canonical file for filename.
func (t *TaskFiles) Upload(ctx context.Context, filename string, r io.Reader) (int64, error) {
	path, err := t.Path(filename)
	if err != nil {
		return 0, err
	}
	return t.store.Upload(ctx, r, path)
}

// MoveOldToTemp relocates the canonical file for oldFilename into the
// staging directory and returns the generated staged name. The staged file's
// mtime is set to the staging time so SweepTemp ages it from that moment.
func (t *TaskFiles) MoveOldToTemp(oldFilename string) (string, error) {
	oldPath, err := t.Path(oldFilename)
	if err != nil {
		return "", err
	}
	suffix, err := t.store.RandomSuffix()
	if err != nil {
		return "", err
	}
	tempPath, err := SafeJoin(t.tempDir, tempFilePrefix+suffix+"-"+filepath.Base(oldPath))
	if err != nil {
		return "", err
	}
	if err := t.store.Move(oldPath, tempPath); err != nil {
		return "", err
	}
	stagedAt := t.now()
	if err := os.Chtimes(tempPath, stagedAt, stagedAt); err != nil {
		if restoreErr := t.store.Move(tempPath, oldPath); restoreErr != nil {
			return "", errors.Join(fmt.Errorf("stamp staged file: %w", err), restoreErr)
		}
		return "", fmt.Errorf("stamp staged file: %w", err)
	}
	return filepath.Base(tempPath), nil
}

// MoveTempToOld restores a staged file to its canonical name.
func (t *TaskFiles) MoveTempToOld(tempFilename, oldFilename string) error {
	tempPath, err := SafeJoin(t.tempDir, tempFilename)
	if err != nil {
		return err
	}
	oldPath, err := t.Path(oldFilename)
	if err != nil {
		return err
	}
	return t.store.Move(tempPath, oldPath)
}

// Delete removes the canonical file for filename. Missing files are not an error.
func (t *TaskFiles) Delete(filename string) error {
	path, err := t.Path(filename)
	if err != nil {
		return err
	}
	return t.store.Unlink(path)
}

// Open opens the canonical file for filename.
func (t *TaskFiles) Open(filename string) (*os.File, error) {
	path, err := t.Path(filename)
	if err != nil {
		return nil, err
	}
	return t.store.Open(path)
}

// SweepTemp removes staged files whose modification time is older than
// olderThan. With dryRun it only reports what would be removed.
func (t *TaskFiles) SweepTemp(ctx context.Context, olderThan time.Duration, dryRun bool) (TempSweepResult, error) {
	result := TempSweepResult{DryRun: dryRun}
	entries, err := os.ReadDir(t.tempDir)
	if err != nil {
		return result, err
	}

	cutoff := t.now().Add(-olderThan)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !entry.Type().IsRegular() || !strings.HasPrefix(entry.Name(), tempFilePrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			result.FailedCount++
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		result.CandidateCount++
		if dryRun {
			result.ReclaimedBytes += info.Size()
			continue
		}
		if err := t.store.Unlink(filepath.Join(t.tempDir, entry.Name())); err != nil {
			result.FailedCount++
			continue
		}
		result.DeletedCount++
		result.ReclaimedBytes += info.Size()
	}
	return result, nil
}
