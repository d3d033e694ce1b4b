package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"tasktrack/internal/api"
	"tasktrack/internal/config"
	"tasktrack/internal/filestore"
	"tasktrack/internal/models"
	"tasktrack/internal/store"
)

const fallbackAttachmentContentMediaType = "application/octet-stream"

var errTaskVanished = errors.New("task disappeared during update")

// AttachmentService keeps the task filename column and the attachment
// directory consistent. Every write for one task runs under that task's lock.
type AttachmentService struct {
	records store.TaskRecordStore
	files   filestore.AttachmentFiles
	locks   *taskLocks
	logger  *slog.Logger

	allowedMediaTypes map[string]struct{}
	maxFileBytes      int64
}

// FileUpload is one uploaded file as received from the transport.
type FileUpload struct {
	Filename          string
	DeclaredMediaType string
	SniffedMediaType  string
	SizeBytes         int64
	// Truncated is set when the transport cut the file at its size limit.
	Truncated bool
	Content   io.Reader
}

// AttachmentContent describes an opened attachment stream.
type AttachmentContent struct {
	Reader    io.ReadCloser
	SizeBytes int64
	MediaType string
	Filename  string
	ModTime   time.Time
}

// NewAttachmentService constructs an AttachmentService with the default
// image allow-list.
func NewAttachmentService(records store.TaskRecordStore, files filestore.AttachmentFiles, locks *taskLocks, logger *slog.Logger) *AttachmentService {
	if locks == nil {
		locks = newTaskLocks()
	}
	if logger == nil {
		logger = slog.Default()
	}
	svc := &AttachmentService{records: records, files: files, locks: locks, logger: logger}
	svc.ConfigurePolicy(config.DefaultAllowedMediaTypes, config.DefaultUploadMaxFileBytes)
	return svc
}

// ConfigurePolicy overrides the media type allow-list and the file size cap.
func (s *AttachmentService) ConfigurePolicy(allowedMediaTypes []string, maxFileBytes int64) {
	if s == nil {
		return
	}
	normalized := map[string]struct{}{}
	for _, raw := range allowedMediaTypes {
		if mediaType := normalizeMediaType(raw); mediaType != "" {
			normalized[mediaType] = struct{}{}
		}
	}
	s.allowedMediaTypes = normalized
	if maxFileBytes > 0 {
		s.maxFileBytes = maxFileBytes
	}
}

// UploadAttachment stores upload as the image of task taskID, replacing any
// previous image. On failure the task row and the previous file are left as
// they were.
func (s *AttachmentService) UploadAttachment(ctx context.Context, taskID int64, upload FileUpload) (models.Attachment, error) {
	var zero models.Attachment
	if s == nil || s.records == nil || s.files == nil {
		return zero, internalError(fmt.Errorf("attachment service is not configured"))
	}

	mediaType, source, err := s.validateUpload(upload)
	if err != nil {
		return zero, err
	}
	original, err := filestore.Sanitize(upload.Filename)
	if err != nil {
		return zero, badRequestCode(fmt.Errorf("invalid filename: %q", upload.Filename), ErrCodeInvalidFilename)
	}
	newFilename, err := filestore.Sanitize(fmt.Sprintf("%d_%s", taskID, original))
	if err != nil {
		return zero, badRequestCode(fmt.Errorf("invalid filename: %q", upload.Filename), ErrCodeInvalidFilename)
	}

	unlock := s.locks.Lock(taskID)
	defer unlock()

	task, err := s.records.FindByID(ctx, taskID, nil)
	if err != nil {
		return zero, storeFailure(err)
	}
	if task == nil {
		return zero, notFoundCode(fmt.Errorf("task %d not found", taskID), ErrCodeTaskNotFound)
	}

	saga := newReplaceSaga()
	if task.HasAttachment() {
		tempFilename, err := s.files.MoveOldToTemp(task.Filename)
		switch {
		case err == nil:
			if err := saga.stage(task.Filename, tempFilename); err != nil {
				return zero, internalError(err)
			}
		case errors.Is(err, fs.ErrNotExist):
			s.logger.Warn("previous attachment missing on disk", "task_id", taskID, "filename", task.Filename)
		default:
			_ = saga.advance(sagaRolledBack)
			return zero, transactionFailure(fmt.Errorf("stage previous attachment %q: %w", task.Filename, err))
		}
	}

	var size int64
	written := false
	err = s.records.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		updated, err := s.records.UpdateTask(ctx, taskID, store.TaskUpdate{Filename: &newFilename}, tx)
		if err != nil {
			return fmt.Errorf("update task filename: %w", err)
		}
		if updated == nil {
			return errTaskVanished
		}
		size, err = s.files.Upload(ctx, newFilename, upload.Content)
		if err != nil {
			return fmt.Errorf("write attachment %q: %w", newFilename, err)
		}
		written = true
		return nil
	})
	if err != nil {
		return zero, s.compensate(saga, taskID, newFilename, written, err)
	}
	if err := saga.advance(sagaCommitted); err != nil {
		return zero, internalError(err)
	}

	attachment := models.Attachment{
		TaskID:          taskID,
		Filename:        newFilename,
		MediaType:       mediaType,
		MediaTypeSource: string(source),
		SizeBytes:       size,
	}
	if task.Filename != "" && task.Filename != newFilename {
		attachment.ReplacedFilename = task.Filename
	}
	s.logger.Info("attachment stored", "task_id", taskID, "filename", newFilename, "size_bytes", size, "replaced", task.Filename)
	return attachment, nil
}

// compensate undoes the file side of a failed upload after the database
// transaction has rolled back.
func (s *AttachmentService) compensate(saga *replaceSaga, taskID int64, newFilename string, written bool, cause error) error {
	errs := []error{cause}
	if written {
		if err := s.files.Delete(newFilename); err != nil {
			errs = append(errs, fmt.Errorf("remove new attachment %q: %w", newFilename, err))
		}
	}
	if saga.staged() {
		if err := s.files.MoveTempToOld(saga.tempFilename, saga.oldFilename); err != nil {
			errs = append(errs, fmt.Errorf("restore attachment %q: %w", saga.oldFilename, err))
		}
	}
	if err := saga.advance(sagaRolledBack); err != nil {
		errs = append(errs, err)
	}

	joined := errors.Join(errs...)
	if len(errs) > 1 {
		s.logger.Error("attachment rollback incomplete", "task_id", taskID, "filename", newFilename, "error", joined)
		return transactionFailure(fmt.Errorf("upload attachment for task %d: %w", taskID, joined))
	}
	s.logger.Warn("attachment upload rolled back", "task_id", taskID, "filename", newFilename, "error", cause)
	// An unreferenced file already holds the canonical name.
	if errors.Is(cause, fs.ErrExist) {
		return conflictCode(fmt.Errorf("attachment file %q already exists", newFilename), ErrCodeConflict)
	}
	return transactionFailure(fmt.Errorf("upload attachment for task %d: %w", taskID, joined))
}

func (s *AttachmentService) validateUpload(upload FileUpload) (string, models.AttachmentMediaTypeSource, error) {
	if upload.Content == nil {
		return "", "", badRequestCode(fmt.Errorf("file is required"), ErrCodeMissingRequired)
	}
	if upload.Truncated || (s.maxFileBytes > 0 && upload.SizeBytes > s.maxFileBytes) {
		return "", "", badRequestCode(fmt.Errorf("file exceeds the %d byte limit", s.maxFileBytes), ErrCodeUploadTruncated)
	}

	declared := normalizeMediaType(upload.DeclaredMediaType)
	sniffed := normalizeMediaType(upload.SniffedMediaType)
	if declared == "" && sniffed == "" {
		return "", "", badRequestCode(fmt.Errorf("media type is required"), ErrCodeInvalidMediaType)
	}
	if declared != "" && declared != fallbackAttachmentContentMediaType && !s.mediaTypeAllowed(declared) {
		return "", "", badRequestCode(fmt.Errorf("media type %q is not allowed", declared), ErrCodeInvalidMediaType)
	}
	if sniffed != "" {
		if !s.mediaTypeAllowed(sniffed) {
			return "", "", badRequestCode(fmt.Errorf("content looks like %q which is not allowed", sniffed), ErrCodeInvalidMediaType)
		}
		return sniffed, models.MediaTypeSourceSniffed, nil
	}
	// Without sniffed content the declared type must be allowed on its own;
	// octet-stream only defers to a sniffed type.
	if !s.mediaTypeAllowed(declared) {
		return "", "", badRequestCode(fmt.Errorf("media type %q is not allowed without recognizable content", declared), ErrCodeInvalidMediaType)
	}
	return declared, models.MediaTypeSourceDeclared, nil
}

func (s *AttachmentService) mediaTypeAllowed(mediaType string) bool {
	if len(s.allowedMediaTypes) == 0 {
		return true
	}
	_, ok := s.allowedMediaTypes[mediaType]
	return ok
}

// DeleteAttachment clears the task reference to filename and removes the
// file. A file that is already gone only produces a warning.
func (s *AttachmentService) DeleteAttachment(ctx context.Context, filename string) (api.AttachmentDeleteResponse, error) {
	var zero api.AttachmentDeleteResponse
	if s == nil || s.records == nil || s.files == nil {
		return zero, internalError(fmt.Errorf("attachment service is not configured"))
	}

	name, err := filestore.Sanitize(filename)
	if err != nil {
		return zero, badRequestCode(fmt.Errorf("invalid filename: %q", filename), ErrCodeInvalidFilename)
	}

	task, err := s.records.FindByFilename(ctx, name)
	if err != nil {
		return zero, storeFailure(err)
	}
	if task == nil {
		return zero, notFoundCode(fmt.Errorf("attachment %q not found", name), ErrCodeAttachmentNotFound)
	}

	unlock := s.locks.Lock(task.ID)
	defer unlock()

	err = s.records.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		matched, err := s.records.DeleteFilename(ctx, name, nil, tx)
		if err != nil {
			return storeFailure(err)
		}
		if !matched {
			return notFoundCode(fmt.Errorf("attachment %q not found", name), ErrCodeAttachmentNotFound)
		}
		if err := s.files.Delete(name); err != nil {
			return fmt.Errorf("remove attachment %q: %w", name, err)
		}
		return nil
	})
	if err != nil {
		var apiErr apiError
		if errors.As(err, &apiErr) {
			return zero, err
		}
		return zero, transactionFailure(err)
	}

	s.logger.Info("attachment deleted", "task_id", task.ID, "filename", name)
	return api.AttachmentDeleteResponse{Filename: name, TaskID: task.ID}, nil
}

// OpenAttachment opens the file a task currently references. The caller
// closes the returned reader.
func (s *AttachmentService) OpenAttachment(ctx context.Context, filename string) (AttachmentContent, error) {
	var zero AttachmentContent
	if s == nil || s.records == nil || s.files == nil {
		return zero, internalError(fmt.Errorf("attachment service is not configured"))
	}

	name, err := filestore.Sanitize(filename)
	if err != nil {
		return zero, badRequestCode(fmt.Errorf("invalid filename: %q", filename), ErrCodeInvalidFilename)
	}
	task, err := s.records.FindByFilename(ctx, name)
	if err != nil {
		return zero, storeFailure(err)
	}
	if task == nil {
		return zero, notFoundCode(fmt.Errorf("attachment %q not found", name), ErrCodeAttachmentNotFound)
	}

	f, err := s.files.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("attachment referenced but missing on disk", "task_id", task.ID, "filename", name)
		return zero, notFoundCode(fmt.Errorf("attachment %q not found", name), ErrCodeAttachmentNotFound)
	}
	if err != nil {
		return zero, internalError(err)
	}

	content, err := describeAttachment(f, name)
	if err != nil {
		_ = f.Close()
		return zero, internalError(err)
	}
	return content, nil
}

func describeAttachment(f *os.File, name string) (AttachmentContent, error) {
	info, err := f.Stat()
	if err != nil {
		return AttachmentContent{}, err
	}
	mediaType := fallbackAttachmentContentMediaType
	detected, err := mimetype.DetectReader(f)
	if err == nil && detected != nil {
		mediaType = normalizeMediaType(detected.String())
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return AttachmentContent{}, err
	}
	return AttachmentContent{
		Reader:    f,
		SizeBytes: info.Size(),
		MediaType: mediaType,
		Filename:  name,
		ModTime:   info.ModTime(),
	}, nil
}

// SweepTemp removes staged files left behind by committed replacements.
func (s *AttachmentService) SweepTemp(ctx context.Context, olderThan time.Duration, dryRun bool) (filestore.TempSweepResult, error) {
	if s == nil || s.files == nil {
		return filestore.TempSweepResult{}, internalError(fmt.Errorf("attachment service is not configured"))
	}
	if olderThan < 0 {
		return filestore.TempSweepResult{}, badRequestCode(fmt.Errorf("older_than must be >= 0"), ErrCodeInvalidQuery)
	}
	result, err := s.files.SweepTemp(ctx, olderThan, dryRun)
	if err != nil {
		return result, internalError(err)
	}
	s.logger.Info("temp sweep complete",
		"candidates", result.CandidateCount,
		"deleted", result.DeletedCount,
		"failed", result.FailedCount,
		"dry_run", result.DryRun,
	)
	return result, nil
}

// sniffMediaType reports the media type of head using content detection.
func sniffMediaType(head []byte) string {
	if len(head) == 0 {
		return ""
	}
	return normalizeMediaType(mimetype.Detect(head).String())
}
