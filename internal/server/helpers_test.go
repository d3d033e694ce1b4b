package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tasktrack/internal/filestore"
	"tasktrack/internal/models"
	"tasktrack/internal/store"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func pngBytes(payload string) []byte {
	return append(append([]byte{}, pngSignature...), payload...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "tasktrack-test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return st
}

func newTestTaskFiles(t *testing.T) *filestore.TaskFiles {
	t.Helper()
	files, err := filestore.NewTaskFiles(filestore.NewLocal(filestore.WithLogger(discardLogger())), t.TempDir(), "tasks")
	if err != nil {
		t.Fatalf("open task files: %v", err)
	}
	return files
}

func newAttachmentServiceForTest(t *testing.T) (*AttachmentService, *store.Store, *filestore.TaskFiles) {
	t.Helper()
	st := newTestStore(t)
	files := newTestTaskFiles(t)
	return NewAttachmentService(st, files, newTaskLocks(), discardLogger()), st, files
}

func newTestServer(t *testing.T) (*Server, *store.Store, *filestore.TaskFiles) {
	t.Helper()
	st := newTestStore(t)
	files := newTestTaskFiles(t)
	srv := New("127.0.0.1:0", "test.db", st, files, discardLogger())
	return srv, st, files
}

func seedUser(t *testing.T, st *store.Store, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		Roles:        []string{models.RoleBasic},
	}
	if err := st.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

// seedTaskWithID inserts filler tasks until the next generated id equals id.
func seedTaskWithID(t *testing.T, st *store.Store, authorID, id int64, filename string) *models.Task {
	t.Helper()
	for {
		now := time.Now().UTC()
		task := &models.Task{
			Name:      "task",
			AuthorID:  authorID,
			Status:    string(models.StatusNew),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := st.CreateTask(context.Background(), task); err != nil {
			t.Fatalf("create task: %v", err)
		}
		if task.ID > id {
			t.Fatalf("task id %d already taken", id)
		}
		if task.ID < id {
			continue
		}
		if filename != "" {
			updated, err := st.UpdateTask(context.Background(), id, store.TaskUpdate{Filename: &filename}, nil)
			if err != nil || updated == nil {
				t.Fatalf("set filename: %v", err)
			}
			return updated
		}
		return task
	}
}

func writeCanonicalFile(t *testing.T, files *filestore.TaskFiles, name string, content []byte) {
	t.Helper()
	if _, err := files.Upload(context.Background(), name, bytes.NewReader(content)); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func readCanonicalFile(t *testing.T, files *filestore.TaskFiles, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(files.Dir(), name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return data
}

func canonicalExists(t *testing.T, files *filestore.TaskFiles, name string) bool {
	t.Helper()
	_, err := os.Stat(filepath.Join(files.Dir(), name))
	return err == nil
}

func tempEntries(t *testing.T, files *filestore.TaskFiles) []string {
	t.Helper()
	entries, err := os.ReadDir(files.TempDir())
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func findTaskFilename(t *testing.T, st *store.Store, id int64) string {
	t.Helper()
	task, err := st.FindByID(context.Background(), id, nil)
	if err != nil {
		t.Fatalf("find task %d: %v", id, err)
	}
	if task == nil {
		t.Fatalf("task %d not found", id)
	}
	return task.Filename
}

func asAPIError(t *testing.T, err error) apiError {
	t.Helper()
	var apiErr apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected apiError, got %T: %v", err, err)
	}
	return apiErr
}

func multipartUploadRequest(t *testing.T, path, field, filename, contentType string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
