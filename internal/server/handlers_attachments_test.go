package server

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"tasktrack/internal/api"
	"tasktrack/internal/config"
)

func TestAttachmentHandlersRoundTrip(t *testing.T) {
	srv, st, files := newTestServer(t)
	handler := srv.Handler()
	author := seedUser(t, st, "author")
	seedTaskWithID(t, st, author.ID, 7, "7_old.png")
	writeCanonicalFile(t, files, "7_old.png", pngBytes("old"))

	req := multipartUploadRequest(t, "/v1/tasks/7/upload", "file", "new.png", "image/png", pngBytes("new"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var attachment api.AttachmentResponse
	decodeBody(t, w, &attachment)
	if attachment.Filename != "7_new.png" || attachment.ReplacedFilename != "7_old.png" {
		t.Fatalf("unexpected attachment: %+v", attachment)
	}

	w = doJSON(t, handler, http.MethodGet, "/v1/tasks/7_new.png/image", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "image/png" {
		t.Fatalf("expected image/png, got %q", got)
	}
	if !bytes.Equal(w.Body.Bytes(), pngBytes("new")) {
		t.Fatal("unexpected image body")
	}
	if got := w.Header().Get("Content-Disposition"); got != "" {
		t.Fatalf("expected inline image, got disposition %q", got)
	}

	w = doJSON(t, handler, http.MethodGet, "/v1/tasks/7_new.png/image?download=true", nil)
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename=7_new.png` {
		t.Fatalf("unexpected disposition %q", got)
	}
	w = doJSON(t, handler, http.MethodGet, "/v1/tasks/7_new.png/image?download=maybe", nil)
	expectErrorCode(t, w, http.StatusBadRequest, ErrCodeInvalidQuery)

	w = doJSON(t, handler, http.MethodGet, "/v1/tasks/7_old.png/image", nil)
	expectErrorCode(t, w, http.StatusNotFound, ErrCodeAttachmentNotFound)

	w = doJSON(t, handler, http.MethodDelete, "/v1/tasks/7_new.png/image", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var deleted api.AttachmentDeleteResponse
	decodeBody(t, w, &deleted)
	if deleted.TaskID != 7 || deleted.Filename != "7_new.png" {
		t.Fatalf("unexpected delete response: %+v", deleted)
	}

	w = doJSON(t, handler, http.MethodGet, "/v1/tasks/7_new.png/image", nil)
	expectErrorCode(t, w, http.StatusNotFound, ErrCodeAttachmentNotFound)
	w = doJSON(t, handler, http.MethodDelete, "/v1/tasks/7_new.png/image", nil)
	expectErrorCode(t, w, http.StatusNotFound, ErrCodeAttachmentNotFound)
}

func TestUploadHandlerRejectsBadRequests(t *testing.T) {
	srv, st, _ := newTestServer(t)
	srv.ConfigureAttachmentOptions(config.UploadConfig{MaxFileBytes: 64, MaxBodyBytes: 64 << 10})
	handler := srv.Handler()
	author := seedUser(t, st, "author")
	seedTaskWithID(t, st, author.ID, 1, "")

	t.Run("wrong field", func(t *testing.T) {
		req := multipartUploadRequest(t, "/v1/tasks/1/upload", "content", "a.png", "image/png", pngBytes("a"))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		expectErrorCode(t, w, http.StatusBadRequest, ErrCodeMissingRequired)
	})

	t.Run("two files", func(t *testing.T) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		for _, name := range []string{"a.png", "b.png"} {
			part, err := mw.CreateFormFile("file", name)
			if err != nil {
				t.Fatalf("create form file: %v", err)
			}
			_, _ = part.Write(pngBytes(name))
		}
		_ = mw.Close()
		req := httptest.NewRequest(http.MethodPost, "/v1/tasks/1/upload", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		expectErrorCode(t, w, http.StatusBadRequest, ErrCodeInvalidArgument)
	})

	t.Run("file too large", func(t *testing.T) {
		req := multipartUploadRequest(t, "/v1/tasks/1/upload", "file", "a.png", "image/png", pngBytes(string(make([]byte, 128))))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		expectErrorCode(t, w, http.StatusBadRequest, ErrCodeUploadTruncated)
	})

	t.Run("body too large", func(t *testing.T) {
		req := multipartUploadRequest(t, "/v1/tasks/1/upload", "file", "a.png", "image/png", pngBytes(string(make([]byte, 128<<10))))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		expectErrorCode(t, w, http.StatusBadRequest, ErrCodeRequestTooLarge)
	})

	t.Run("not an image", func(t *testing.T) {
		req := multipartUploadRequest(t, "/v1/tasks/1/upload", "file", "a.png", "image/png", []byte("plain text"))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		expectErrorCode(t, w, http.StatusBadRequest, ErrCodeInvalidMediaType)
	})

	t.Run("unknown task", func(t *testing.T) {
		req := multipartUploadRequest(t, "/v1/tasks/99/upload", "file", "a.png", "image/png", pngBytes("a"))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		expectErrorCode(t, w, http.StatusNotFound, ErrCodeTaskNotFound)
	})

	if got := findTaskFilename(t, st, 1); got != "" {
		t.Fatalf("expected task 1 untouched, got %q", got)
	}
}

func TestUploadHandlerLimiter(t *testing.T) {
	srv, st, _ := newTestServer(t)
	srv.ConfigureAttachmentOptions(config.UploadConfig{MaxConcurrent: 1})
	author := seedUser(t, st, "author")
	seedTaskWithID(t, st, author.ID, 1, "")

	srv.uploadLimiter <- struct{}{}
	req := multipartUploadRequest(t, "/v1/tasks/1/upload", "file", "a.png", "image/png", pngBytes("a"))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	expectErrorCode(t, w, http.StatusTooManyRequests, ErrCodeResourceExhausted)
}
