package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPTimeoutFromEnv(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})

	t.Run("duration format", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "45s")
		if got := httpTimeoutFromEnv(); got != 45*time.Second {
			t.Fatalf("expected 45s timeout, got %v", got)
		}
	})

	t.Run("integer seconds", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "25")
		if got := httpTimeoutFromEnv(); got != 25*time.Second {
			t.Fatalf("expected 25s timeout, got %v", got)
		}
	})

	t.Run("invalid falls back", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "invalid")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})
}

func TestClientSendsBearerToken(t *testing.T) {
	t.Setenv(apiTokenEnvKey, "secret")
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL).Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
}

func TestClientDecodesStructuredError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "task not found", Code: "not_found", ErrorCode: 2001})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetTask(context.Background(), 42)
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.ErrorCode != 2001 || apiErr.Code != "not_found" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if !IsNotFound(err) {
		t.Fatal("expected IsNotFound")
	}
}

func TestClientDecodesUnstructuredError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Ping(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("expected 502 api error, got %v", err)
	}
	if !strings.Contains(apiErr.Error(), "502") {
		t.Fatalf("expected status in message, got %q", apiErr.Error())
	}
}

func TestClientUploadAttachmentSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/tasks/7/upload" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "png-bytes" {
			t.Errorf("unexpected body %q", data)
		}
		if header.Filename != "new.png" {
			t.Errorf("unexpected filename %q", header.Filename)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(AttachmentResponse{TaskID: 7, Filename: "7_new.png", SizeBytes: int64(len(data))})
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).UploadAttachment(context.Background(), 7, "new.png", "image/png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if resp.Filename != "7_new.png" || resp.SizeBytes != 9 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestClientDownloadAttachment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/tasks/3_logo.png/image" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("pixels"))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	contentType, err := NewClient(srv.URL).DownloadAttachment(context.Background(), "3_logo.png", &buf)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if contentType != "image/png" || buf.String() != "pixels" {
		t.Fatalf("unexpected download: %q %q", contentType, buf.String())
	}
}

func TestClientTempSweepConfirmHeader(t *testing.T) {
	t.Setenv(adminTokenEnvKey, "admin-secret")
	var confirm, adminToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		confirm = r.Header.Get("X-Confirm")
		adminToken = r.Header.Get("X-Admin-Token")
		var req TempSweepRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(TempSweepResponse{DryRun: req.DryRun})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	resp, err := client.TempSweep(context.Background(), TempSweepRequest{DryRun: true}, false)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if !resp.DryRun || confirm != "" {
		t.Fatalf("unexpected dry run result: %+v confirm=%q", resp, confirm)
	}
	if _, err := client.TempSweep(context.Background(), TempSweepRequest{}, true); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if confirm != "true" {
		t.Fatalf("expected confirm header, got %q", confirm)
	}
	if adminToken != "admin-secret" {
		t.Fatalf("expected admin token header, got %q", adminToken)
	}
}
