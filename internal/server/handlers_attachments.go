package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
)

const (
	uploadFormField = "file"
	sniffLen        = 3072
)

func (s *Server) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	taskID, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	s.withLimiter(w, r, s.uploadLimiter, "upload", func() {
		s.uploadAttachment(w, r, taskID)
	})
}

func (s *Server) uploadAttachment(w http.ResponseWriter, r *http.Request, taskID int64) {
	r.Body = http.MaxBytesReader(w, r.Body, s.uploads.MaxBodyBytes)
	if err := r.ParseMultipartForm(s.uploads.MultipartMaxMemory); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	header, err := singleFormFile(r.MultipartForm)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}
	file, err := header.Open()
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequest(fmt.Errorf("read uploaded file: %w", err)))
		return
	}
	defer file.Close()

	buffered := bufio.NewReaderSize(file, sniffLen)
	head, _ := buffered.Peek(sniffLen)

	attachment, err := s.attachmentService.UploadAttachment(r.Context(), taskID, FileUpload{
		Filename:          header.Filename,
		DeclaredMediaType: header.Header.Get("Content-Type"),
		SniffedMediaType:  sniffMediaType(head),
		SizeBytes:         header.Size,
		Truncated:         header.Size > s.uploads.MaxFileBytes,
		Content:           buffered,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, attachment)
}

func (s *Server) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
	download, err := queryBool(r, "download")
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}
	content, err := s.attachmentService.OpenAttachment(r.Context(), r.PathValue("filename"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer content.Reader.Close()

	w.Header().Set("Content-Type", content.MediaType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if download {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": content.Filename}))
	}
	if seeker, ok := content.Reader.(io.ReadSeeker); ok {
		http.ServeContent(w, r, content.Filename, content.ModTime, seeker)
		return
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, content.Reader); err != nil {
		s.log().Warn("stream attachment", "filename", content.Filename, "error", err)
	}
}

func (s *Server) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	resp, err := s.attachmentService.DeleteAttachment(r.Context(), r.PathValue("filename"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// singleFormFile returns the only uploaded file, which must be sent in the
// "file" field.
func singleFormFile(form *multipart.Form) (*multipart.FileHeader, error) {
	if form == nil {
		return nil, badRequestCode(fmt.Errorf("%s is required", uploadFormField), ErrCodeMissingRequired)
	}
	total := 0
	for _, headers := range form.File {
		total += len(headers)
	}
	headers := form.File[uploadFormField]
	switch {
	case len(headers) == 0:
		return nil, badRequestCode(fmt.Errorf("%s is required", uploadFormField), ErrCodeMissingRequired)
	case total > 1:
		return nil, badRequest(fmt.Errorf("exactly one file is allowed, got %d", total))
	}
	return headers[0], nil
}

func classifyMultipartError(err error) error {
	if err == nil {
		return nil
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) || strings.Contains(strings.ToLower(err.Error()), "request body too large") {
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	}
	return badRequestCode(err, ErrCodeInvalidArgument)
}
