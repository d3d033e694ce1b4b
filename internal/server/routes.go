package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)

	// Tasks collection.
	mux.HandleFunc("POST /v1/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /v1/tasks", s.handleListTasks)

	// Single task.
	mux.HandleFunc("GET /v1/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("PATCH /v1/tasks/{id}", s.handleUpdateTask)
	mux.HandleFunc("DELETE /v1/tasks/{id}", s.handleDeleteTask)
	mux.HandleFunc("PATCH /v1/tasks/{id}/transition", s.handleTransitionTask)

	// Attachments. The image routes are keyed by filename, not task id.
	mux.HandleFunc("POST /v1/tasks/{id}/upload", s.handleUploadAttachment)
	mux.HandleFunc("GET /v1/tasks/{filename}/image", s.handleGetAttachment)
	mux.HandleFunc("DELETE /v1/tasks/{filename}/image", s.handleDeleteAttachment)

	// Admin.
	mux.HandleFunc("POST /v1/admin/temp-sweep", s.handleAdminTempSweep)

	return mux
}
