package server

import (
	"net/http"

	"tasktrack/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.StoreInfo(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	resp := api.InfoResponse{
		DBPath:          s.dbPath,
		UploadDir:       s.uploadDir,
		SchemaVersion:   info.SchemaVersion,
		TaskCounts:      info.TaskCounts,
		TotalTasks:      info.TotalTasks,
		AttachmentCount: info.AttachmentCount,
		UserCount:       info.UserCount,
	}

	s.writeJSON(w, http.StatusOK, resp)
}
