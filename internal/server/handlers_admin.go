package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"tasktrack/internal/api"
)

func (s *Server) handleAdminTempSweep(w http.ResponseWriter, r *http.Request) {
	var req api.TempSweepRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	olderThan := s.uploads.TempMaxAge.Duration
	if value := strings.TrimSpace(req.OlderThan); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed < 0 {
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("invalid older_than: %q", value), ErrCodeInvalidQuery))
			return
		}
		olderThan = parsed
	}
	if !req.DryRun && r.Header.Get("X-Confirm") != "true" {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("non-dry-run requires X-Confirm: true header"), ErrCodeMissingRequired))
		return
	}

	result, err := s.attachmentService.SweepTemp(r.Context(), olderThan, req.DryRun)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.TempSweepResponse{
		CandidateCount: result.CandidateCount,
		DeletedCount:   result.DeletedCount,
		FailedCount:    result.FailedCount,
		ReclaimedBytes: result.ReclaimedBytes,
		DryRun:         result.DryRun,
	})
}
