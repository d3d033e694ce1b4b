package server

import (
	"fmt"
	"net/http"
	"strings"

	"tasktrack/internal/auth"
)

const adminPathPrefix = "/v1/admin/"

// withAuth enforces the bearer token on every route except /health when
// TASKTRACK_API_TOKEN is set. Admin routes additionally need X-Admin-Token
// when TASKTRACK_ADMIN_TOKEN is set.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if s.apiToken != "" && !auth.TokenMatches(s.apiToken, bearerToken(r)) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="tasktrack"`)
			s.writeErrorReq(w, r, http.StatusUnauthorized, makeAPIError(http.StatusUnauthorized, "unauthorized", ErrCodeUnauthorized, fmt.Errorf("unauthorized")))
			return
		}

		if s.adminToken != "" && strings.HasPrefix(r.URL.Path, adminPathPrefix) {
			if !auth.TokenMatches(s.adminToken, strings.TrimSpace(r.Header.Get("X-Admin-Token"))) {
				s.writeErrorReq(w, r, http.StatusForbidden, makeAPIError(http.StatusForbidden, "forbidden", ErrCodeForbidden, fmt.Errorf("admin token required")))
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
