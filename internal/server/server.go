package server

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"tasktrack/internal/config"
	"tasktrack/internal/filestore"
	"tasktrack/internal/store"
)

const (
	apiTokenEnvKey    = "TASKTRACK_API_TOKEN"
	adminTokenEnvKey  = "TASKTRACK_ADMIN_TOKEN"
	allowRemoteEnvKey = "TASKTRACK_ALLOW_REMOTE"
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 2 * time.Minute
	writeTimeout      = 2 * time.Minute
	idleTimeout       = 60 * time.Second
)

// Server wraps HTTP handlers for the tasktrack API.
type Server struct {
	addr              string
	dbPath            string
	uploadDir         string
	store             store.TaskStore
	service           *TaskService
	attachmentService *AttachmentService
	uploads           config.UploadConfig
	logger            *slog.Logger
	apiToken          string
	adminToken        string
	uploadLimiter     chan struct{}
}

// New creates a new server instance. Task and attachment services share one
// set of per-task locks.
func New(addr, dbPath string, taskStore store.TaskStore, files *filestore.TaskFiles, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	locks := newTaskLocks()
	var attachmentFiles filestore.AttachmentFiles
	uploadDir := ""
	if files != nil {
		attachmentFiles = files
		uploadDir = files.Dir()
	}

	srv := &Server{
		addr:              addr,
		dbPath:            dbPath,
		uploadDir:         uploadDir,
		store:             taskStore,
		service:           NewTaskService(taskStore, attachmentFiles, locks, logger),
		attachmentService: NewAttachmentService(taskStore, attachmentFiles, locks, logger),
		logger:            logger,
		apiToken:          strings.TrimSpace(os.Getenv(apiTokenEnvKey)),
		adminToken:        strings.TrimSpace(os.Getenv(adminTokenEnvKey)),
	}
	srv.ConfigureAttachmentOptions(config.Default().Uploads)
	return srv
}

// ConfigureAttachmentOptions applies upload limits and the media type policy.
func (s *Server) ConfigureAttachmentOptions(opts config.UploadConfig) {
	defaults := config.Default().Uploads
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = defaults.MaxFileBytes
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if opts.MaxBodyBytes < opts.MaxFileBytes {
		opts.MaxBodyBytes = opts.MaxFileBytes + (1 << 20)
	}
	if opts.MultipartMaxMemory <= 0 {
		opts.MultipartMaxMemory = defaults.MultipartMaxMemory
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaults.MaxConcurrent
	}
	if len(opts.AllowedMediaTypes) == 0 {
		opts.AllowedMediaTypes = defaults.AllowedMediaTypes
	}
	if opts.TempMaxAge.Duration <= 0 {
		opts.TempMaxAge = defaults.TempMaxAge
	}

	s.uploads = opts
	s.uploadLimiter = make(chan struct{}, opts.MaxConcurrent)
	s.attachmentService.ConfigurePolicy(opts.AllowedMediaTypes, opts.MaxFileBytes)
}

// Handler returns the routed handler with auth and request logging applied.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.withAuth(s.routes()))
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.log().Info("starting server", "addr", s.addr, "upload_dir", s.uploadDir)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	return server.ListenAndServe()
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) acquireLimiter(limiter chan struct{}, w http.ResponseWriter, r *http.Request, name string) bool {
	if limiter == nil {
		return true
	}
	select {
	case limiter <- struct{}{}:
		return true
	default:
		err := apiError{
			status:  http.StatusTooManyRequests,
			code:    "resource_exhausted",
			errCode: ErrCodeResourceExhausted,
			err:     fmt.Errorf("too many concurrent %s requests", name),
		}
		s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
		return false
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func (s *Server) releaseLimiter(limiter chan struct{}) {
	if limiter == nil {
		return
	}
	select {
	case <-limiter:
	default:
	}
}
