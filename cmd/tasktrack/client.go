package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"tasktrack/internal/api"
	"tasktrack/internal/config"
	"tasktrack/internal/filestore"
	"tasktrack/internal/server"
)

const (
	serverStartTimeout = 3 * time.Second
	serverPollInterval = 100 * time.Millisecond
	serverPingTimeout  = 500 * time.Millisecond

	// Only the tail of the child's stderr is kept for the startup error.
	serverOutputLimit = 4 << 10
)

func withClient(cfg *config.Config, fn func(*api.Client) error) error {
	stop, err := ensureServer(cfg)
	if err != nil {
		return err
	}
	if stop != nil {
		defer stop()
	}
	return fn(api.NewClient(cfg.APIURL))
}

// ensureServer starts `tasktrack srv` for the duration of one command when
// nothing answers at the configured API URL. The returned func stops it.
func ensureServer(cfg *config.Config) (func(), error) {
	client := api.NewClient(cfg.APIURL)
	ctx, cancel := context.WithTimeout(context.Background(), serverPingTimeout)
	err := client.Ping(ctx)
	cancel()
	if err == nil {
		return nil, nil
	}

	if err := checkLocalServerPaths(cfg); err != nil {
		return nil, fmt.Errorf("no server at %s and a local one cannot start: %w", cfg.APIURL, err)
	}

	srv, err := startLocalServer(cfg)
	if err != nil {
		return nil, localServerError(cfg, err, "")
	}
	if err := srv.waitReady(client, serverStartTimeout); err != nil {
		srv.stop()
		return nil, localServerError(cfg, err, srv.output.lastLine())
	}
	return srv.stop, nil
}

// checkLocalServerPaths runs the checks `tasktrack srv` would fail on, so a
// bad database or upload location is reported before anything is spawned.
// It creates the upload directories the same way the server does.
func checkLocalServerPaths(cfg *config.Config) error {
	if _, err := server.ListenAddr(cfg.APIURL); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return fmt.Errorf("db path is required")
	}
	dbDir := filepath.Dir(cfg.DBPath)
	info, err := os.Stat(dbDir)
	if err != nil {
		return fmt.Errorf("database directory %s: %w", dbDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("database directory %s is not a directory", dbDir)
	}
	if _, err := filestore.NewTaskFiles(filestore.NewLocal(), cfg.Uploads.RootDir, cfg.Uploads.TasksDir); err != nil {
		return fmt.Errorf("upload root %s: %w", cfg.Uploads.RootDir, err)
	}
	return nil
}

func localServerError(cfg *config.Config, err error, output string) error {
	if output != "" {
		return fmt.Errorf("start local server (db %s, uploads %s): %w: %s", cfg.DBPath, cfg.Uploads.RootDir, err, output)
	}
	return fmt.Errorf("start local server (db %s, uploads %s): %w", cfg.DBPath, cfg.Uploads.RootDir, err)
}

type localServer struct {
	cmd    *exec.Cmd
	output *tailBuffer
	exited chan struct{}
	err    error
}

func startLocalServer(cfg *config.Config) (*localServer, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(exe, "srv")
	cmd.Env = append(os.Environ(), localServerEnv(cfg)...)
	out := &tailBuffer{limit: serverOutputLimit}
	cmd.Stdout = io.Discard
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	srv := &localServer{cmd: cmd, output: out, exited: make(chan struct{})}
	go func() {
		srv.err = cmd.Wait()
		close(srv.exited)
	}()
	return srv, nil
}

// localServerEnv pins the child to the paths this command resolved.
func localServerEnv(cfg *config.Config) []string {
	return []string{
		"TASKTRACK_DB=" + cfg.DBPath,
		"TASKTRACK_API_URL=" + cfg.APIURL,
		"TASKTRACK_UPLOAD_ROOT=" + cfg.Uploads.RootDir,
		"TASKTRACK_UPLOAD_TASKS_DIR=" + cfg.Uploads.TasksDir,
	}
}

func (s *localServer) waitReady(client *api.Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		err := client.Ping(ctx)
		cancel()
		if err == nil {
			return nil
		}
		if !isConnRefused(err) {
			// Port is taken by something that is not a tasktrack server.
			return err
		}
		select {
		case <-s.exited:
			if s.err != nil {
				return fmt.Errorf("server exited: %w", s.err)
			}
			return errors.New("server exited")
		case <-time.After(serverPollInterval):
		}
	}
	return errors.New("server did not start in time")
}

func (s *localServer) stop() {
	select {
	case <-s.exited:
		return
	default:
	}
	_ = s.cmd.Process.Kill()
	<-s.exited
}

func isConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

// lastLine returns the last non-blank line written, trimmed.
func (b *tailBuffer) lastLine() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	lines := bytes.Split(bytes.TrimSpace(b.buf), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(string(lines[i])); line != "" {
			return line
		}
	}
	return ""
}
