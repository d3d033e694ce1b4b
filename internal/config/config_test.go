package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func isolateConfig(t *testing.T) (configDir, workspace string) {
	t.Helper()
	configDir = t.TempDir()
	workspace = t.TempDir()

	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(oldWD)
	})
	if err := os.Chdir(workspace); err != nil {
		t.Fatalf("chdir workspace: %v", err)
	}

	t.Setenv("TASKTRACK_CONFIG_DIR", configDir)
	for _, key := range []string{
		"TASKTRACK_API_URL",
		"TASKTRACK_DB",
		"TASKTRACK_LOG_FILE",
		"TASKTRACK_UPLOAD_ROOT",
		"TASKTRACK_UPLOAD_TASKS_DIR",
		"TASKTRACK_ALLOWED_MEDIA_TYPES",
		"TASKTRACK_UPLOAD_MAX_FILE_BYTES",
	} {
		t.Setenv(key, "")
	}
	return configDir, workspace
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.APIURL != DefaultAPIURL {
		t.Fatalf("expected default API URL, got %q", cfg.APIURL)
	}
	if cfg.DBPath != "" {
		t.Fatalf("expected empty db path, got %q", cfg.DBPath)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.Uploads.TasksDir != "tasks" {
		t.Fatalf("expected tasks dir 'tasks', got %q", cfg.Uploads.TasksDir)
	}
	if cfg.Uploads.MaxFileBytes != DefaultUploadMaxFileBytes {
		t.Fatalf("expected max file bytes %d, got %d", DefaultUploadMaxFileBytes, cfg.Uploads.MaxFileBytes)
	}
	if cfg.Uploads.TempMaxAge.Duration != 24*time.Hour {
		t.Fatalf("expected temp max age 24h, got %s", cfg.Uploads.TempMaxAge)
	}
	if cfg.Uploads.CrossDeviceFallback {
		t.Fatal("expected cross device fallback disabled by default")
	}
	if !reflect.DeepEqual(cfg.Uploads.AllowedMediaTypes, DefaultAllowedMediaTypes) {
		t.Fatalf("unexpected default media types: %v", cfg.Uploads.AllowedMediaTypes)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".tasktrack.toml")
	if err := os.WriteFile(path, []byte(`api_url = "http://localhost:9999"
log_level = "warn"

[uploads]
root_dir = "/srv/uploads"
temp_max_age = "90m"
cross_device_fallback = true
allowed_media_types = ["image/png"]
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://localhost:9999" {
		t.Fatalf("expected api_url 'http://localhost:9999', got %q", cfg.APIURL)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected log_level 'warn', got %q", cfg.LogLevel)
	}
	if cfg.Uploads.RootDir != "/srv/uploads" {
		t.Fatalf("expected root dir, got %q", cfg.Uploads.RootDir)
	}
	if cfg.Uploads.TempMaxAge.Duration != 90*time.Minute {
		t.Fatalf("expected 90m temp max age, got %s", cfg.Uploads.TempMaxAge)
	}
	if !cfg.Uploads.CrossDeviceFallback {
		t.Fatal("expected cross device fallback enabled")
	}
	if !reflect.DeepEqual(cfg.Uploads.AllowedMediaTypes, []string{"image/png"}) {
		t.Fatalf("unexpected media types: %v", cfg.Uploads.AllowedMediaTypes)
	}
}

func TestLoadFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFile("/nonexistent/path/.tasktrack.toml", &cfg); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Fatalf("defaults should be preserved")
	}
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".tasktrack.toml")
	if err := os.WriteFile(path, []byte("[uploads]\ntemp_max_age = \"soon\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg := Default()
	if err := loadFile(path, &cfg); err == nil {
		t.Fatal("expected parse error for invalid duration")
	}
}

func TestIsAllowedKey(t *testing.T) {
	for _, key := range AllowedKeys() {
		if !IsAllowedKey(key) {
			t.Fatalf("expected %q to be allowed", key)
		}
		cfg := Default()
		if _, err := cfg.Get(key); err != nil {
			t.Fatalf("get %q: %v", key, err)
		}
	}
	if IsAllowedKey("invalid") {
		t.Fatal("expected 'invalid' to not be allowed")
	}
}

func TestGetKey(t *testing.T) {
	cfg := Config{
		APIURL:   "http://test:1234",
		DBPath:   "/tmp/test.db",
		LogLevel: "warn",
		Uploads: UploadConfig{
			RootDir:             "/srv/up",
			MaxFileBytes:        123,
			AllowedMediaTypes:   []string{"image/jpeg", "image/png"},
			TempMaxAge:          Duration{2 * time.Hour},
			CrossDeviceFallback: true,
		},
	}

	cases := map[string]string{
		"api_url":                       "http://test:1234",
		"db_path":                       "/tmp/test.db",
		"log_level":                     "warn",
		"uploads.root_dir":              "/srv/up",
		"uploads.max_file_bytes":        "123",
		"uploads.allowed_media_types":   "image/jpeg,image/png",
		"uploads.temp_max_age":          "2h0m0s",
		"uploads.cross_device_fallback": "true",
	}
	for key, want := range cases {
		val, err := cfg.Get(key)
		if err != nil || val != want {
			t.Fatalf("expected %s=%q, got %q (err: %v)", key, want, val, err)
		}
	}
	if _, err := cfg.Get("invalid"); err == nil {
		t.Fatal("expected error for invalid key")
	}
}

func TestSetKeyCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "new.toml")
	if err := SetKey(path, "api_url", "http://set"); err != nil {
		t.Fatalf("set: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://set" {
		t.Fatalf("expected 'http://set', got %q", cfg.APIURL)
	}
}

func TestSetKeyUpdatesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "existing.toml")
	if err := os.WriteFile(path, []byte("api_url = \"http://keep\"\nlog_level = \"info\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := SetKey(path, "log_level", "ERROR"); err != nil {
		t.Fatalf("set: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Fatalf("expected 'error', got %q", cfg.LogLevel)
	}
	if cfg.APIURL != "http://keep" {
		t.Fatalf("expected preserved api_url 'http://keep', got %q", cfg.APIURL)
	}
}

func TestSetNestedUploadKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uploads.toml")
	for key, value := range map[string]string{
		"uploads.max_concurrent":        "3",
		"uploads.temp_max_age":          "30m",
		"uploads.cross_device_fallback": "true",
		"uploads.allowed_media_types":   "image/png, image/gif",
	} {
		if err := SetKey(path, key, value); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Uploads.MaxConcurrent != 3 {
		t.Fatalf("expected max_concurrent 3, got %d", cfg.Uploads.MaxConcurrent)
	}
	if cfg.Uploads.TempMaxAge.Duration != 30*time.Minute {
		t.Fatalf("expected temp_max_age 30m, got %s", cfg.Uploads.TempMaxAge)
	}
	if !cfg.Uploads.CrossDeviceFallback {
		t.Fatal("expected cross_device_fallback true")
	}
	if !reflect.DeepEqual(cfg.Uploads.AllowedMediaTypes, []string{"image/png", "image/gif"}) {
		t.Fatalf("unexpected media types: %v", cfg.Uploads.AllowedMediaTypes)
	}
}

func TestSetKeyRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.toml")
	cases := []struct {
		key   string
		value string
	}{
		{"invalid_key", "value"},
		{"uploads.max_file_bytes", "-1"},
		{"uploads.max_concurrent", "many"},
		{"uploads.temp_max_age", "0s"},
		{"uploads.cross_device_fallback", "maybe"},
		{"log_level", "loud"},
	}
	for _, tc := range cases {
		if err := SetKey(path, tc.key, tc.value); err == nil {
			t.Fatalf("expected error for %s=%q", tc.key, tc.value)
		}
	}
}

func TestConfigDirOverridePath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TASKTRACK_CONFIG_DIR", dir)

	path, err := Path()
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if path != filepath.Join(dir, ".tasktrack.toml") {
		t.Fatalf("unexpected config path: %s", path)
	}
}

func TestLoadDefaultsRelativeToWorkspace(t *testing.T) {
	_, workspace := isolateConfig(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != filepath.Join(workspace, DefaultDBFileName) {
		t.Fatalf("expected default workspace db path, got %q", cfg.DBPath)
	}
	if cfg.Uploads.RootDir != filepath.Join(workspace, DefaultUploadRoot) {
		t.Fatalf("expected default workspace upload root, got %q", cfg.Uploads.RootDir)
	}
}

func TestLoadConfigDirOverride(t *testing.T) {
	configDir, _ := isolateConfig(t)
	cfgPath := filepath.Join(configDir, ".tasktrack.toml")
	if err := os.WriteFile(cfgPath, []byte("api_url = \"http://127.0.0.1:9001\"\nlog_level = \"\"\n[uploads]\nmax_concurrent = 0\n"), 0o644); err != nil {
		t.Fatalf("write override config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://127.0.0.1:9001" {
		t.Fatalf("expected config-dir api_url override, got %q", cfg.APIURL)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.Uploads.MaxConcurrent != DefaultUploadMaxConcurrent {
		t.Fatalf("expected default max concurrent, got %d", cfg.Uploads.MaxConcurrent)
	}
}

func TestEnvOverrides(t *testing.T) {
	isolateConfig(t)
	t.Setenv("TASKTRACK_API_URL", "http://example.com:8080")
	t.Setenv("TASKTRACK_DB", "/tmp/override.db")
	t.Setenv("TASKTRACK_UPLOAD_ROOT", "/tmp/uploads")
	t.Setenv("TASKTRACK_UPLOAD_TASKS_DIR", "images")
	t.Setenv("TASKTRACK_ALLOWED_MEDIA_TYPES", "IMAGE/PNG; charset=binary, image/png, image/jpeg")
	t.Setenv("TASKTRACK_UPLOAD_MAX_FILE_BYTES", "2048")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://example.com:8080" {
		t.Fatalf("expected env override for API URL, got %q", cfg.APIURL)
	}
	if cfg.DBPath != "/tmp/override.db" {
		t.Fatalf("expected env override for DB path, got %q", cfg.DBPath)
	}
	if cfg.Uploads.RootDir != "/tmp/uploads" || cfg.Uploads.TasksDir != "images" {
		t.Fatalf("unexpected upload dirs: %q %q", cfg.Uploads.RootDir, cfg.Uploads.TasksDir)
	}
	if !reflect.DeepEqual(cfg.Uploads.AllowedMediaTypes, []string{"image/jpeg", "image/png"}) {
		t.Fatalf("unexpected media types: %v", cfg.Uploads.AllowedMediaTypes)
	}
	if cfg.Uploads.MaxFileBytes != 2048 {
		t.Fatalf("expected max file bytes 2048, got %d", cfg.Uploads.MaxFileBytes)
	}
	if cfg.Uploads.MaxBodyBytes < cfg.Uploads.MaxFileBytes {
		t.Fatalf("body limit %d below file limit %d", cfg.Uploads.MaxBodyBytes, cfg.Uploads.MaxFileBytes)
	}
}

func TestLoadRejectsInvalidEnvNumber(t *testing.T) {
	isolateConfig(t)
	t.Setenv("TASKTRACK_UPLOAD_MAX_FILE_BYTES", "lots")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid TASKTRACK_UPLOAD_MAX_FILE_BYTES")
	}
}

func TestNormalizeMediaTypes(t *testing.T) {
	got := NormalizeMediaTypes([]string{" image/PNG ", "bogus/;;", "", "image/png", "image/gif"})
	want := []string{"image/gif", "image/png"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if NormalizeMediaTypes(nil) != nil {
		t.Fatal("expected nil for empty input")
	}
}
