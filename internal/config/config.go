package config

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL     = "http://127.0.0.1:7411"
	DefaultDBFileName = ".tasktrack.db"
	DefaultLogLevel   = "info"

	DefaultUploadRoot                = "uploads"
	DefaultUploadTasksDir            = "tasks"
	DefaultUploadMaxFileBytes  int64 = 10 * 1024 * 1024
	DefaultUploadMaxBodyBytes  int64 = 12 * 1024 * 1024
	DefaultUploadMultipartMem  int64 = 4 * 1024 * 1024
	DefaultUploadMaxConcurrent       = 8
	DefaultUploadTempMaxAge          = 24 * time.Hour

	configFileName  = ".tasktrack.toml"
	configDirEnvKey = "TASKTRACK_CONFIG_DIR"

	allowedMediaTypesEnvKey = "TASKTRACK_ALLOWED_MEDIA_TYPES"
)

// DefaultAllowedMediaTypes is the image allow-list used when none is configured.
var DefaultAllowedMediaTypes = []string{"image/gif", "image/jpeg", "image/png", "image/webp"}

// UploadConfig defines runtime configuration for task attachments.
type UploadConfig struct {
	RootDir             string   `toml:"root_dir"`
	TasksDir            string   `toml:"tasks_dir"`
	MaxFileBytes        int64    `toml:"max_file_bytes"`
	MaxBodyBytes        int64    `toml:"max_body_bytes"`
	MultipartMaxMemory  int64    `toml:"multipart_max_memory"`
	MaxConcurrent       int      `toml:"max_concurrent"`
	AllowedMediaTypes   []string `toml:"allowed_media_types"`
	TempMaxAge          Duration `toml:"temp_max_age"`
	CrossDeviceFallback bool     `toml:"cross_device_fallback"`
}

// Config defines runtime configuration for tasktrack.
type Config struct {
	APIURL   string       `toml:"api_url"`
	DBPath   string       `toml:"db_path"`
	LogLevel string       `toml:"log_level"`
	LogFile  string       `toml:"log_file"`
	Uploads  UploadConfig `toml:"uploads"`
}

// Duration is a time.Duration that reads and writes as a Go duration string.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		DBPath:   "",
		LogLevel: DefaultLogLevel,
		Uploads: UploadConfig{
			RootDir:            "",
			TasksDir:           DefaultUploadTasksDir,
			MaxFileBytes:       DefaultUploadMaxFileBytes,
			MaxBodyBytes:       DefaultUploadMaxBodyBytes,
			MultipartMaxMemory: DefaultUploadMultipartMem,
			MaxConcurrent:      DefaultUploadMaxConcurrent,
			AllowedMediaTypes:  append([]string(nil), DefaultAllowedMediaTypes...),
			TempMaxAge:         Duration{DefaultUploadTempMaxAge},
		},
	}
}

func loadFile(path string, cfg *Config) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"log_level",
	"log_file",
	"uploads.root_dir",
	"uploads.tasks_dir",
	"uploads.max_file_bytes",
	"uploads.max_body_bytes",
	"uploads.multipart_max_memory",
	"uploads.max_concurrent",
	"uploads.allowed_media_types",
	"uploads.temp_max_age",
	"uploads.cross_device_fallback",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "log_file":
		return c.LogFile, nil
	case "uploads.root_dir":
		return c.Uploads.RootDir, nil
	case "uploads.tasks_dir":
		return c.Uploads.TasksDir, nil
	case "uploads.max_file_bytes":
		return strconv.FormatInt(c.Uploads.MaxFileBytes, 10), nil
	case "uploads.max_body_bytes":
		return strconv.FormatInt(c.Uploads.MaxBodyBytes, 10), nil
	case "uploads.multipart_max_memory":
		return strconv.FormatInt(c.Uploads.MultipartMaxMemory, 10), nil
	case "uploads.max_concurrent":
		return strconv.Itoa(c.Uploads.MaxConcurrent), nil
	case "uploads.allowed_media_types":
		return strings.Join(c.Uploads.AllowedMediaTypes, ","), nil
	case "uploads.temp_max_age":
		return c.Uploads.TempMaxAge.String(), nil
	case "uploads.cross_device_fallback":
		return strconv.FormatBool(c.Uploads.CrossDeviceFallback), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// Path returns the path to the config file.
func Path() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(configDirEnvKey)); dir != "" {
		return filepath.Join(dir, configFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads the config file and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	path, err := Path()
	if err == nil {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	cwd, _ := os.Getwd()
	if cfg.DBPath == "" && cwd != "" {
		cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
	}
	if cfg.Uploads.RootDir == "" && cwd != "" {
		cfg.Uploads.RootDir = filepath.Join(cwd, DefaultUploadRoot)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalize()

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TASKTRACK_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("TASKTRACK_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("TASKTRACK_LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := os.Getenv("TASKTRACK_UPLOAD_ROOT"); v != "" {
		c.Uploads.RootDir = v
	}
	if v := os.Getenv("TASKTRACK_UPLOAD_TASKS_DIR"); v != "" {
		c.Uploads.TasksDir = v
	}
	if raw := strings.TrimSpace(os.Getenv(allowedMediaTypesEnvKey)); raw != "" {
		c.Uploads.AllowedMediaTypes = splitCSV(raw)
	}
	if raw := strings.TrimSpace(os.Getenv("TASKTRACK_UPLOAD_MAX_FILE_BYTES")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("TASKTRACK_UPLOAD_MAX_FILE_BYTES: %w", err)
		}
		c.Uploads.MaxFileBytes = parsed
	}
	return nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "uploads.max_file_bytes", "uploads.max_body_bytes", "uploads.multipart_max_memory":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "uploads.max_concurrent":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "uploads.cross_device_fallback":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "uploads.temp_max_age":
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration", key)
		}
		return parsed.String(), nil
	case "uploads.allowed_media_types":
		return splitCSV(value), nil
	case "log_level":
		switch strings.ToLower(value) {
		case "debug", "info", "warn", "warning", "error":
			return strings.ToLower(value), nil
		}
		return nil, fmt.Errorf("%s must be one of debug, info, warn, error", key)
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func splitCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if strings.TrimSpace(c.Uploads.TasksDir) == "" {
		c.Uploads.TasksDir = DefaultUploadTasksDir
	}
	if c.Uploads.MaxFileBytes <= 0 {
		c.Uploads.MaxFileBytes = DefaultUploadMaxFileBytes
	}
	if c.Uploads.MaxBodyBytes < c.Uploads.MaxFileBytes {
		c.Uploads.MaxBodyBytes = c.Uploads.MaxFileBytes + (2 << 20)
	}
	if c.Uploads.MultipartMaxMemory <= 0 {
		c.Uploads.MultipartMaxMemory = DefaultUploadMultipartMem
	}
	if c.Uploads.MaxConcurrent <= 0 {
		c.Uploads.MaxConcurrent = DefaultUploadMaxConcurrent
	}
	if c.Uploads.TempMaxAge.Duration <= 0 {
		c.Uploads.TempMaxAge = Duration{DefaultUploadTempMaxAge}
	}
	c.Uploads.AllowedMediaTypes = NormalizeMediaTypes(c.Uploads.AllowedMediaTypes)
	if len(c.Uploads.AllowedMediaTypes) == 0 {
		c.Uploads.AllowedMediaTypes = append([]string(nil), DefaultAllowedMediaTypes...)
	}
}

// NormalizeMediaTypes lowercases, strips parameters, dedupes and sorts.
func NormalizeMediaTypes(rawValues []string) []string {
	if len(rawValues) == 0 {
		return nil
	}
	out := make([]string, 0, len(rawValues))
	seen := map[string]struct{}{}
	for _, raw := range rawValues {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parsed, _, err := mime.ParseMediaType(raw)
		if err != nil {
			continue
		}
		normalized := strings.ToLower(strings.TrimSpace(parsed))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
