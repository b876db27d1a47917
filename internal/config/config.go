// Package config loads server settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Attachment backends.
const (
	BackendDisk = "disk"
	BackendGCS  = "gcs"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Addr     string `yaml:"addr"`
	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`

	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`

	// QueryTimeout bounds each store call.
	QueryTimeout time.Duration `yaml:"query_timeout"`

	Attachments AttachmentsConfig `yaml:"attachments"`
	Fanout      FanoutConfig      `yaml:"fanout"`
	Tasks       TasksConfig       `yaml:"tasks"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
}

// AttachmentsConfig selects where uploaded images live.
type AttachmentsConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
	Bucket  string `yaml:"bucket"`

	// CredentialsFile is a service account key for the gcs backend. Empty uses
	// application default credentials.
	CredentialsFile string `yaml:"credentials_file"`

	// URLPrefix is prepended to attachment refs in responses.
	URLPrefix string `yaml:"url_prefix"`

	// MaxUploadBytes caps a single upload.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// FanoutConfig bounds message delivery to connected members.
type FanoutConfig struct {
	Concurrency int           `yaml:"concurrency"`
	PushTimeout time.Duration `yaml:"push_timeout"`
}

// TasksConfig bounds detached background work.
type TasksConfig struct {
	MaxConcurrent int64         `yaml:"max_concurrent"`
	Timeout       time.Duration `yaml:"timeout"`
}

// WebSocketConfig limits inbound frames per connection.
type WebSocketConfig struct {
	FramesPerSecond float64 `yaml:"frames_per_second"`
	Burst           int     `yaml:"burst"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Addr:         ":8080",
		DBPath:       "./data/social.db",
		LogLevel:     "info",
		TokenTTL:     24 * time.Hour,
		QueryTimeout: 5 * time.Second,
		Attachments: AttachmentsConfig{
			Backend:        BackendDisk,
			Dir:            "./data/uploads",
			URLPrefix:      "/uploads/",
			MaxUploadBytes: 10 << 20,
		},
		Fanout: FanoutConfig{
			Concurrency: 16,
			PushTimeout: 5 * time.Second,
		},
		Tasks: TasksConfig{
			MaxConcurrent: 32,
			Timeout:       30 * time.Second,
		},
		WebSocket: WebSocketConfig{
			FramesPerSecond: 10,
			Burst:           20,
		},
	}
}

// Load reads path (if non-empty) over the defaults, then applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Addr = getEnv("ADDR", c.Addr)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.Attachments.Backend = getEnv("ATTACHMENT_BACKEND", c.Attachments.Backend)
	c.Attachments.Dir = getEnv("UPLOADS_DIR", c.Attachments.Dir)
	c.Attachments.Bucket = getEnv("GCS_BUCKET", c.Attachments.Bucket)
	c.Attachments.URLPrefix = getEnv("UPLOAD_URL_PREFIX", c.Attachments.URLPrefix)

	var err error
	if c.TokenTTL, err = getEnvDuration("TOKEN_TTL", c.TokenTTL); err != nil {
		return err
	}
	if c.QueryTimeout, err = getEnvDuration("QUERY_TIMEOUT", c.QueryTimeout); err != nil {
		return err
	}
	if v := os.Getenv("FANOUT_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid FANOUT_CONCURRENCY %q: %w", v, err)
		}
		c.Fanout.Concurrency = n
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required (set JWT_SECRET)"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token_ttl must be positive"))
	}
	if c.QueryTimeout <= 0 {
		errs = append(errs, errors.New("query_timeout must be positive"))
	}
	switch c.Attachments.Backend {
	case BackendDisk:
		if c.Attachments.Dir == "" {
			errs = append(errs, errors.New("attachments.dir is required for the disk backend"))
		}
	case BackendGCS:
		if c.Attachments.Bucket == "" {
			errs = append(errs, errors.New("attachments.bucket is required for the gcs backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown attachments backend %q", c.Attachments.Backend))
	}
	if c.Fanout.Concurrency <= 0 {
		errs = append(errs, errors.New("fanout.concurrency must be positive"))
	}
	if c.Tasks.MaxConcurrent <= 0 {
		errs = append(errs, errors.New("tasks.max_concurrent must be positive"))
	}
	if c.WebSocket.FramesPerSecond <= 0 || c.WebSocket.Burst <= 0 {
		errs = append(errs, errors.New("websocket rate limit must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}
