package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults applied when the environment does not set a value.
const (
	DefaultPort           = "8080"
	DefaultModel          = "gemini-2.0-flash"
	DefaultMaxUploadBytes = 16 << 20
	DefaultHistoryWindow  = 5
	DefaultDataset        = "finance"
	DefaultJobQueueSize   = 100
	DefaultJobWorkers     = 2
	DefaultSessionIdle    = 24 * time.Hour
	DefaultSweepSchedule  = "@every 10m"
)

// Config holds the service configuration.
type Config struct {
	Server    ServerConfig
	Gemini    GeminiConfig
	Log       LogConfig
	Recording RecordingConfig
}

// ServerConfig describes the HTTP listener and request limits.
type ServerConfig struct {
	Port           string
	MaxUploadBytes int64
	HistoryWindow  int
	SecureCookies  bool
	// SessionIdle drops sessions unused for this long; zero keeps them forever.
	SessionIdle   time.Duration
	SweepSchedule string
}

// GeminiConfig holds the model credential and identifier.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// LogConfig selects zerolog level and output format.
type LogConfig struct {
	Level  string
	Format string
}

// RecordingConfig configures the optional exchange sinks.
type RecordingConfig struct {
	ArchiveBucket string
	BQProjectID   string
	BQDataset     string
	QueueSize     int
	Workers       int
}

// Enabled reports whether any recording sink is configured.
func (c RecordingConfig) Enabled() bool {
	return c.ArchiveBucket != "" || c.BQProjectID != ""
}

// Load reads an optional .env file and then the process environment.
// A missing .env file is not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := LoadEnvFile(envFiles...); err != nil {
		return nil, err
	}
	return FromEnv()
}

// LoadEnvFile populates the environment from .env files without overriding
// variables that are already set. Missing files are ignored.
func LoadEnvFile(envFiles ...string) error {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, error) {
	maxUpload, err := intEnv("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)
	if err != nil {
		return nil, err
	}
	window, err := intEnv("HISTORY_WINDOW", DefaultHistoryWindow)
	if err != nil {
		return nil, err
	}
	secure, err := boolEnv("SECURE_COOKIES", false)
	if err != nil {
		return nil, err
	}
	idle, err := durationEnv("SESSION_IDLE_TIMEOUT", DefaultSessionIdle)
	if err != nil {
		return nil, err
	}
	recording, err := RecordingFromEnv()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", DefaultPort),
			MaxUploadBytes: int64(maxUpload),
			HistoryWindow:  window,
			SecureCookies:  secure,
			SessionIdle:    idle,
			SweepSchedule:  getEnv("SESSION_SWEEP_SCHEDULE", DefaultSweepSchedule),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", DefaultModel),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Recording: recording,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RecordingFromEnv reads only the exchange recording settings.
func RecordingFromEnv() (RecordingConfig, error) {
	queueSize, err := intEnv("JOB_QUEUE_SIZE", DefaultJobQueueSize)
	if err != nil {
		return RecordingConfig{}, err
	}
	workers, err := intEnv("JOB_WORKERS", DefaultJobWorkers)
	if err != nil {
		return RecordingConfig{}, err
	}

	return RecordingConfig{
		ArchiveBucket: getEnv("ARCHIVE_BUCKET", ""),
		BQProjectID:   getEnv("BQ_PROJECT_ID", ""),
		BQDataset:     getEnv("BQ_DATASET", DefaultDataset),
		QueueSize:     queueSize,
		Workers:       workers,
	}, nil
}

// Validate checks presence and ranges only; credentials are not verified.
func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.Gemini.Model == "" {
		return fmt.Errorf("GEMINI_MODEL is required")
	}
	if strings.ContainsAny(c.Server.Port, " :") {
		return fmt.Errorf("invalid PORT value: %q", c.Server.Port)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.Server.HistoryWindow <= 0 || c.Server.HistoryWindow > DefaultHistoryWindow {
		return fmt.Errorf("HISTORY_WINDOW must be between 1 and %d", DefaultHistoryWindow)
	}
	if c.Server.SessionIdle < 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must not be negative")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultVal
}

func intEnv(key string, defaultVal int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func boolEnv(key string, defaultVal bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultVal, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func durationEnv(key string, defaultVal time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultVal, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}
