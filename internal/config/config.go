// Package config provides configuration management for the dsync agent.
// Configuration is loaded from an optional .env file and environment
// variables, with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultPort          = 8788
	DefaultLogLevel      = "info"
	DefaultDataDir       = ".dsync"
	DefaultAPIURL        = "https://darwin.v7labs.com/api"
	DefaultWebURL        = "https://darwin.v7labs.com"
	DefaultSyncInterval  = 10 * time.Minute
	DefaultRateLimit     = 10.0
	DefaultUploadWorkers = 4
	DefaultHTTPTimeout   = 60 * time.Second
	DefaultHeadless      = true

	// Environment variable names
	EnvPort          = "DSYNC_PORT"
	EnvLogLevel      = "DSYNC_LOG_LEVEL"
	EnvDataDir       = "DSYNC_DATA_DIR"
	EnvAPIURL        = "DSYNC_API_URL"
	EnvWebURL        = "DSYNC_WEB_URL"
	EnvAPIKey        = "DSYNC_API_KEY"
	EnvTeam          = "DSYNC_TEAM"
	EnvDataset       = "DSYNC_DATASET"
	EnvSyncInterval  = "DSYNC_SYNC_INTERVAL"
	EnvRateLimit     = "DSYNC_RATE_LIMIT"
	EnvUploadWorkers = "DSYNC_UPLOAD_WORKERS"
	EnvHTTPTimeout   = "DSYNC_HTTP_TIMEOUT"
	EnvHeadless      = "DSYNC_HEADLESS"

	// Database filename
	DBFilename = "dsync.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	APIURL() string
	WebURL() string
	APIKey() string
	Team() string
	Dataset() string
	SyncInterval() time.Duration
	RateLimit() float64
	UploadWorkers() int
	HTTPTimeout() time.Duration
	Headless() bool
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port          int
	logLevel      string
	dataDir       string
	apiURL        string
	webURL        string
	apiKey        string
	team          string
	dataset       string
	syncInterval  time.Duration
	rateLimit     float64
	uploadWorkers int
	httpTimeout   time.Duration
	headless      bool
}

// New creates a new EnvConfig with defaults and environment variable overrides.
// A .env file in the working directory is loaded first when present; variables
// already set in the environment win over it.
func New() (*EnvConfig, error) {
	_ = godotenv.Load()

	cfg := &EnvConfig{
		port:          DefaultPort,
		logLevel:      DefaultLogLevel,
		dataDir:       defaultDataDir(),
		apiURL:        DefaultAPIURL,
		webURL:        DefaultWebURL,
		syncInterval:  DefaultSyncInterval,
		rateLimit:     DefaultRateLimit,
		uploadWorkers: DefaultUploadWorkers,
		httpTimeout:   DefaultHTTPTimeout,
		headless:      DefaultHeadless,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if u := os.Getenv(EnvAPIURL); u != "" {
		cfg.apiURL = u
	}

	if u := os.Getenv(EnvWebURL); u != "" {
		cfg.webURL = u
	}

	cfg.apiKey = os.Getenv(EnvAPIKey)
	cfg.team = os.Getenv(EnvTeam)
	cfg.dataset = os.Getenv(EnvDataset)

	if v := os.Getenv(EnvSyncInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvSyncInterval, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("invalid %s: interval must be positive", EnvSyncInterval)
		}
		cfg.syncInterval = d
	}

	if v := os.Getenv(EnvRateLimit); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvRateLimit, err)
		}
		if rps <= 0 {
			return nil, fmt.Errorf("invalid %s: rate must be positive", EnvRateLimit)
		}
		cfg.rateLimit = rps
	}

	if v := os.Getenv(EnvUploadWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvUploadWorkers, err)
		}
		if n < 1 {
			return nil, fmt.Errorf("invalid %s: at least one worker is required", EnvUploadWorkers)
		}
		cfg.uploadWorkers = n
	}

	if v := os.Getenv(EnvHTTPTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHTTPTimeout, err)
		}
		cfg.httpTimeout = d
	}

	if v := os.Getenv(EnvHeadless); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = b
	}

	return cfg, nil
}

// Port returns the local HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// APIURL returns the remote API root, e.g. https://darwin.v7labs.com/api
func (c *EnvConfig) APIURL() string {
	return c.apiURL
}

// WebURL returns the base URL used to build workview links
func (c *EnvConfig) WebURL() string {
	return c.webURL
}

func (c *EnvConfig) APIKey() string {
	return c.apiKey
}

func (c *EnvConfig) Team() string {
	return c.team
}

// Dataset returns the slug of the dataset the agent mirrors
func (c *EnvConfig) Dataset() string {
	return c.dataset
}

func (c *EnvConfig) SyncInterval() time.Duration {
	return c.syncInterval
}

// RateLimit returns the maximum outgoing requests per second
func (c *EnvConfig) RateLimit() float64 {
	return c.rateLimit
}

func (c *EnvConfig) UploadWorkers() int {
	return c.uploadWorkers
}

func (c *EnvConfig) HTTPTimeout() time.Duration {
	return c.httpTimeout
}

// Headless reports whether to run without the system tray
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// RemoteEnabled reports whether enough is configured to reach the remote service
func (c *EnvConfig) RemoteEnabled() bool {
	return c.apiKey != "" && c.team != "" && c.dataset != ""
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
