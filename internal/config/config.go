package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAddr is the default TCP address the session core listens on.
	DefaultAddr = ":43180"
	// DefaultStorePath locates the sqlite database holding player event logs.
	DefaultStorePath = "arena.db"
	// DefaultGameCapacity bounds how many players a single game accepts.
	DefaultGameCapacity = 4
	// DefaultRelayTimeout caps how long a game waits for a player to accept a relayed event.
	DefaultRelayTimeout = 5 * time.Second
	// DefaultPollTimeout bounds how long a long-poll request parks before returning empty.
	DefaultPollTimeout = 25 * time.Second
	// DefaultPingInterval controls the keepalive cadence for streaming connections.
	DefaultPingInterval = 30 * time.Second
	// DefaultAuthWindow bounds how frequently authentication attempts may be made.
	DefaultAuthWindow = time.Minute
	// DefaultAuthBurst sets how many authentication attempts fit in one window.
	DefaultAuthBurst = 10

	// DefaultLogLevel controls verbosity for core logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "arena-core.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true
)

// Config captures all runtime tunables for the session core.
type Config struct {
	Address      string
	StorePath    string
	JournalPath  string
	GameCapacity int
	RelayTimeout time.Duration
	PollTimeout  time.Duration
	PingInterval time.Duration
	AdminToken   string
	AuthWindow   time.Duration
	AuthBurst    int
	Logging      LoggingConfig
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load reads the core configuration from environment variables, applying sane defaults
// and returning descriptive errors for invalid overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Address:      getString("ARENA_ADDR", DefaultAddr),
		StorePath:    getString("ARENA_STORE_PATH", DefaultStorePath),
		JournalPath:  strings.TrimSpace(os.Getenv("ARENA_JOURNAL_PATH")),
		GameCapacity: DefaultGameCapacity,
		RelayTimeout: DefaultRelayTimeout,
		PollTimeout:  DefaultPollTimeout,
		PingInterval: DefaultPingInterval,
		AdminToken:   strings.TrimSpace(os.Getenv("ARENA_ADMIN_TOKEN")),
		AuthWindow:   DefaultAuthWindow,
		AuthBurst:    DefaultAuthBurst,
		Logging: LoggingConfig{
			Level:      strings.TrimSpace(getString("ARENA_LOG_LEVEL", DefaultLogLevel)),
			Path:       strings.TrimSpace(getString("ARENA_LOG_PATH", DefaultLogPath)),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("ARENA_GAME_CAPACITY")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("ARENA_GAME_CAPACITY must be a positive integer, got %q", raw))
		} else {
			cfg.GameCapacity = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ARENA_RELAY_TIMEOUT")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("ARENA_RELAY_TIMEOUT must be a positive duration, got %q", raw))
		} else {
			cfg.RelayTimeout = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ARENA_POLL_TIMEOUT")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("ARENA_POLL_TIMEOUT must be a positive duration, got %q", raw))
		} else {
			cfg.PollTimeout = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ARENA_PING_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("ARENA_PING_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.PingInterval = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ARENA_AUTH_WINDOW")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("ARENA_AUTH_WINDOW must be a positive duration, got %q", raw))
		} else {
			cfg.AuthWindow = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ARENA_AUTH_BURST")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("ARENA_AUTH_BURST must be a positive integer, got %q", raw))
		} else {
			cfg.AuthBurst = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ARENA_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("ARENA_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ARENA_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("ARENA_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ARENA_LOG_MAX_AGE_DAYS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("ARENA_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxAgeDays = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ARENA_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("ARENA_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
