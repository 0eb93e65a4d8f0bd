package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr = ":8080"
	defaultEngine     = "sim"
	defaultSimDB      = ":memory:"

	envListenAddr      = "PTS_LISTEN_ADDR"
	envLogLevel        = "PTS_LOG_LEVEL"
	envEngine          = "PTS_ENGINE"
	envSimDB           = "PTS_SIM_DB"
	envWorkspace       = "PTS_WORKSPACE"
	envCallTimeoutMS   = "PTS_CALL_TIMEOUT_MS"
	envMaximumLogging  = "PTS_MAXIMUM_LOGGING"
	envSaveTestHistory = "PTS_SAVE_TEST_HISTORY"
	envCallbackAddr    = "PTS_CALLBACK_ADDR"
	envAnswers         = "PTS_ANSWERS"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	LogLevel   slog.Level

	// Engine is the name of the registered engine driver to open.
	Engine string
	// SimDB is the SQLite path used by the sim driver.
	SimDB string
	// Workspace, when set, is opened at startup.
	Workspace string

	// CallTimeout is applied with SetCallTimeout when non-zero.
	CallTimeout     time.Duration
	MaximumLogging  bool
	SaveTestHistory bool

	// CallbackAddr, when set, forwards every run's notifications to a remote
	// receiver.
	CallbackAddr string
	// Answers is an optional YAML answers file for implicit sends.
	Answers string
}

// Load reads configuration from environment variables with sensible defaults.
// Malformed numeric or boolean values keep their defaults.
func Load() Config {
	cfg := Config{
		ListenAddr: defaultListenAddr,
		LogLevel:   slog.LevelInfo,
		Engine:     defaultEngine,
		SimDB:      defaultSimDB,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = ParseLogLevel(v)
	}
	if v := os.Getenv(envEngine); v != "" {
		cfg.Engine = v
	}
	if v := os.Getenv(envSimDB); v != "" {
		cfg.SimDB = v
	}
	cfg.Workspace = os.Getenv(envWorkspace)
	if v := os.Getenv(envCallTimeoutMS); v != "" {
		if ms, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.CallTimeout = time.Duration(ms) * time.Millisecond
		}
	}
	cfg.MaximumLogging = parseBool(os.Getenv(envMaximumLogging))
	cfg.SaveTestHistory = parseBool(os.Getenv(envSaveTestHistory))
	cfg.CallbackAddr = os.Getenv(envCallbackAddr)
	cfg.Answers = os.Getenv(envAnswers)

	return cfg
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

// ParseLogLevel maps a level name to its slog level, defaulting to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
