// Package config loads chartsync settings from the environment and the
// optional preload file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgnsrekt/chartsync/internal/chart"
)

// Backend names accepted by CHARTSYNC_BACKEND.
const (
	BackendMemory     = "memory"
	BackendHighcharts = "highcharts"
)

// Config holds all configuration for the chartsync service.
type Config struct {
	BindAddr    string
	// PortCandidates are tried in order when BindAddr is busy and
	// PortAutoFallback is set. An entry may be a range, "host:8191-8199".
	PortCandidates   []string
	PortAutoFallback bool
	LogLevel    string
	LogFile     string
	DocsEnabled bool

	// Selection colors and the pie slice floor.
	Chart chart.Options

	Backend       string
	CDPAddress    string
	CDPPort       int
	TabURLFilter  string
	EvalTimeoutMS int

	JournalFile string
	SnapshotDir string
	PreloadFile string
	// PNGSnapshots renders png snapshots in the browser at CDPURL.
	PNGSnapshots bool
}

// Load reads configuration from environment variables and an optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		BindAddr:    getEnvOrDefault("CHARTSYNC_BIND_ADDR", "127.0.0.1:8190"),
		LogLevel:    strings.ToLower(getEnvOrDefault("CHARTSYNC_LOG_LEVEL", "info")),
		LogFile:     getEnvOrDefault("CHARTSYNC_LOG_FILE", "logs/chartsync.log"),
		DocsEnabled: getEnvBoolOrDefault("CHARTSYNC_DOCS_ENABLED", true),
		PortCandidates: splitList(getEnvOrDefault("CHARTSYNC_PORT_CANDIDATES",
			"127.0.0.1:8191,127.0.0.1:8192,127.0.0.1:8193")),
		PortAutoFallback: getEnvBoolOrDefault("CHARTSYNC_PORT_AUTO_FALLBACK", true),
		Chart: chart.Options{
			SelectedColor:   getEnvOrDefault("CHARTSYNC_SELECTED_COLOR", chart.DefaultSelectedColor),
			UnselectedColor: getEnvOrDefault("CHARTSYNC_UNSELECTED_COLOR", chart.DefaultUnselectedColor),
			IncludeColor:    getEnvOrDefault("CHARTSYNC_INCLUDE_COLOR", chart.DefaultIncludeColor),
			ExcludeColor:    getEnvOrDefault("CHARTSYNC_EXCLUDE_COLOR", chart.DefaultExcludeColor),
			MinimumSlice:    getEnvFloatOrDefault("CHARTSYNC_MINIMUM_SLICE", chart.DefaultOptions().MinimumSlice),
		},
		Backend:       strings.ToLower(getEnvOrDefault("CHARTSYNC_BACKEND", BackendMemory)),
		CDPAddress:    getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:       getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9220),
		TabURLFilter:  getEnvOrDefault("CHARTSYNC_TAB_URL_FILTER", "chartsync"),
		EvalTimeoutMS: getEnvIntOrDefault("CHARTSYNC_EVAL_TIMEOUT_MS", 5000),
		JournalFile:   os.Getenv("CHARTSYNC_JOURNAL_FILE"),
		SnapshotDir:   getEnvOrDefault("CHARTSYNC_SNAPSHOT_DIR", "./snapshots"),
		PreloadFile:   os.Getenv("CHARTSYNC_PRELOAD_FILE"),
		PNGSnapshots:  getEnvBoolOrDefault("CHARTSYNC_PNG_SNAPSHOTS", false),
	}
	if _, set := os.LookupEnv("CHARTSYNC_JOURNAL_FILE"); !set {
		cfg.JournalFile = "logs/events.jsonl"
	}
	if cfg.EvalTimeoutMS < 1000 {
		cfg.EvalTimeoutMS = 1000
	}
	switch cfg.Backend {
	case BackendMemory, BackendHighcharts:
	default:
		return nil, fmt.Errorf("config: CHARTSYNC_BACKEND %q: want %s or %s", cfg.Backend, BackendMemory, BackendHighcharts)
	}
	return cfg, nil
}

// CDPURL returns the CDP HTTP endpoint of the browser hosting the charts.
func (c *Config) CDPURL() string {
	return "http://" + c.CDPAddress + ":" + strconv.Itoa(c.CDPPort)
}

// EvalTimeout is EvalTimeoutMS as a duration.
func (c *Config) EvalTimeout() time.Duration {
	return time.Duration(c.EvalTimeoutMS) * time.Millisecond
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvFloatOrDefault(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
