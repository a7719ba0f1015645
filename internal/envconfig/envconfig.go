// Package envconfig reads the small set of environment variables the
// spec calls out as external collaborators: initial log level and a
// root directory for test/scratch output. Library code never reads
// these directly — only cmd/streamrig-pipe and test setup do.
package envconfig

import (
	"os"

	"github.com/streamrig/streamrig/internal/logging"
)

const (
	// EnvLogLevel names the log level env var (debug/info/warn/error).
	EnvLogLevel = "STREAMRIG_LOG_LEVEL"

	// EnvTestRoot names the scratch-directory env var used by tests and
	// the demo CLI for rotated output files.
	EnvTestRoot = "STREAMRIG_TEST_ROOT"
)

// Config is the process-wide configuration sourced from the environment.
type Config struct {
	LogLevel logging.LogLevel
	TestRoot string
}

// Load reads Config from the current environment, applying sensible
// defaults (LevelInfo, os.TempDir()) for anything unset.
func Load() Config {
	cfg := Config{
		LogLevel: logging.LevelInfo,
		TestRoot: os.TempDir(),
	}

	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		cfg.LogLevel = logging.ParseLevel(v)
	}
	if v, ok := os.LookupEnv(EnvTestRoot); ok && v != "" {
		cfg.TestRoot = v
	}

	return cfg
}

// Apply installs cfg's log level onto the default logger.
func (c Config) Apply() {
	logging.Default().SetLevel(c.LogLevel)
}
