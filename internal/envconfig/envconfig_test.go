package envconfig

import (
	"testing"

	"github.com/streamrig/streamrig/internal/logging"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvTestRoot, "/tmp/streamrig-test-root")

	cfg := Load()
	if cfg.LogLevel != logging.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.LogLevel)
	}
	if cfg.TestRoot != "/tmp/streamrig-test-root" {
		t.Errorf("expected overridden test root, got %q", cfg.TestRoot)
	}
}

func TestLoadIgnoresEmptyTestRoot(t *testing.T) {
	t.Setenv(EnvTestRoot, "")

	cfg := Load()
	if cfg.TestRoot == "" {
		t.Error("expected a non-empty fallback test root when env var is blank")
	}
}

func TestApplySetsDefaultLoggerLevel(t *testing.T) {
	prev := logging.Default()
	t.Cleanup(func() { logging.SetDefault(prev) })
	logging.SetDefault(logging.NewLogger(nil))

	cfg := Config{LogLevel: logging.LevelError}
	cfg.Apply()

	if logging.Default().Level() != logging.LevelError {
		t.Errorf("expected default logger level error, got %v", logging.Default().Level())
	}
}
