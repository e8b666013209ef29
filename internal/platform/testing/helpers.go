package testing

import (
	"path/filepath"
	"testing"

	"aeye-server-go/internal/platform/config"
	"aeye-server-go/internal/platform/logging"
)

// SetupTestConfig returns defaults rooted in a temp dir with every delay zeroed.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Server.IP = "127.0.0.1"
	cfg.Server.Port = 18000
	cfg.Log.Level = "debug"
	cfg.Log.Dir = filepath.Join(dir, "logs")
	cfg.Log.File = "test.log"
	cfg.Web.StaticDir = filepath.Join(dir, "web")
	cfg.Database.DSN = filepath.Join(dir, "aeye.db")
	cfg.Artifacts.Dir = filepath.Join(dir, "media")
	cfg.Oracle.MinLatency = 0
	cfg.Oracle.MaxLatency = 0
	cfg.Pipeline.SimulatedDelayMax = 0
	cfg.Telemetry.Enabled = false
	cfg.Redis.Enabled = false
	return cfg
}

func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	cfg := SetupTestConfig(t)
	logger, err := logging.New(cfg.Log)
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })

	return logger
}
