package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(&LogCfg{LogLevel: "debug", LogDir: t.TempDir(), LogFile: "test.log"})
	require.NoError(t, err)
	assert.NoError(t, logger.Close())
	assert.NoError(t, logger.Close())
}

func TestLogger_LevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(&LogCfg{LogLevel: "warn", LogDir: dir, LogFile: "warn.log"})
	require.NoError(t, err)

	logger.Info("hidden info line")
	logger.WarnTag("Pipeline", "stage %s rejected", "form")
	require.NoError(t, logger.Close())

	content, err := os.ReadFile(filepath.Join(dir, "warn.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(content), "hidden info line")
	assert.Contains(t, string(content), "[Pipeline] stage form rejected")
}

func TestLogger_StructuredFields(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(&LogCfg{LogLevel: "info", LogDir: dir, LogFile: "fields.log"})
	require.NoError(t, err)

	logger.Info("report stored", map[string]interface{}{"report_id": 7, "camera": "Canon CX-1"})
	require.NoError(t, logger.Close())

	content, err := os.ReadFile(filepath.Join(dir, "fields.log"))
	require.NoError(t, err)
	assert.Contains(t, string(content), `"report_id":7`)
	assert.Contains(t, string(content), `"camera":"Canon CX-1"`)
}

func TestLogger_NilReceiver(t *testing.T) {
	var logger *Logger
	assert.NotPanics(t, func() {
		logger.InfoTag("Boot", "nothing")
		logger.Error("nothing %d", 1)
		_ = logger.Close()
	})
}

func TestFormatLog(t *testing.T) {
	assert.Equal(t, "[Boot] started", FormatLog("Boot", "started"))
	assert.Equal(t, "[HTTP] already tagged", FormatLog("Boot", "[HTTP] already tagged"))
	assert.Equal(t, "plain", FormatLog("", " plain "))
}

func TestMetricSafe(t *testing.T) {
	assert.Equal(t, "Topcon_NW400", MetricSafe("Topcon NW400"))
	assert.Equal(t, "a_b_c", MetricSafe("a,b=c"))
	assert.Equal(t, "Zeiss_Visucam_X", MetricSafe(" Zeiss\nVisucam\tX\r"))
}
