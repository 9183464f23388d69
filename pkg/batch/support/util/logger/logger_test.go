package logger_test

import (
	"bytes"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	logger.SetOutput(buf)
	previous := logger.GetLogLevel()
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
		logger.SetLogLevel(previous.String())
	})
	log.SetFlags(0)
	return buf
}

func TestParseLevel(t *testing.T) {
	cases := map[string]logger.LogLevel{
		"debug":  logger.LevelDebug,
		"TRACE":  logger.LevelDebug,
		"info":   logger.LevelInfo,
		"Warn":   logger.LevelWarn,
		"ERROR":  logger.LevelError,
		"silent": logger.LevelFatal,
	}
	for in, want := range cases {
		got, err := logger.ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := logger.ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t)

	logger.SetLogLevel("WARN")
	logger.Infof("hidden %d", 1)
	logger.Warnf("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown 2")
}

func TestUnitLoggerPrefix(t *testing.T) {
	buf := captureOutput(t)
	logger.SetLogLevel("DEBUG")

	logger.ForUnit(77, "42").Debugf("queued %d rows", 2)
	logger.ForUnit(77, "").Infof("claimed")

	out := buf.String()
	assert.Contains(t, out, "[DEBUG] [wfiid=77 message_id=42] queued 2 rows")
	assert.Contains(t, out, "[INFO] [wfiid=77] claimed")
}
