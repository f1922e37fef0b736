package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, ws string, debug bool) {
	t.Helper()
	dir := filepath.Join(ws, ".nerd")
	require.NoError(t, os.MkdirAll(dir, 0755))
	data := `{"logging":{"debug_mode":true,"level":"debug"}}`
	if !debug {
		data = `{"logging":{"debug_mode":false}}`
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(data), 0644))
}

func TestInitializeProductionModeIsNoop(t *testing.T) {
	ws := t.TempDir()
	writeConfig(t, ws, false)
	require.NoError(t, Initialize(ws))
	_, err := os.Stat(filepath.Join(ws, ".nerd", "logs"))
	require.True(t, os.IsNotExist(err))
}

func TestInitializeDebugModeCreatesLogs(t *testing.T) {
	ws := t.TempDir()
	writeConfig(t, ws, true)
	require.NoError(t, Initialize(ws))
	t.Cleanup(CloseAll)

	l := Get(CategoryBelief)
	l.Info("hello %s", "world")

	entries, err := os.ReadDir(filepath.Join(ws, ".nerd", "logs"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

func TestTimerStopWithThreshold(t *testing.T) {
	ws := t.TempDir()
	writeConfig(t, ws, true)
	require.NoError(t, Initialize(ws))
	t.Cleanup(CloseAll)

	timer := StartTimer(CategoryMemory, "test-op")
	elapsed := timer.StopWithThreshold(0)
	require.GreaterOrEqual(t, elapsed.Nanoseconds(), int64(0))
}
