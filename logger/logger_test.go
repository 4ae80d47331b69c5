package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	t.Setenv(LOG_ENABLE, "30")

	DebugPrintf("hidden %d", 1)
	InfoPrintf("hidden %d", 2)
	WarningPrintf("shown %d", 3)
	CriticalObj("settings", map[string]string{"nrs": "4"})

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown 3")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "level=CRITICAL")
	assert.Contains(t, out, `nrs`)
}

func TestDefaultLevel(t *testing.T) {
	t.Setenv(LOG_ENABLE, "")
	assert.Equal(t, HPC_DEFAULT_LOGGING, LogLevel())
	t.Setenv(LOG_ENABLE, "10")
	assert.Equal(t, HPC_DEBUG_LOGGING, LogLevel())
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(LOG_PATH, dir)
	t.Setenv(LOG_ENABLE, "20")
	defer SetOutput(os.Stderr)

	require.NoError(t, OpenFile())
	Event(HPC_INFO_LOGGING, "launched", "entity", "db")

	data, err := os.ReadFile(filepath.Join(dir, logFilename))
	require.NoError(t, err)
	assert.Contains(t, string(data), "launched")
	assert.Contains(t, string(data), "entity=db")
}
