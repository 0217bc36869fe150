package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesToOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, Init("debug", "json", dir))
	t.Cleanup(func() { require.NoError(t, Init("error", "json", "")) })

	Infow("[Test] structured", "key", "value")
	Sync()

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"[Test] structured"`)
	assert.Contains(t, string(data), `"key":"value"`)
}

func TestInitFallsBackToInfo(t *testing.T) {
	assert.NoError(t, Init("not-a-level", "console", ""))
	t.Cleanup(func() { require.NoError(t, Init("error", "json", "")) })
}
