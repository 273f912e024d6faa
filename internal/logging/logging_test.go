package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithComponent(t *testing.T) {
	entry := Discard().WithComponent("view")
	assert.Equal(t, "view", entry.Data["component"])
}

func TestConfigure_InvalidLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	_, err := New(Config{Level: "loud"})
	assert.EqualError(t, err, "invalid log level 'loud'")
}

func TestConfigure_InvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	_, err := New(Config{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestConfigure_EnvLevelWins(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	l, err := New(Config{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
}

func TestConfigure_FileOutput(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "hyperadar.log")
	l, err := New(Config{Level: "info", Format: "json", Output: path, MaxSizeMB: 1})
	require.NoError(t, err)

	l.WithComponent("test").Info("hello")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
	assert.Contains(t, string(data), `"message":"hello"`)
}
