package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g4s", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("username: alice\ngoogle:\n  calendar_id: school@group.calendar.google.com\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, "school@group.calendar.google.com", cfg.Google.CalendarID)
	assert.Equal(t, "token.json", cfg.Google.TokenFile)
	assert.Equal(t, "Greenwich", cfg.TimeZone)
	assert.Nil(t, cfg.GitHub)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("username: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveNeverWritesPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Username = "alice"
	cfg.Password = "hunter2"
	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
	assert.Contains(t, string(data), "alice")
}

func TestInitAppliesEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("username: from-file\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(EnvPassword+"=from-dotenv\n"), 0o600))
	t.Setenv(EnvUsername, "from-env")
	// Registers cleanup, then unset so the .env value is applied.
	t.Setenv(EnvPassword, "")
	require.NoError(t, os.Unsetenv(EnvPassword))

	cfg, err := Init(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Username)
	assert.Equal(t, "from-dotenv", cfg.Password)
	assert.Equal(t, filepath.Join(dir, "token.json"), cfg.Google.TokenFile)
	assert.Equal(t, filepath.Join(dir, "g4s.ics"), cfg.ExportPath)
}

func TestInitResolvesPathsBesideConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	abs := filepath.Join(t.TempDir(), "public", "school.ics")
	content := "export_path: " + abs + "\ngoogle:\n  token_file: secrets/token.json\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Init(path)
	require.NoError(t, err)
	assert.Equal(t, abs, cfg.ExportPath)
	assert.Equal(t, filepath.Join(dir, "secrets", "token.json"), cfg.Google.TokenFile)
}
