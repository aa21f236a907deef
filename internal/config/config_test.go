package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, raw, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultTools, cfg.Tools)
	assert.Equal(t, 5, cfg.MaxPackages)
	assert.NotEmpty(t, cfg.BackupDir)

	// The raw bytes must round-trip, since they get embedded verbatim.
	var parsed Config
	require.NoError(t, yaml.Unmarshal(raw, &parsed))
	assert.Equal(t, cfg.Tools, parsed.Tools)
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "backup_dir: ~/syncs\nexclude_files: [\"*.sock\"]\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, raw, err := Load(path)
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, "syncs"), cfg.BackupDir)
	assert.Equal(t, DefaultTools, cfg.Tools)
	assert.Equal(t, 5, cfg.MaxPackages)
	assert.Equal(t, []string{"*.sock"}, cfg.ExcludeFiles)
	assert.Equal(t, []byte(content), raw)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tools: [unterminated"), 0o644))

	_, _, err := Load(path)
	assert.Error(t, err)
}

func TestToolEnabled(t *testing.T) {
	cfg := &Config{Tools: []string{"git", "ssh"}}
	assert.True(t, cfg.ToolEnabled("git"))
	assert.False(t, cfg.ToolEnabled("vscode"))
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, filepath.Join(home, "x"), ExpandHome("~/x"))
	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, "/absolute/path", ExpandHome("/absolute/path"))
	assert.Equal(t, "relative/~path", ExpandHome("relative/~path"))
}
