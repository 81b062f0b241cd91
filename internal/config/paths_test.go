package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- ResolvePaths extended tests ---

func TestResolvePaths_AllFields(t *testing.T) {
	t.Setenv("AGENTLOOP_HOME", "")
	t.Setenv("AGENTLOOP_CONFIG", "")

	paths, err := ResolvePaths()
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".agentloop"), paths.Base)
	assert.Equal(t, filepath.Join(home, ".agentloop", "config.yaml"), paths.Config)
	assert.Equal(t, filepath.Join(home, ".agentloop", "credentials"), paths.Credentials)
	assert.Equal(t, filepath.Join(home, ".agentloop", "data"), paths.Data)
	assert.Equal(t, filepath.Join(home, ".agentloop", "models"), paths.Models)
}

func TestResolvePaths_CustomHomeAllFields(t *testing.T) {
	t.Setenv("AGENTLOOP_HOME", "/tmp/testal")
	t.Setenv("AGENTLOOP_CONFIG", "")

	paths, err := ResolvePaths()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/testal", paths.Base)
	assert.Equal(t, "/tmp/testal/config.yaml", paths.Config)
	assert.Equal(t, "/tmp/testal/credentials", paths.Credentials)
	assert.Equal(t, "/tmp/testal/data", paths.Data)
	assert.Equal(t, "/tmp/testal/models", paths.Models)
	assert.Equal(t, "/tmp/testal/data/knowledge.db", paths.KnowledgeDB())
	assert.Equal(t, "/tmp/testal/credentials/drive-token.json", paths.DriveToken())
}

func TestResolvePaths_ConfigOverride(t *testing.T) {
	t.Setenv("AGENTLOOP_HOME", "/tmp/testal")
	t.Setenv("AGENTLOOP_CONFIG", "/etc/agentloop.yaml")

	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, "/etc/agentloop.yaml", paths.Config)
	assert.Equal(t, "/tmp/testal", paths.Base)
}

func TestEnsureDirs_CreatesAll(t *testing.T) {
	tmpDir := t.TempDir()
	paths := Paths{
		Base:        tmpDir,
		Credentials: filepath.Join(tmpDir, "credentials"),
		Data:        filepath.Join(tmpDir, "data"),
		Models:      filepath.Join(tmpDir, "models"),
	}

	err := paths.EnsureDirs()
	require.NoError(t, err)

	for _, dir := range []string{paths.Base, paths.Credentials, paths.Data, paths.Models} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestEnsureDirs_Idempotent(t *testing.T) {
	tmpDir := t.TempDir()
	paths := Paths{
		Base:        tmpDir,
		Credentials: filepath.Join(tmpDir, "credentials"),
		Data:        filepath.Join(tmpDir, "data"),
		Models:      filepath.Join(tmpDir, "models"),
	}

	require.NoError(t, paths.EnsureDirs())
	require.NoError(t, paths.EnsureDirs()) // second call should succeed
}

func TestApplyPaths(t *testing.T) {
	paths := Paths{
		Credentials: "/x/credentials",
		Data:        "/x/data",
		Models:      "/x/models",
	}

	cfg := Defaults()
	cfg.Storage.CacheDir = "/custom/cache"
	cfg.ApplyPaths(paths)

	assert.Equal(t, "/custom/cache", cfg.Storage.CacheDir)
	assert.Equal(t, "/x/data/knowledge.db", cfg.Knowledge.DBPath)
	assert.Equal(t, "/x/credentials/drive-token.json", cfg.Tools.Drive.TokenFile)
}
