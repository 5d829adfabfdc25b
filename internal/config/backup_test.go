package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupUserConfig_NoConfigReturnsEmpty(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := BackupUserConfig()
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestBackupUserConfig_CreatesAndRestores(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := NewConfig()
	cfg.Server.ListenAddr = ":1111"
	require.NoError(t, cfg.WriteYAML(GetUserConfigPath()))

	backupPath, err := BackupUserConfig()
	require.NoError(t, err)
	require.NotEmpty(t, backupPath)

	cfg.Server.ListenAddr = ":2222"
	require.NoError(t, cfg.WriteYAML(GetUserConfigPath()))

	require.NoError(t, RestoreUserConfig(backupPath))

	data, err := os.ReadFile(GetUserConfigPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), ":1111")
}

func TestListUserConfigBackups_KeepsOnlyMaxBackups(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := NewConfig()
	require.NoError(t, cfg.WriteYAML(GetUserConfigPath()))

	for i := 0; i < MaxBackups+2; i++ {
		_, err := BackupUserConfig()
		require.NoError(t, err)
	}

	backups, err := ListUserConfigBackups()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(backups), MaxBackups)
}
