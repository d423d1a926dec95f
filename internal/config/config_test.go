package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"port": 8080, "db_path": "./data/keyforge.db"}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, "local", cfg.FileStore.Type)
	require.Equal(t, 64, cfg.Realtime.SendQueueSize)
	require.Equal(t, 1024, cfg.UserCache.Size)
	require.Equal(t, 300, cfg.UserCache.TTLSeconds)
	require.False(t, cfg.Cleanup.Enable)
}

func TestLoadCleanupDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"db_path": "./data/keyforge.db",
		"cleanup": {"enable": true}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0 4 * * *", cfg.Cleanup.Spec)
	require.Equal(t, 30, cfg.Cleanup.RetentionDays)
}

func TestLoadRejectsMissingFields(t *testing.T) {
	_, err := Load(writeConfig(t, `{"port": 8080}`))
	require.Error(t, err)

	_, err = Load(writeConfig(t, `{"db_path": "./x.db"}`))
	require.Error(t, err)

	_, err = Load(writeConfig(t, `{not json`))
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
