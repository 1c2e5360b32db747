package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, "123:abc", cfg.Bot.Token)
	assert.Equal(t, "@books921383837", cfg.Bot.ArchiveChannel)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "./shelfbot.db", cfg.Index.Path)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	content := "BOT_TOKEN=999:xyz\nARCHIVE_CHANNEL=-1001234\nSESSION_TTL=90m\nSEARCH_LIMIT=3\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0644))

	// godotenv does not override variables that are already set.
	for _, k := range []string{"BOT_TOKEN", "ARCHIVE_CHANNEL", "SESSION_TTL", "SEARCH_LIMIT"} {
		if v, ok := os.LookupEnv(k); ok {
			os.Unsetenv(k)
			t.Cleanup(func() { os.Setenv(k, v) })
		} else {
			t.Cleanup(func() { os.Unsetenv(k) })
		}
	}

	cfg := Load(envFile)
	assert.Equal(t, "999:xyz", cfg.Bot.Token)
	assert.Equal(t, "-1001234", cfg.Bot.ArchiveChannel)
	assert.Equal(t, 90*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 3, cfg.Bot.SearchLimit)
}

func TestValidate(t *testing.T) {
	t.Run("Missing token is fatal", func(t *testing.T) {
		t.Setenv("BOT_TOKEN", "")
		cfg := Load(filepath.Join(t.TempDir(), "none.env"))
		assert.ErrorIs(t, cfg.Validate(), ErrMissingToken)
	})

	t.Run("Redis backend requires URL", func(t *testing.T) {
		t.Setenv("BOT_TOKEN", "1:a")
		t.Setenv("SESSION_BACKEND", "redis")
		t.Setenv("REDIS_URL", "")
		cfg := Load(filepath.Join(t.TempDir(), "none.env"))
		assert.Error(t, cfg.Validate())
	})

	t.Run("Unknown backend", func(t *testing.T) {
		t.Setenv("BOT_TOKEN", "1:a")
		t.Setenv("SESSION_BACKEND", "etcd")
		cfg := Load(filepath.Join(t.TempDir(), "none.env"))
		assert.Error(t, cfg.Validate())
	})
}

func TestArchiveConfigured(t *testing.T) {
	assert.True(t, BotConfig{ArchiveChannel: "@library"}.ArchiveConfigured())
	assert.False(t, BotConfig{ArchiveChannel: ""}.ArchiveConfigured())
	assert.False(t, BotConfig{ArchiveChannel: PlaceholderArchive}.ArchiveConfigured())
}
