package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LEDGERCHAT_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "openai", cfg.LLM.Provider)
	require.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	require.Equal(t, 10, cfg.Chat.HistoryLimit)
	require.Equal(t, 20, cfg.Chat.MaxTransactions)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Contains(t, cfg.Database.Path, "ledgerchat.db")
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.LLM.Provider = "gemini"
	cfg.LLM.Model = "gemini-2.5-flash"
	cfg.LLM.BaseURL = "http://localhost:1234/v1"
	cfg.LLM.Timeout = 45 * time.Second
	cfg.Chat.HistoryLimit = 6
	cfg.Log.Level = "debug"

	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "gemini", got.LLM.Provider)
	require.Equal(t, "gemini-2.5-flash", got.LLM.Model)
	require.Equal(t, "http://localhost:1234/v1", got.LLM.BaseURL)
	require.Equal(t, 45*time.Second, got.LLM.Timeout)
	require.Equal(t, 6, got.Chat.HistoryLimit)
	require.Equal(t, "debug", got.Log.Level)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, Save(path, Default()))
	t.Setenv("LEDGERCHAT_SERVER_ADDR", "127.0.0.1:9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[llm\nprovider ="), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestResolvedAPIKey(t *testing.T) {
	t.Setenv("TEST_LEDGERCHAT_KEY", "from-env")
	require.Equal(t, "inline", LLMConfig{APIKey: "inline", APIKeyEnv: "TEST_LEDGERCHAT_KEY"}.ResolvedAPIKey())
	require.Equal(t, "from-env", LLMConfig{APIKeyEnv: "TEST_LEDGERCHAT_KEY"}.ResolvedAPIKey())
	require.Empty(t, LLMConfig{}.ResolvedAPIKey())
}
