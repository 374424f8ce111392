package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chtemp(t *testing.T) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

func TestLoadDefaults(t *testing.T) {
	chtemp(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api-prod.corelogic.com", cfg.CoreLogic.BaseURL)
	assert.Equal(t, "https://secure.brivity.com/api/v2", cfg.Brivity.BaseURL)
	assert.Equal(t, "https://maps.googleapis.com", cfg.Maps.BaseURL)
	assert.Equal(t, 20, cfg.Flow.PromptDelaySecs)
	assert.Equal(t, "USA", cfg.Flow.DefaultCountry)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.CoreLogic.Configured())
}

func TestLoadConfigFile(t *testing.T) {
	chtemp(t)

	yaml := `
server:
  port: 9090
corelogic:
  client_key: file-key
  client_secret: file-secret
brivity:
  primary_agent_id: 42
flow:
  prompt_delay_secs: 5
`
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(wd, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "file-key", cfg.CoreLogic.ClientKey)
	assert.True(t, cfg.CoreLogic.Configured())
	assert.Equal(t, 42, cfg.Brivity.PrimaryAgentID)
	assert.Equal(t, 5, cfg.Flow.PromptDelaySecs)
	// Untouched keys keep their defaults.
	assert.Equal(t, "https://secure.brivity.com/api/v2", cfg.Brivity.BaseURL)
}

func TestLoadEnvOverrides(t *testing.T) {
	chtemp(t)

	t.Setenv("TPR_SERVER_PORT", "3000")
	t.Setenv("TPR_CORELOGIC_CLIENT_KEY", "env-key")
	t.Setenv("TPR_CORELOGIC_CLIENT_SECRET", "env-secret")
	t.Setenv("TPR_BRIVITY_API_TOKEN", "env-token")
	t.Setenv("TPR_BRIVITY_PRIMARY_AGENT_ID", "1234")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "env-key", cfg.CoreLogic.ClientKey)
	assert.Equal(t, "env-secret", cfg.CoreLogic.ClientSecret)
	assert.True(t, cfg.CoreLogic.Configured())
	assert.Equal(t, "env-token", cfg.Brivity.APIToken)
	assert.Equal(t, 1234, cfg.Brivity.PrimaryAgentID)
}

func TestLoadEnvBeatsFile(t *testing.T) {
	chtemp(t)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(wd, "config.yaml"), []byte("server:\n  port: 9090\n"), 0o644))
	t.Setenv("TPR_SERVER_PORT", "3000")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestRedacted(t *testing.T) {
	t.Parallel()

	cfg := Config{
		CoreLogic: CoreLogicConfig{ClientKey: "k", ClientSecret: "s", BaseURL: "https://example.com"},
		Brivity:   BrivityConfig{APIToken: "tok", PrimaryAgentID: 7},
	}

	got := cfg.Redacted()

	assert.Equal(t, "***", got.CoreLogic.ClientKey)
	assert.Equal(t, "***", got.CoreLogic.ClientSecret)
	assert.Equal(t, "***", got.Brivity.APIToken)
	assert.Equal(t, "https://example.com", got.CoreLogic.BaseURL)
	assert.Equal(t, 7, got.Brivity.PrimaryAgentID)
	// Original is untouched.
	assert.Equal(t, "k", cfg.CoreLogic.ClientKey)
}

func TestRedactedEmptySecretsStayEmpty(t *testing.T) {
	t.Parallel()

	got := Config{}.Redacted()

	assert.Empty(t, got.CoreLogic.ClientKey)
	assert.Empty(t, got.Brivity.APIToken)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
}

func TestInitLoggerBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "shouting", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
