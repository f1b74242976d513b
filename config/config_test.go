package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.Generation.Batches)
	assert.Equal(t, time.Duration(0), cfg.Generation.BatchTimeout)
	assert.Equal(t, 3, cfg.Readiness.ReadyTurns)
	assert.Equal(t, 20, cfg.History.Limit)
	require.NoError(t, Validate(cfg))
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "adplanner.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[llm]
provider = "openai"
model = "gpt-4o-mini"

[generation]
batch_timeout = "90s"

[history]
limit = 5
`), 0o644))
	t.Setenv("ADPLAN_LLM__API_KEY", "sk-test")
	t.Setenv("ADPLAN_READINESS__READY_TURNS", "4")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 90*time.Second, cfg.Generation.BatchTimeout)
	assert.Equal(t, 5, cfg.History.Limit)
	assert.Equal(t, 4, cfg.Readiness.ReadyTurns)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.LLM.Provider = "cohere"
	assert.ErrorContains(t, Validate(cfg), "not supported")

	cfg.LLM.Provider = "deepseek"
	assert.ErrorContains(t, Validate(cfg), "base_url")

	cfg.LLM.Provider = "mock"
	cfg.Generation.Batches = 4
	assert.ErrorContains(t, Validate(cfg), "generation.batches")
	cfg.Generation.Batches = 3
	require.NoError(t, Validate(cfg))

	cfg.Generation.RemoteURL = "ftp://gen.internal"
	assert.ErrorContains(t, Validate(cfg), "remote_url")
	cfg.Generation.RemoteURL = "http://gen.internal:8080"
	require.NoError(t, Validate(cfg))

	cfg.History.Limit = 0
	assert.ErrorContains(t, Validate(cfg), "history.limit")
}

func TestLoad_BrokenDefaultFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "adplanner.toml"), []byte("[llm\nprovider = "), 0o644))

	_, err := Load("")
	assert.ErrorContains(t, err, "adplanner.toml")
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adplanner.toml")
	require.NoError(t, InitConfig(path))
	assert.Error(t, InitConfig(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "your-api-key", cfg.LLM.APIKey)
}
