package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"ad_copy_planner/config"
	"ad_copy_planner/generator"
	"ad_copy_planner/history"
)

func newApp(out *bytes.Buffer) *cli.App {
	return &cli.App{
		Name:   "adplanner",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}},
		},
		Commands: []*cli.Command{
			ServeCommand(),
			ConfigCommand(),
			HistoryCommand(),
			CopiesCommand(),
		},
	}
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "adplanner.toml")
	content := "[llm]\nprovider = \"mock\"\n\n[history]\npath = \"" + filepath.ToSlash(filepath.Join(dir, "history.json")) + "\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuildLLM(t *testing.T) {
	llm, err := buildLLM(config.LLMConfig{Provider: "mock"})
	require.NoError(t, err)
	assert.IsType(t, generator.MockLLM{}, llm)

	_, err = buildLLM(config.LLMConfig{Provider: "anthropic"})
	assert.ErrorIs(t, err, generator.ErrMissingCredential)
	_, err = buildLLM(config.LLMConfig{Provider: "openai"})
	assert.ErrorIs(t, err, generator.ErrMissingCredential)

	llm, err = buildLLM(config.LLMConfig{Provider: "deepseek", APIKey: "k", BaseURL: "https://api.deepseek.com/v1", Model: "deepseek-chat"})
	require.NoError(t, err)
	assert.IsType(t, &generator.OpenAILLM{}, llm)

	_, err = buildLLM(config.LLMConfig{Provider: "gemini"})
	assert.Error(t, err)
}

func TestStylesFor(t *testing.T) {
	styles := stylesFor(2)
	require.Len(t, styles, 2)
	assert.NotEqual(t, styles[0].Name, styles[1].Name)
	assert.Equal(t, generator.DefaultStyles, stylesFor(3))
}

func TestBuildAgentRemoteBatches(t *testing.T) {
	var calls atomic.Int32
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/generate/stream", r.URL.Path)
		assert.Equal(t, "Bearer remote-secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"text":"[Variation 1]\nRemote copy one.\n[Change Point] Remote.\n---\n"}`)
		fmt.Fprintln(w, `{"text":"[Variation 2]\nRemote copy two.\n[Change Point] Remote.\n"}`)
		fmt.Fprintln(w, `{"done":true}`)
	}))
	defer remote.Close()

	cfg, err := config.Load(writeConfig(t, t.TempDir()))
	require.NoError(t, err)
	cfg.Generation.RemoteURL = remote.URL
	cfg.Generation.RemoteToken = "remote-secret"
	agent, err := buildAgent(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	s, err := agent.StartScript(ctx, generator.NewSession("s1", "local"), "Hello, buy now!")
	require.NoError(t, err)
	for _, text := range []string{"a", "b", "c"} {
		s, err = agent.Respond(ctx, s, text)
		require.NoError(t, err)
	}
	_, res, err := agent.Generate(ctx, s, nil)
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, res.Variations, 6)
	assert.Equal(t, "Remote copy one.", res.Variations[0].Body)
}

func TestConfigInitAndValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "adplanner.toml")
	var out bytes.Buffer

	require.NoError(t, newApp(&out).Run([]string{"adplanner", "config", "init", "-o", path}))
	assert.FileExists(t, path)
	assert.Error(t, newApp(&out).Run([]string{"adplanner", "config", "init", "-o", path}))

	out.Reset()
	require.NoError(t, newApp(&out).Run([]string{"adplanner", "-c", path, "config", "validate"}))
	assert.Contains(t, out.String(), "Configuration is valid")
}

func TestCopiesCommand(t *testing.T) {
	path := writeConfig(t, t.TempDir())
	var out bytes.Buffer
	require.NoError(t, newApp(&out).Run([]string{"adplanner", "-c", path, "copies", "coffee", "for", "commuters"}))
	assert.Contains(t, out.String(), "1. Idea 1:")

	assert.Error(t, newApp(&out).Run([]string{"adplanner", "-c", path, "copies"}))
}

func TestHistoryCommands(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir)

	store := history.NewStore(filepath.Join(dir, "history.json"), 0)
	s := generator.NewSession("s1", "local")
	s = s.WithSeed(generator.Seed{Kind: generator.SeedScript, Script: "Hello, buy now!"})
	s.Results = []generator.Variation{{Body: "Start your day right.", Rationale: "Benefit first."}}
	entry := history.NewEntry(s)
	require.NoError(t, store.Add(entry))

	var out bytes.Buffer
	require.NoError(t, newApp(&out).Run([]string{"adplanner", "-c", path, "history", "list"}))
	assert.Contains(t, out.String(), entry.ID)
	assert.Contains(t, out.String(), "Hello, buy now!")

	out.Reset()
	require.NoError(t, newApp(&out).Run([]string{"adplanner", "-c", path, "history", "export", entry.ID}))
	assert.Contains(t, out.String(), "Start your day right.")

	out.Reset()
	require.NoError(t, newApp(&out).Run([]string{"adplanner", "-c", path, "history", "list", "--tenant", "other"}))
	assert.NotContains(t, out.String(), entry.ID)

	require.NoError(t, newApp(&out).Run([]string{"adplanner", "-c", path, "history", "delete", entry.ID}))
	assert.Error(t, newApp(&out).Run([]string{"adplanner", "-c", path, "history", "delete", entry.ID}))
}
