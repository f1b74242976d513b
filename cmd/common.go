package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"ad_copy_planner/config"
	"ad_copy_planner/generator"
	"ad_copy_planner/history"
)

// loadConfig 读取全局 --config 指定的配置并校验。
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || cfg.Log.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func buildLLM(cfg config.LLMConfig) (generator.LLMClient, error) {
	settings := &generator.LLMSettings{
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		MaxTokens: cfg.MaxTokens,
	}
	switch cfg.Provider {
	case "openai", "deepseek":
		// DeepSeek 走 OpenAI 兼容接口，base_url 已在 Validate 中检查。
		llm, err := generator.NewOpenAILLMFromConfig(settings)
		if err != nil {
			return nil, err
		}
		return llm, nil
	case "anthropic":
		llm, err := generator.NewAnthropicLLMFromConfig(settings)
		if err != nil {
			return nil, err
		}
		return llm, nil
	case "mock":
		return generator.MockLLM{}, nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.Provider)
	}
}

// stylesFor 返回前 n 个内置风格指令；n 的上限由 config.Validate 保证。
func stylesFor(n int) []generator.StyleDirective {
	return generator.DefaultStyles[:min(n, len(generator.DefaultStyles))]
}

func buildAgent(cfg *config.Config) (*generator.Agent, error) {
	llm, err := buildLLM(cfg.LLM)
	if err != nil {
		return nil, err
	}
	opts := []generator.AgentOption{
		generator.WithTracker(generator.Tracker{ReadyTurns: cfg.Readiness.ReadyTurns}),
		generator.WithStyles(stylesFor(cfg.Generation.Batches)),
		generator.WithBatchTimeout(cfg.Generation.BatchTimeout),
	}
	if cfg.Generation.RemoteURL != "" {
		log.Info().Str("remote_url", cfg.Generation.RemoteURL).Msg("generation batches use remote generator")
		opts = append(opts, generator.WithBatchSource(generator.HTTPBatchSource{
			BaseURL: cfg.Generation.RemoteURL,
			Token:   cfg.Generation.RemoteToken,
			Client:  &http.Client{},
		}))
	}
	return generator.NewAgent(llm, opts...)
}

func openHistory(cfg *config.Config) *history.Store {
	return history.NewStore(cfg.History.Path, cfg.History.Limit)
}
