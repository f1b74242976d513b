// Package config loads the service configuration: built-in defaults, an
// optional TOML file, then ADPLAN_ environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"ad_copy_planner/generator"
)

const envPrefix = "ADPLAN_"

// Config represents the application configuration
type Config struct {
	Server struct {
		Addr string `koanf:"addr"`
	} `koanf:"server"`

	LLM LLMConfig `koanf:"llm"`

	Generation struct {
		Batches int `koanf:"batches"`
		// BatchTimeout 为 0 表示不设超时。
		BatchTimeout time.Duration `koanf:"batch_timeout"`
		// RemoteURL 非空时批次通过该服务的 /api/generate/stream 生成。
		RemoteURL   string `koanf:"remote_url"`
		RemoteToken string `koanf:"remote_token"`
	} `koanf:"generation"`

	Readiness struct {
		ReadyTurns int `koanf:"ready_turns"`
	} `koanf:"readiness"`

	History struct {
		Path  string `koanf:"path"`
		Limit int    `koanf:"limit"`
	} `koanf:"history"`

	Database struct {
		URL string `koanf:"url"`
	} `koanf:"database"`

	Auth struct {
		JWTSecret string `koanf:"jwt_secret"`
	} `koanf:"auth"`

	Log struct {
		Level  string `koanf:"level"`
		Pretty bool   `koanf:"pretty"`
	} `koanf:"log"`
}

// LLMConfig 模型配置。
type LLMConfig struct {
	Provider  string `koanf:"provider"`
	Model     string `koanf:"model"`
	APIKey    string `koanf:"api_key"`
	BaseURL   string `koanf:"base_url"`
	MaxTokens int    `koanf:"max_tokens"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.addr":              ":8080",
		"llm.provider":             "anthropic",
		"llm.model":                "claude-sonnet-4-20250514",
		"llm.max_tokens":           4096,
		"generation.batches":       3,
		"generation.batch_timeout": "0s",
		"generation.remote_url":    "",
		"generation.remote_token":  "",
		"readiness.ready_turns":    3,
		"history.path":             "./data/history.json",
		"history.limit":            20,
		"log.level":                "info",
		"log.pretty":               false,
	}
}

// Load loads the configuration. An empty path tries the default locations.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		for _, path := range []string{"./adplanner.toml", "$HOME/.adplanner.toml"} {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("error loading config %s: %w", path, err)
			}
			break
		}
	}

	// ADPLAN_LLM__API_KEY -> llm.api_key；双下划线分隔层级，单下划线保留。
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration
func Validate(cfg *Config) error {
	switch cfg.LLM.Provider {
	case "openai", "deepseek", "anthropic", "mock":
	default:
		return fmt.Errorf("llm provider %q not supported", cfg.LLM.Provider)
	}
	if cfg.LLM.Provider == "deepseek" && cfg.LLM.BaseURL == "" {
		return fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
	}
	// 每个批次使用不同的风格指令，批次数不能超过内置风格数。
	if n := len(generator.DefaultStyles); cfg.Generation.Batches <= 0 || cfg.Generation.Batches > n {
		return fmt.Errorf("generation.batches must be between 1 and %d", n)
	}
	if u := cfg.Generation.RemoteURL; u != "" && !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return fmt.Errorf("generation.remote_url must be an http(s) URL")
	}
	if cfg.Generation.BatchTimeout < 0 {
		return fmt.Errorf("generation.batch_timeout must not be negative")
	}
	if cfg.Readiness.ReadyTurns <= 0 {
		return fmt.Errorf("readiness.ready_turns must be positive")
	}
	if cfg.History.Limit <= 0 {
		return fmt.Errorf("history.limit must be positive")
	}
	return nil
}

// InitConfig writes a sample configuration file.
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sample := `# Ad copy planner configuration

[server]
addr = ":8080"

[llm]
provider = "anthropic"   # anthropic | openai | deepseek | mock
model = "claude-sonnet-4-20250514"
api_key = "your-api-key"
max_tokens = 4096

[generation]
batches = 3
batch_timeout = "0s"     # 0 disables the per-batch timeout
remote_url = ""          # base URL of another adplanner serving /api/generate/stream; empty calls the LLM directly
remote_token = ""        # bearer token for remote_url

[readiness]
ready_turns = 3

[history]
path = "./data/history.json"
limit = 20

[database]
url = ""                 # postgres URL of the backend; empty uses in-memory storage

[auth]
jwt_secret = ""          # HS256 secret of the backend's access tokens; empty = single local tenant

[log]
level = "info"
pretty = false
`
	return os.WriteFile(configPath, []byte(sample), 0o644)
}
