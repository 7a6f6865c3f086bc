package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/dishahealth/coach/internal/budget"
	"github.com/dishahealth/coach/internal/chat"
	"github.com/dishahealth/coach/internal/prompt"
	"github.com/dishahealth/coach/internal/provider"
)

// Config is the top-level configuration structure.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Log      LogConfig      `json:"log"`
	Database DatabaseConfig `json:"database"`
	LLM      LLMConfig      `json:"llm"`
	Context  ContextConfig  `json:"context"`
	Memory   MemoryConfig   `json:"memory"`
}

type ServerConfig struct {
	Port        int      `json:"port"`
	CORSOrigins []string `json:"cors_origins"`
}

type LogConfig struct {
	Level string `json:"level"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type LLMConfig struct {
	Provider string   `json:"provider"`
	APIKey   string   `json:"api_key"`
	Model    string   `json:"model"`
	Endpoint string   `json:"endpoint"`
	Timeout  Duration `json:"timeout"`
}

type ContextConfig struct {
	MaxContextTokens    int `json:"max_context_tokens"`
	MaxResponseTokens   int `json:"max_response_tokens"`
	RecentHistoryWindow int `json:"recent_history_window"`
	FactsPerPrompt      int `json:"facts_per_prompt"`
	ProtocolsPerPrompt  int `json:"protocols_per_prompt"`
	ProtocolMatchCap    int `json:"protocol_match_cap"`
}

type MemoryConfig struct {
	ExtractEvery      int      `json:"extract_every"`
	ExtractionTimeout Duration `json:"extraction_timeout"`
}

// Duration is a time.Duration written as "30s" in JSON.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n int64
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("duration: %s", b)
		}
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file, substitutes environment variable
// references and fills in defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes config JSON after environment substitution.
func Parse(data []byte) (*Config, error) {
	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	cfg := Default()
	if err := json.Unmarshal([]byte(resolved), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used for absent keys.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8000, CORSOrigins: []string{"*"}},
		Log:    LogConfig{Level: "info"},
		LLM: LLMConfig{
			Provider: provider.TypeDemo,
			Timeout:  Duration(60 * time.Second),
		},
		Context: ContextConfig{
			MaxContextTokens:    8000,
			MaxResponseTokens:   1000,
			RecentHistoryWindow: 20,
			FactsPerPrompt:      prompt.MaxFacts,
			ProtocolsPerPrompt:  prompt.MaxProtocols,
			ProtocolMatchCap:    3,
		},
		Memory: MemoryConfig{
			ExtractEvery:      5,
			ExtractionTimeout: Duration(30 * time.Second),
		},
	}
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Port > 0 && c.Server.Port < 65536, "server.port %d out of range", c.Server.Port)
	switch c.LLM.Provider {
	case provider.TypeOpenAI, provider.TypeAnthropic:
		check(c.LLM.APIKey != "", "llm.api_key is required for provider %q", c.LLM.Provider)
	case provider.TypeDemo:
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q: %w", c.LLM.Provider, provider.ErrUnsupported))
	}
	check(c.LLM.Timeout >= 0, "llm.timeout must not be negative")

	cc := c.Context
	check(cc.MaxContextTokens > 0, "context.max_context_tokens must be positive")
	check(cc.MaxResponseTokens > 0, "context.max_response_tokens must be positive")
	check(cc.MaxResponseTokens < cc.MaxContextTokens, "context.max_response_tokens must be below max_context_tokens")
	check(cc.RecentHistoryWindow > 0, "context.recent_history_window must be positive")
	check(cc.FactsPerPrompt > 0 && cc.FactsPerPrompt <= prompt.MaxFacts,
		"context.facts_per_prompt must be in 1..%d", prompt.MaxFacts)
	check(cc.ProtocolsPerPrompt > 0 && cc.ProtocolsPerPrompt <= prompt.MaxProtocols,
		"context.protocols_per_prompt must be in 1..%d", prompt.MaxProtocols)
	check(cc.ProtocolMatchCap > 0, "context.protocol_match_cap must be positive")

	check(c.Memory.ExtractEvery >= 0, "memory.extract_every must not be negative")
	check(c.Memory.ExtractionTimeout >= 0, "memory.extraction_timeout must not be negative")

	return errors.Join(errs...)
}

// ProviderConfig returns the generation provider settings.
func (c *Config) ProviderConfig() provider.Config {
	return provider.Config{
		Type:     c.LLM.Provider,
		Endpoint: c.LLM.Endpoint,
		APIKey:   c.LLM.APIKey,
		Model:    c.LLM.Model,
		Timeout:  time.Duration(c.LLM.Timeout),
	}
}

// BudgetConfig returns the token budget settings.
func (c *Config) BudgetConfig() budget.Config {
	return budget.Config{
		MaxContextTokens:  c.Context.MaxContextTokens,
		MaxResponseTokens: c.Context.MaxResponseTokens,
	}
}

// ChatConfig returns the per-turn settings.
func (c *Config) ChatConfig() chat.Config {
	cfg := chat.DefaultConfig()
	cfg.HistoryWindow = c.Context.RecentHistoryWindow
	cfg.FactsPerPrompt = c.Context.FactsPerPrompt
	cfg.GenerationTimeout = time.Duration(c.LLM.Timeout)
	cfg.ExtractionTimeout = time.Duration(c.Memory.ExtractionTimeout)
	return cfg
}

// MatchCap is the number of protocols the matcher may return.
func (c *Config) MatchCap() int {
	return min(c.Context.ProtocolMatchCap, c.Context.ProtocolsPerPrompt)
}
