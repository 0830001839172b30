// Package config loads the mesh configuration.
//
// Precedence: defaults, then an optional YAML file, then environment
// variables. Every field is addressable as LEGALMESH_<SECTION>_<FIELD>, e.g.
// LEGALMESH_SERVER_ADDR or LEGALMESH_LLM_PROVIDER. The provider keys are
// also read from GOOGLE_API_KEY, OPENAI_API_KEY and ANTHROPIC_API_KEY.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/legalmesh/legal"
	"github.com/hupe1980/legalmesh/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LEGALMESH"

// Supported model providers.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ErrMissingAPIKey is returned by Validate when the selected provider has
// no key.
var ErrMissingAPIKey = errors.New("config: missing api key")

// providerKeyEnv maps providers to their conventional key variable.
var providerKeyEnv = map[string]string{
	ProviderGemini:    "GOOGLE_API_KEY",
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
}

// Config is the complete configuration.
type Config struct {
	LLM        LLMConfig        `yaml:"llm" env:"LLM"`
	Server     ServerConfig     `yaml:"server" env:"SERVER"`
	Delegate   DelegateConfig   `yaml:"delegate" env:"DELEGATE"`
	ToolServer ToolServerConfig `yaml:"toolserver" env:"TOOLSERVER"`
	Search     SearchConfig     `yaml:"search" env:"SEARCH"`
	Session    SessionConfig    `yaml:"session" env:"SESSION"`
	Workflow   WorkflowConfig   `yaml:"workflow" env:"WORKFLOW"`
	Log        LogConfig        `yaml:"log" env:"LOG"`
}

// LLMConfig selects the chat and embedding models.
type LLMConfig struct {
	Provider       string  `yaml:"provider" env:"PROVIDER"`
	Model          string  `yaml:"model" env:"MODEL"`
	EmbeddingModel string  `yaml:"embedding_model" env:"EMBEDDING_MODEL"`
	Temperature    float64 `yaml:"temperature" env:"TEMPERATURE"`
	APIKey         string  `yaml:"api_key" env:"API_KEY"`
	BaseURL        string  `yaml:"base_url" env:"BASE_URL"`
	// EmbeddingAPIKey is used when the provider has no embeddings API
	// (anthropic); embeddings then come from Gemini.
	EmbeddingAPIKey string `yaml:"embedding_api_key" env:"EMBEDDING_API_KEY"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	RateLimit       float64       `yaml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst       int           `yaml:"rate_burst" env:"RATE_BURST"`
}

// DelegateConfig configures both ends of the A2A remote delegate.
type DelegateConfig struct {
	Host string `yaml:"host" env:"HOST"`
	Port int    `yaml:"port" env:"PORT"`
	// CardURL is where the orchestrator finds the delegate. Empty disables
	// the remote delegate.
	CardURL   string `yaml:"card_url" env:"CARD_URL"`
	Streaming bool   `yaml:"streaming" env:"STREAMING"`
	OutputDir string `yaml:"output_dir" env:"OUTPUT_DIR"`
}

// ToolServerConfig configures the MCP tool server and its client.
type ToolServerConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
	Path string `yaml:"path" env:"PATH"`
	// URL is dialed by the delegate. Empty makes the delegate use
	// in-process tools.
	URL string `yaml:"url" env:"URL"`
}

// SearchConfig configures the SearxNG backend.
type SearchConfig struct {
	BaseURL    string   `yaml:"base_url" env:"BASE_URL"`
	Categories []string `yaml:"categories" env:"CATEGORIES"`
	Language   string   `yaml:"language" env:"LANGUAGE"`
	MaxResults int      `yaml:"max_results" env:"MAX_RESULTS"`
}

// SessionConfig selects the session store.
type SessionConfig struct {
	Backend       string        `yaml:"backend" env:"BACKEND"`
	RedisAddr     string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" env:"REDIS_DB"`
	TTL           time.Duration `yaml:"ttl" env:"TTL"`
}

// WorkflowConfig tunes the legal workflow.
type WorkflowConfig struct {
	DraftPolicy      string `yaml:"draft_policy" env:"DRAFT_POLICY"`
	MinContextLength int    `yaml:"min_context_length" env:"MIN_CONTEXT_LENGTH"`
	MaxModelCalls    int    `yaml:"max_model_calls" env:"MAX_MODEL_CALLS"`
	// Recall seeds the context slot with prior answers of the session.
	Recall bool `yaml:"recall" env:"RECALL"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:       ProviderGemini,
			Model:          "gemini-2.0-flash",
			EmbeddingModel: "text-embedding-004",
			Temperature:    0.2,
		},
		Server: ServerConfig{
			Addr:            ":9090",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       2,
			RateBurst:       5,
		},
		Delegate: DelegateConfig{
			Host:      "localhost",
			Port:      10001,
			CardURL:   "http://localhost:10001/.well-known/agent.json",
			OutputDir: ".",
		},
		ToolServer: ToolServerConfig{
			Addr: ":8080",
			Path: "/mcp",
			URL:  "http://localhost:8080/mcp",
		},
		Search: SearchConfig{
			BaseURL:    "http://localhost:8888",
			Categories: []string{"general"},
			MaxResults: 5,
		},
		Session: SessionConfig{
			Backend:   "memory",
			RedisAddr: "localhost:6379",
			TTL:       24 * time.Hour,
		},
		Workflow: WorkflowConfig{
			DraftPolicy:      string(legal.DraftAlways),
			MinContextLength: legal.DefaultMinContextLength,
			MaxModelCalls:    100,
			Recall:           true,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (optional; a missing file is not an error) and applies
// environment overrides. The result is not validated.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	if err := setFromEnv(reflect.ValueOf(cfg).Elem(), EnvPrefix, lookup); err != nil {
		return nil, err
	}

	if cfg.LLM.APIKey == "" {
		if v, ok := lookup(providerKeyEnv[strings.ToLower(cfg.LLM.Provider)]); ok {
			cfg.LLM.APIKey = v
		}
	}

	if cfg.LLM.EmbeddingAPIKey == "" {
		if v, ok := lookup(providerKeyEnv[ProviderGemini]); ok {
			cfg.LLM.EmbeddingAPIKey = v
		}
	}

	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	provider := strings.ToLower(c.LLM.Provider)

	env, ok := providerKeyEnv[provider]
	if !ok {
		return fmt.Errorf("config: unknown llm provider %q", c.LLM.Provider)
	}

	if c.LLM.APIKey == "" {
		return fmt.Errorf("%w: set %s or %s_LLM_API_KEY", ErrMissingAPIKey, env, EnvPrefix)
	}

	if provider == ProviderAnthropic && c.LLM.EmbeddingAPIKey == "" {
		return fmt.Errorf("%w: anthropic needs %s for embeddings", ErrMissingAPIKey, providerKeyEnv[ProviderGemini])
	}

	if _, err := legal.ParseDraftPolicy(c.Workflow.DraftPolicy); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	switch c.Session.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown session backend %q", c.Session.Backend)
	}

	if c.Delegate.Port <= 0 || c.Delegate.Port > 65535 {
		return fmt.Errorf("config: invalid delegate port %d", c.Delegate.Port)
	}

	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return errors.New("config: rate limit must not be negative")
	}

	return nil
}

// Logger builds the structured logger described by the log section.
func (c *Config) Logger() *logging.StructuredLogger {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		level = logging.LogLevelInfo
	}

	return logging.NewLogger(&logging.LoggerConfig{Level: level, Format: c.Log.Format, Output: os.Stderr})
}

func setFromEnv(v reflect.Value, prefix string, lookup func(string) (string, bool)) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)

		tag := t.Field(i).Tag.Get("env")
		if tag == "" || tag == "-" {
			continue
		}

		key := prefix + "_" + tag

		if field.Kind() == reflect.Struct {
			if err := setFromEnv(field, key, lookup); err != nil {
				return err
			}
			continue
		}

		value, ok := lookup(key)
		if !ok || value == "" {
			continue
		}

		if err := setField(field, value); err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
	}

	return nil
}

func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}

		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))
	default:
		return fmt.Errorf("unsupported kind %s", field.Kind())
	}

	return nil
}
