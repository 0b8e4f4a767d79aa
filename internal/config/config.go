package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTP struct {
		Addr         string
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
	}
	Log struct {
		Mode  string
		Level string
	}
	LLM struct {
		Provider       string // "anthropic", "openai", "openai-compatible", "gemini", or "" (disabled)
		Model          string
		APIKey         string
		BaseURL        string
		MaxTokens      int
		CallTimeout    time.Duration
		MaxAttempts    int
		InitialBackoff time.Duration
		MaxBackoff     time.Duration
	}
	Generation struct {
		RequireSampleJSON bool
		DummyData         bool
		PromptsDir        string
		Timeout           time.Duration // budget for one request's whole pipeline run
	}
	DB struct {
		Driver string // empty disables generation history
		DSN    string
	}
}

// providerKeyEnv maps providers to the credential variable their SDKs read by
// convention. It is consulted when TSMITH_LLM_API_KEY is unset.
var providerKeyEnv = map[string]string{
	"anthropic":         "ANTHROPIC_API_KEY",
	"openai":            "OPENAI_API_KEY",
	"openai-compatible": "OPENAI_API_KEY",
	"gemini":            "GEMINI_API_KEY",
}

// Load reads config from environment (TSMITH_ prefix) and optional templatesmith.yaml.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TSMITH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigName("templatesmith")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional config file

	setDefaults(v)
	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", "30s")
	v.SetDefault("http.write_timeout", "10m")
	v.SetDefault("log.mode", "production")
	v.SetDefault("log.level", "info")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.call_timeout", "120s")
	v.SetDefault("llm.max_attempts", 3)
	v.SetDefault("llm.initial_backoff", "1s")
	v.SetDefault("llm.max_backoff", "10s")
	v.SetDefault("generation.require_sample_json", true)
	v.SetDefault("generation.dummy_data", true)
	v.SetDefault("generation.timeout", "9m")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Addr = v.GetString("http.addr")
	cfg.Log.Mode = v.GetString("log.mode")
	cfg.Log.Level = v.GetString("log.level")
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(v.GetString("llm.provider")))
	cfg.LLM.Model = v.GetString("llm.model")
	cfg.LLM.APIKey = v.GetString("llm.api_key")
	cfg.LLM.BaseURL = v.GetString("llm.base_url")
	cfg.LLM.MaxTokens = v.GetInt("llm.max_tokens")
	cfg.LLM.MaxAttempts = v.GetInt("llm.max_attempts")
	cfg.Generation.RequireSampleJSON = v.GetBool("generation.require_sample_json")
	cfg.Generation.DummyData = v.GetBool("generation.dummy_data")
	cfg.Generation.PromptsDir = v.GetString("generation.prompts_dir")
	cfg.DB.Driver = v.GetString("db.driver")
	cfg.DB.DSN = v.GetString("db.dsn")

	if cfg.LLM.APIKey == "" {
		if env, ok := providerKeyEnv[cfg.LLM.Provider]; ok {
			cfg.LLM.APIKey = os.Getenv(env)
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"http.read_timeout", &cfg.HTTP.ReadTimeout},
		{"http.write_timeout", &cfg.HTTP.WriteTimeout},
		{"llm.call_timeout", &cfg.LLM.CallTimeout},
		{"llm.initial_backoff", &cfg.LLM.InitialBackoff},
		{"llm.max_backoff", &cfg.LLM.MaxBackoff},
		{"generation.timeout", &cfg.Generation.Timeout},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(v.GetString(d.key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", envName(d.key), err)
		}
		*d.dst = parsed
	}

	if cfg.LLM.MaxAttempts < 1 {
		return nil, fmt.Errorf("%s must be at least 1", envName("llm.max_attempts"))
	}
	if cfg.LLM.CallTimeout <= 0 {
		return nil, fmt.Errorf("%s must be positive", envName("llm.call_timeout"))
	}
	// The pipeline budget must expire before the server's write deadline.
	if cfg.Generation.Timeout <= 0 {
		return nil, fmt.Errorf("%s must be positive", envName("generation.timeout"))
	}
	if cfg.HTTP.WriteTimeout > 0 && cfg.Generation.Timeout >= cfg.HTTP.WriteTimeout {
		return nil, fmt.Errorf("%s (%s) must be shorter than %s (%s)",
			envName("generation.timeout"), cfg.Generation.Timeout,
			envName("http.write_timeout"), cfg.HTTP.WriteTimeout)
	}
	if cfg.LLM.CallTimeout > cfg.Generation.Timeout {
		return nil, fmt.Errorf("%s (%s) must not exceed %s (%s)",
			envName("llm.call_timeout"), cfg.LLM.CallTimeout,
			envName("generation.timeout"), cfg.Generation.Timeout)
	}
	if cfg.DB.Driver != "" && cfg.DB.DSN == "" {
		return nil, fmt.Errorf("TSMITH_DB_DSN is required when TSMITH_DB_DRIVER is set")
	}

	return cfg, nil
}

// HasCredential reports whether a provider is configured together with an API
// key. A missing credential does not stop the server; it is surfaced through
// the health endpoint instead.
func (c *Config) HasCredential() bool {
	return c.LLM.Provider != "" && c.LLM.APIKey != ""
}

func envName(key string) string {
	return "TSMITH_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
