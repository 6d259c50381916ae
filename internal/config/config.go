// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package config

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	docerr "github.com/docent-dev/docent/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the top-level Docent configuration.
type Config struct {
	DataDir    string                    `mapstructure:"data_dir"`
	Verbose    bool                      `mapstructure:"verbose"`
	Server     ServerConfig              `mapstructure:"server"`
	Storage    StorageConfig             `mapstructure:"storage"`
	Embedding  EmbeddingConfig           `mapstructure:"embedding"`
	Generation GenerationConfig          `mapstructure:"generation"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Memory     MemoryConfig              `mapstructure:"memory"`
	Retrieval  RetrievalConfig           `mapstructure:"retrieval"`
	Watch      WatchConfig               `mapstructure:"watch"`
	Guard      GuardConfig               `mapstructure:"guard"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	// Per-IP chat throttle; zero requests per minute disables it.
	ChatRequestsPerMinute int `mapstructure:"chat_requests_per_minute"`
	ChatBurst             int `mapstructure:"chat_burst"`
}

// StorageConfig selects the corpus backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
}

// EmbeddingConfig selects the embedding model.
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// GenerationConfig selects the answer and summary model.
type GenerationConfig struct {
	Default     string   `mapstructure:"default"`
	Failover    []string `mapstructure:"failover"`
	MaxTokens   int      `mapstructure:"max_tokens"`
	Temperature float64  `mapstructure:"temperature"`
}

// ProviderConfig holds credentials and endpoint for an LLM provider.
type ProviderConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// MemoryConfig bounds per-document conversation state.
type MemoryConfig struct {
	MaxTurns        int           `mapstructure:"max_turns"`
	IdleTTL         time.Duration `mapstructure:"idle_ttl"`
	MaxDocuments    int           `mapstructure:"max_documents"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`
}

// RetrievalConfig tunes search and attribution.
type RetrievalConfig struct {
	TopK              int `mapstructure:"top_k"`
	AttributionPrefix int `mapstructure:"attribution_prefix"`
}

// WatchConfig controls the bundle inbox.
type WatchConfig struct {
	Dir     string `mapstructure:"dir"`
	Extract bool   `mapstructure:"extract"`
}

// GuardConfig selects how document text and questions are screened:
// off, flag, redact or block.
type GuardConfig struct {
	Documents string `mapstructure:"documents"`
	Questions string `mapstructure:"questions"`
}

// Known provider and backend names.
var (
	GenerationProviders = []string{"openai", "anthropic", "google"}
	EmbeddingProviders  = []string{"openai", "google", "hash"}
	StorageBackends     = []string{"sqlite", "postgres", "memory"}
	GuardModes          = []string{"off", "flag", "redact", "block"}
)

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("verbose", false)
	v.SetDefault("server.listen", "127.0.0.1:8080")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.chat_requests_per_minute", 30)
	v.SetDefault("server.chat_burst", 5)
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("generation.default", "openai/gpt-4o-mini")
	v.SetDefault("generation.max_tokens", 1024)
	v.SetDefault("generation.temperature", 0.2)
	v.SetDefault("memory.max_turns", 3)
	v.SetDefault("memory.idle_ttl", 30*time.Minute)
	v.SetDefault("memory.max_documents", 1024)
	v.SetDefault("memory.janitor_interval", time.Minute)
	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.attribution_prefix", 60)
	v.SetDefault("guard.documents", "redact")
	v.SetDefault("guard.questions", "flag")
}

// New returns a viper instance with defaults and DOCENT_ environment
// overrides applied.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("DOCENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from path (or defaults only when empty) with
// environment variable overrides (prefix DOCENT_).
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, docerr.Wrapf(err, docerr.CodeConfigLoadReadFailure, "reading config %s", path)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, docerr.Wrap(err, docerr.CodeConfigParseInvalidFormat, "unmarshalling config")
	}
	cfg.applyDerived()

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, docerr.Wrap(errors.Join(errs...), docerr.CodeConfigValidateInvalidValue, "validating config")
	}
	return &cfg, nil
}

func (c *Config) applyDerived() {
	if c.Storage.Backend == "sqlite" && c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "rag.db")
	}
	if c.Providers == nil {
		c.Providers = map[string]ProviderConfig{}
	}
	// OPENAI_API_KEY is honoured when no key is configured.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		p := c.Providers["openai"]
		if p.APIKey == "" {
			p.APIKey = key
			c.Providers["openai"] = p
		}
	}
}

// Validate checks the configuration for logical errors and returns all of
// them rather than stopping at the first.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateGeneration()...)
	errs = append(errs, c.validateMemory()...)
	errs = append(errs, c.validateRetrieval()...)
	errs = append(errs, c.validateGuard()...)

	return errs
}

func invalid(format string, args ...any) error {
	return docerr.Errorf(docerr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		return append(errs, invalid("server.listen must not be empty"))
	}
	_, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		return append(errs, invalid("server.listen must be a valid host:port address, got %q: %v", c.Server.Listen, err))
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, invalid("server.listen port must be a number, got %q", portStr))
	} else if port < 1 || port > 65535 {
		errs = append(errs, invalid("server.listen port must be between 1 and 65535, got %d", port))
	}
	if c.Server.ChatRequestsPerMinute < 0 {
		errs = append(errs, invalid("server.chat_requests_per_minute must not be negative, got %d", c.Server.ChatRequestsPerMinute))
	} else if c.Server.ChatRequestsPerMinute > 0 && c.Server.ChatBurst <= 0 {
		errs = append(errs, invalid("server.chat_burst must be greater than 0 when chat_requests_per_minute is set"))
	}
	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	if !slices.Contains(StorageBackends, c.Storage.Backend) {
		errs = append(errs, invalid("storage.backend must be one of %v, got %q", StorageBackends, c.Storage.Backend))
	}
	if c.Storage.Backend == "postgres" && c.Storage.DSN == "" {
		errs = append(errs, invalid("storage.dsn is required for the postgres backend"))
	}
	return errs
}

func (c *Config) validateEmbedding() []error {
	var errs []error

	if !slices.Contains(EmbeddingProviders, c.Embedding.Provider) {
		errs = append(errs, invalid("embedding.provider must be one of %v, got %q", EmbeddingProviders, c.Embedding.Provider))
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, invalid("embedding.dimensions must be greater than 0, got %d", c.Embedding.Dimensions))
	}
	return errs
}

func (c *Config) validateGeneration() []error {
	var errs []error

	refs := append([]string{c.Generation.Default}, c.Generation.Failover...)
	for i, ref := range refs {
		name := "generation.default"
		if i > 0 {
			name = "generation.failover[" + strconv.Itoa(i-1) + "]"
		}
		provider, model, ok := strings.Cut(ref, "/")
		if !ok || provider == "" || model == "" {
			errs = append(errs, invalid("%s must be in \"provider/model\" format, got %q", name, ref))
			continue
		}
		if !slices.Contains(GenerationProviders, provider) {
			errs = append(errs, invalid("%s references unknown provider %q", name, provider))
		}
	}

	if c.Generation.MaxTokens < 0 {
		errs = append(errs, invalid("generation.max_tokens must not be negative, got %d", c.Generation.MaxTokens))
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		errs = append(errs, invalid("generation.temperature must be between 0 and 2, got %g", c.Generation.Temperature))
	}
	return errs
}

func (c *Config) validateMemory() []error {
	var errs []error

	if c.Memory.MaxTurns <= 0 {
		errs = append(errs, invalid("memory.max_turns must be greater than 0, got %d", c.Memory.MaxTurns))
	}
	if c.Memory.IdleTTL < 0 {
		errs = append(errs, invalid("memory.idle_ttl must not be negative, got %s", c.Memory.IdleTTL))
	}
	if c.Memory.MaxDocuments < 0 {
		errs = append(errs, invalid("memory.max_documents must not be negative, got %d", c.Memory.MaxDocuments))
	}
	if c.Memory.IdleTTL > 0 && c.Memory.JanitorInterval <= 0 {
		errs = append(errs, invalid("memory.janitor_interval must be greater than 0 when memory.idle_ttl is set"))
	}
	return errs
}

func (c *Config) validateRetrieval() []error {
	var errs []error

	if c.Retrieval.TopK <= 0 {
		errs = append(errs, invalid("retrieval.top_k must be greater than 0, got %d", c.Retrieval.TopK))
	}
	if c.Retrieval.AttributionPrefix <= 0 {
		errs = append(errs, invalid("retrieval.attribution_prefix must be greater than 0, got %d", c.Retrieval.AttributionPrefix))
	}
	return errs
}

func (c *Config) validateGuard() []error {
	var errs []error

	if !slices.Contains(GuardModes, c.Guard.Documents) {
		errs = append(errs, invalid("guard.documents must be one of %v, got %q", GuardModes, c.Guard.Documents))
	}
	if !slices.Contains(GuardModes, c.Guard.Questions) {
		errs = append(errs, invalid("guard.questions must be one of %v, got %q", GuardModes, c.Guard.Questions))
	}
	return errs
}

// ProviderFromModel extracts the provider prefix from a "provider/model" string.
func ProviderFromModel(model string) string {
	if idx := strings.Index(model, "/"); idx > 0 {
		return model[:idx]
	}
	return model
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docent"
	}
	return filepath.Join(home, ".local", "share", "docent")
}
