// Package config loads and persists the store configuration (keep.toml)
// and resolves the store directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/keepstore/keep/internal/model"
)

const (
	// FileName is the configuration file inside the store directory.
	FileName = "keep.toml"

	// DirName is the store directory discovered by walking upward from
	// the working directory.
	DirName = ".keep"

	// EnvHome overrides store-directory discovery.
	EnvHome = "KEEP_HOME"

	// EnvTagPrefix marks environment variables that become auto-applied
	// tags on every write.
	EnvTagPrefix = "KEEP_TAG_"

	// EnvNoIntegrations suppresses integration auto-install checks.
	EnvNoIntegrations = "KEEP_NO_INTEGRATIONS"
)

// DefaultMaxSummaryLength caps stored summaries; longer content is stored
// with a truncated placeholder and summarized in the background.
const DefaultMaxSummaryLength = 500

// DefaultHalfLifeDays is the recency-decay half-life applied at query time.
const DefaultHalfLifeDays = 30.0

// SchemaVersion is the compiled-in configuration schema version.
const SchemaVersion = 1

// ProviderConfig selects a provider implementation by registry name plus a
// free-form parameter bag.
type ProviderConfig struct {
	Name    string            `toml:"name"`
	Options map[string]string `toml:"options,omitempty"`
}

// Config is the persisted store configuration.
type Config struct {
	SchemaVersion     int                `toml:"schema_version"`
	Embedding         ProviderConfig     `toml:"embedding"`
	Summarization     ProviderConfig     `toml:"summarization"`
	DefaultTags       map[string]string  `toml:"default_tags,omitempty"`
	MaxSummaryLength  int                `toml:"max_summary_length"`
	HalfLifeDays      float64            `toml:"half_life_days"`
	SystemDocsVersion int                `toml:"system_docs_version"`
	Integrations      map[string]bool    `toml:"integrations,omitempty"`
	Identity          *model.EmbeddingIdentity `toml:"embedding_identity,omitempty"`
}

// Default returns a configuration with compiled-in defaults and no
// provider selection.
func Default() *Config {
	return &Config{
		SchemaVersion:    SchemaVersion,
		MaxSummaryLength: DefaultMaxSummaryLength,
		HalfLifeDays:     DefaultHalfLifeDays,
		Integrations:     map[string]bool{},
	}
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.SchemaVersion, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxSummaryLength, validation.Required, validation.Min(1)),
		validation.Field(&c.Embedding, validation.Required),
	); err != nil {
		return err
	}
	if c.Embedding.Name == "" {
		return fmt.Errorf("config: embedding provider name is required")
	}
	if c.Identity != nil && c.Identity.Dimension <= 0 {
		return fmt.Errorf("config: embedding identity has invalid dimension %d", c.Identity.Dimension)
	}
	return nil
}

// Discover resolves the store directory: the KEEP_HOME override if set,
// else the nearest .keep directory walking upward from the working
// directory, else ~/.keep.
func Discover() (string, error) {
	if env := os.Getenv(EnvHome); env != "" {
		return env, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("config: resolve working directory: %w", err)
	}
	for dir := cwd; ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, DirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		if dir == filepath.Dir(dir) {
			break
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Load reads keep.toml from the store directory. A missing file yields
// defaults with auto-detected providers, persisted so subsequent runs are
// deterministic.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		AutoDetect(cfg)
		if err := Save(dir, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes keep.toml into the store directory, creating it if needed.
func Save(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: create store dir: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, FileName))
	if err != nil {
		return fmt.Errorf("config: write %s: %w", FileName, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("config: encode %s: %w", FileName, err)
	}
	return nil
}

// AutoDetect fills empty provider selections by probing environment
// variables and local capabilities, best first.
func AutoDetect(cfg *Config) {
	if cfg.Embedding.Name == "" {
		switch {
		case os.Getenv("OPENAI_API_KEY") != "":
			cfg.Embedding = ProviderConfig{Name: "openai"}
		default:
			cfg.Embedding = ProviderConfig{Name: "ollama"}
		}
	}
	if cfg.Summarization.Name == "" {
		switch {
		case os.Getenv("ANTHROPIC_API_KEY") != "":
			cfg.Summarization = ProviderConfig{Name: "anthropic"}
		default:
			cfg.Summarization = ProviderConfig{Name: "ollama"}
		}
	}
}

// EnvTags collects KEEP_TAG_* environment variables as auto-applied tags.
// The key is the lowercased suffix after the prefix.
func EnvTags() map[string]string {
	tags := map[string]string{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, EnvTagPrefix) {
			continue
		}
		suffix := strings.ToLower(strings.TrimPrefix(k, EnvTagPrefix))
		if suffix != "" && v != "" {
			tags[suffix] = v
		}
	}
	return tags
}

// IntegrationsDisabled reports whether integration auto-install checks are
// suppressed via the environment.
func IntegrationsDisabled() bool {
	return os.Getenv(EnvNoIntegrations) != ""
}
