package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Config is the root configuration for relaybot.
type Config struct {
	General      GeneralConfig             `json:"general"`
	Providers    map[string]ProviderConfig `json:"providers"`
	Channels     ChannelsConfig            `json:"channels"`
	Store        StoreConfig               `json:"store"`
	Search       SearchConfig              `json:"search"`
	Registration RegistrationConfig        `json:"registration"`
	Metrics      MetricsConfig             `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel              string `json:"logLevel"`
	DefaultProvider       string `json:"defaultProvider"`
	MaxConcurrentMessages int    `json:"maxConcurrentMessages"`
	RepliesPath           string `json:"repliesPath,omitempty"` // optional YAML reply-text overrides
}

type ProviderConfig struct {
	Enabled      bool   `json:"enabled"`
	APIKey       string `json:"apiKey,omitempty"`
	APIBase      string `json:"apiBase,omitempty"`
	DefaultModel string `json:"defaultModel,omitempty"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	CLI      CLIConfig      `json:"cli"`
}

type TelegramConfig struct {
	Enabled   bool           `json:"enabled"`
	Token     string         `json:"token"`
	AllowFrom FlexStringList `json:"allowFrom"`
	ParseMode string         `json:"parseMode"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers (e.g. ["123", 456] both become "123", "456").
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	// Fallback: array of mixed types
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

type CLIConfig struct {
	Enabled bool `json:"enabled"`
}

type StoreConfig struct {
	DBPath string `json:"dbPath"`
}

type SearchConfig struct {
	Provider   string `json:"provider"` // currently only "serpapi"
	APIKey     string `json:"apiKey"`
	APIBase    string `json:"apiBase,omitempty"`
	MaxResults int    `json:"maxResults"`
}

// RegistrationConfig controls profile-lifecycle behavior.
type RegistrationConfig struct {
	// LazyContactCreate creates a minimal profile when a contact card arrives
	// from a user without one, matching the original update-without-check
	// behavior. When false, such users are asked to /start first.
	LazyContactCreate bool `json:"lazyContactCreate"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// DefaultConfigDir returns the default config directory (~/.relaybot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".relaybot"
	}
	return filepath.Join(home, ".relaybot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Store.DBPath = ExpandPath(cfg.Store.DBPath)
	cfg.General.RepliesPath = ExpandPath(cfg.General.RepliesPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.General.MaxConcurrentMessages < 1 || cfg.General.MaxConcurrentMessages > 100 {
		errs = append(errs, "general.maxConcurrentMessages must be between 1 and 100")
	}
	if cfg.General.DefaultProvider == "" {
		errs = append(errs, "general.defaultProvider must be set")
	}

	switch cfg.Channels.Telegram.ParseMode {
	case "", "Markdown", "MarkdownV2", "HTML":
		// valid
	default:
		errs = append(errs, "channels.telegram.parseMode must be one of: Markdown, MarkdownV2, HTML")
	}

	if cfg.Search.MaxResults < 1 || cfg.Search.MaxResults > 10 {
		errs = append(errs, "search.maxResults must be between 1 and 10")
	}
	switch cfg.Search.Provider {
	case "", "serpapi":
		// valid
	default:
		errs = append(errs, fmt.Sprintf("search.provider %q is not supported", cfg.Search.Provider))
	}

	if cfg.Metrics.Port < 0 || cfg.Metrics.Port > 65535 {
		errs = append(errs, "metrics.port must be between 0 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ValidateCredentials checks that every credential the gateway needs at
// runtime is present. Missing values are a fatal startup condition.
func ValidateCredentials(cfg *Config) error {
	var errs []string

	// A value still holding an unexpanded ${VAR} means the env var was unset.
	missing := func(v string) bool {
		return v == "" || strings.Contains(v, "${")
	}

	if cfg.Channels.Telegram.Enabled && missing(cfg.Channels.Telegram.Token) {
		errs = append(errs, "channels.telegram.token is required")
	}

	def := cfg.General.DefaultProvider
	pc, ok := cfg.Providers[def]
	switch {
	case !ok:
		errs = append(errs, fmt.Sprintf("general.defaultProvider references unknown provider: %s", def))
	case !pc.Enabled:
		errs = append(errs, fmt.Sprintf("providers.%s is disabled", def))
	case missing(pc.APIKey):
		errs = append(errs, fmt.Sprintf("providers.%s.apiKey is required", def))
	}

	if missing(cfg.Search.APIKey) {
		errs = append(errs, "search.apiKey is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("missing credentials:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
