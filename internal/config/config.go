package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all configuration for shiplog.
type Config struct {
	Provider string       `mapstructure:"provider"`
	Project  string       `mapstructure:"project"`
	Repo     RepoConfig   `mapstructure:"repo"`
	Store    StoreConfig  `mapstructure:"store"`
	CacheDir string       `mapstructure:"cache_dir"`
	CacheTTL string       `mapstructure:"cache_ttl"`
	NoCache  bool         `mapstructure:"no_cache"`
	GitHub   GitHubConfig `mapstructure:"github"`
	GitLab   GitLabConfig `mapstructure:"gitlab"`
	AI       AIConfig     `mapstructure:"ai"`
	Filter   FilterConfig `mapstructure:"filter"`
	Output   OutputConfig `mapstructure:"output"`
	Watch    WatchConfig  `mapstructure:"watch"`
	LogLevel string       `mapstructure:"log_level"`
}

// RepoConfig identifies the repository commits are pulled from.
type RepoConfig struct {
	Owner string `mapstructure:"owner"`
	Name  string `mapstructure:"name"`
	Path  string `mapstructure:"path"`
	URL   string `mapstructure:"url"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// GitHubConfig holds GitHub API settings.
type GitHubConfig struct {
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
}

// GitLabConfig holds GitLab API settings.
type GitLabConfig struct {
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
}

// AIConfig holds the optional enrichment settings.
type AIConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	Concurrency int     `mapstructure:"concurrency"`
	Timeout     string  `mapstructure:"timeout"`

	Anthropic ProviderKeyConfig `mapstructure:"anthropic"`
	OpenAI    ProviderKeyConfig `mapstructure:"openai"`
}

// ProviderKeyConfig holds one AI provider's credentials.
type ProviderKeyConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// FilterConfig mirrors the commit filter settings.
type FilterConfig struct {
	IncludeFeatures        bool     `mapstructure:"include_features"`
	IncludeFixes           bool     `mapstructure:"include_fixes"`
	IncludeChores          bool     `mapstructure:"include_chores"`
	IncludeBreakingChanges bool     `mapstructure:"include_breaking_changes"`
	CustomTypes            []string `mapstructure:"custom_types"`
	IncludeUnknown         bool     `mapstructure:"include_unknown"`
}

// OutputConfig controls document rendering.
type OutputConfig struct {
	IncludeCommitLinks bool `mapstructure:"include_commit_links"`
}

// WatchConfig controls the periodic generation loop.
type WatchConfig struct {
	Interval string `mapstructure:"interval"`
}

// Load reads configuration from file, environment, and defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("provider", "github")
	v.SetDefault("project", "default")
	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.path", defaultStorePath())
	v.SetDefault("cache_dir", defaultCacheDir())
	v.SetDefault("cache_ttl", "1h")
	v.SetDefault("no_cache", false)
	v.SetDefault("gitlab.base_url", "https://gitlab.com")
	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.provider", "anthropic")
	v.SetDefault("ai.model", "claude-sonnet-4-20250514")
	v.SetDefault("ai.max_tokens", 1024)
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.concurrency", 4)
	v.SetDefault("ai.timeout", "15s")
	v.SetDefault("ai.anthropic.base_url", "https://api.anthropic.com/v1")
	v.SetDefault("ai.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("filter.include_features", true)
	v.SetDefault("filter.include_fixes", true)
	v.SetDefault("filter.include_chores", true)
	v.SetDefault("filter.include_breaking_changes", true)
	v.SetDefault("filter.include_unknown", false)
	v.SetDefault("output.include_commit_links", true)
	v.SetDefault("watch.interval", "1h")
	v.SetDefault("log_level", "info")

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/shiplog")
	}

	// Environment variables
	v.SetEnvPrefix("SHIPLOG")
	v.AutomaticEnv()

	// Bind specific env vars
	_ = v.BindEnv("github.token", "GITHUB_TOKEN")
	_ = v.BindEnv("gitlab.token", "GITLAB_TOKEN")
	_ = v.BindEnv("ai.anthropic.api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("ai.openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("ai.enabled", "SHIPLOG_AI_ENABLED")
	_ = v.BindEnv("ai.provider", "SHIPLOG_AI_PROVIDER")
	_ = v.BindEnv("ai.model", "SHIPLOG_AI_MODEL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Resolve the local repo path to absolute
	if cfg.Repo.Path != "" && !filepath.IsAbs(cfg.Repo.Path) {
		abs, err := filepath.Abs(cfg.Repo.Path)
		if err != nil {
			return nil, fmt.Errorf("resolving repo path: %w", err)
		}
		cfg.Repo.Path = abs
	}

	return &cfg, nil
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/shiplog-cache"
	}
	return filepath.Join(home, ".cache", "shiplog")
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "shiplog.db"
	}
	return filepath.Join(home, ".local", "share", "shiplog", "shiplog.db")
}
