package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("NEWSHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("newsharvest")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".newsharvest"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	resolveCredentialEnv(cfg)
	return cfg, nil
}

// resolveCredentialEnv fills credentials from the named environment
// variables when no literal value was configured.
func resolveCredentialEnv(cfg *Config) {
	if cfg.Keyword.ClientID == "" && cfg.Keyword.ClientIDEnv != "" {
		cfg.Keyword.ClientID = os.Getenv(cfg.Keyword.ClientIDEnv)
	}
	if cfg.Keyword.ClientSecret == "" && cfg.Keyword.ClientSecretEnv != "" {
		cfg.Keyword.ClientSecret = os.Getenv(cfg.Keyword.ClientSecretEnv)
	}
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("keyword.sort", cfg.Keyword.Sort)
	v.SetDefault("keyword.page_size", cfg.Keyword.PageSize)
	v.SetDefault("keyword.max_per_keyword", cfg.Keyword.MaxPerKeyword)
	v.SetDefault("keyword.days_filter", cfg.Keyword.DaysFilter)

	v.SetDefault("collection.request_timeout", cfg.Collection.RequestTimeout)
	v.SetDefault("collection.request_delay", cfg.Collection.RequestDelay)
	v.SetDefault("collection.api_delay", cfg.Collection.APIDelay)
	v.SetDefault("collection.max_retries", cfg.Collection.MaxRetries)
	v.SetDefault("collection.retry_delay", cfg.Collection.RetryDelay)

	v.SetDefault("normalizer.tracking_params", cfg.Normalizer.TrackingParams)

	v.SetDefault("fetcher.user_agents", cfg.Fetcher.UserAgents)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)

	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.stealth", cfg.Browser.Stealth)
	v.SetDefault("browser.render_timeout", cfg.Browser.RenderTimeout)
	v.SetDefault("browser.session_scope", cfg.Browser.SessionScope)

	v.SetDefault("storage.backend", cfg.Storage.Backend)
	v.SetDefault("storage.sqlite_path", cfg.Storage.SQLitePath)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}
