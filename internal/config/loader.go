package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/fariz/warden/pkg/errkit"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads the configuration file, applies WARDEN_ environment overrides,
// and fills defaults. A missing file yields the default config; the security
// root must still be supplied before Validate passes.
func (l *Loader) Load() (*Config, error) {
	configPath := l.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errkit.Wrap(errkit.KindConfiguration, err, "failed to get home directory")
		}
		configPath = filepath.Join(home, ".warden", "warden.json")
	}

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("WARDEN")
	v.AutomaticEnv()

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, errkit.Wrap(errkit.KindConfiguration, err, "failed to read config file").
				WithContext("path", configPath)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, errkit.Wrap(errkit.KindConfiguration, err, "failed to unmarshal config").
				WithContext("path", configPath)
		}
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errkit.Wrap(errkit.KindConfiguration, err, "failed to get home directory")
		}
		cfg.DataDir = filepath.Join(home, ".warden")
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "warden.log")
	}
	if cfg.Audit.Path == "" {
		cfg.Audit.Path = filepath.Join(cfg.DataDir, "audit.db")
	}

	return cfg, nil
}

// Save writes the configuration to file
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return errkit.New(errkit.KindConfiguration, "config path could not be determined")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return errkit.Wrap(errkit.KindConfiguration, err, "failed to create config directory")
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("security", cfg.Security)
	v.Set("rate_limit", cfg.RateLimit)
	v.Set("confirmation", cfg.Confirmation)
	v.Set("retry", cfg.Retry)
	v.Set("logging", cfg.Logging)
	v.Set("metrics", cfg.Metrics)
	v.Set("audit", cfg.Audit)
	v.Set("data_dir", cfg.DataDir)

	if err := v.WriteConfig(); err != nil {
		if os.IsNotExist(err) {
			if err := v.SafeWriteConfig(); err != nil {
				return errkit.Wrap(errkit.KindConfiguration, err, "failed to write config file")
			}
			return nil
		}
		return errkit.Wrap(errkit.KindConfiguration, err, "failed to write config file")
	}
	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".warden", "warden.json")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
