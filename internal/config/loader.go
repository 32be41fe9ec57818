package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "quill"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "QUILL"
)

// Loader handles loading configuration from files, environment
// variables, and defaults.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so cobra
// flag bindings participate in precedence.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// Load reads configuration from the search paths and environment and
// validates it. A missing config file is not an error; defaults and
// environment variables apply.
func (l *Loader) Load() (*Config, error) {
	cfg, err := l.read("")
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithFile reads configuration from a specific file and validates
// it. An empty path falls back to the search paths.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	cfg, err := l.read(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// read performs the shared load steps. With a file it reads exactly
// that file; without one it searches the standard paths and tolerates
// absence.
func (l *Loader) read(configFile string) (*Config, error) {
	if configFile != "" {
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	l.v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
	}

	l.v.AddConfigPath("/etc/quill")

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		l.v.AddConfigPath(filepath.Join(configDir, "quill"))
	} else if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(filepath.Join(home, ".config", "quill"))
	}
}

// setupEnvironmentVariables configures environment variable handling:
// QUILL_SERVER_PORT overrides server.port and so on.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("storage_dir", defaults.StorageDir)
	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("log_format", defaults.LogFormat)
	l.v.SetDefault("verbose", defaults.Verbose)

	l.v.SetDefault("pipeline.crop_padding", defaults.Pipeline.CropPadding)
	l.v.SetDefault("pipeline.region_padding", defaults.Pipeline.RegionPadding)
	l.v.SetDefault("pipeline.crop_quality", defaults.Pipeline.CropQuality)
	l.v.SetDefault("pipeline.text_delimiter", defaults.Pipeline.TextDelimiter)
	l.v.SetDefault("pipeline.merge_hyphens", defaults.Pipeline.MergeHyphens)
	l.v.SetDefault("pipeline.require_regions", defaults.Pipeline.RequireRegions)
	l.v.SetDefault("pipeline.region_workers", defaults.Pipeline.RegionWorkers)
	l.v.SetDefault("pipeline.recognition.enabled", defaults.Pipeline.Recognition.Enabled)
	l.v.SetDefault("pipeline.recognition.force", defaults.Pipeline.Recognition.Force)
	l.v.SetDefault("pipeline.recognition.languages", defaults.Pipeline.Recognition.Languages)
	l.v.SetDefault("pipeline.recognition.dpi", defaults.Pipeline.Recognition.DPI)
	l.v.SetDefault("pipeline.overlay.enabled", defaults.Pipeline.Overlay.Enabled)
	l.v.SetDefault("pipeline.overlay.dir", defaults.Pipeline.Overlay.Dir)

	l.v.SetDefault("server.host", defaults.Server.Host)
	l.v.SetDefault("server.port", defaults.Server.Port)
	l.v.SetDefault("server.cors_origin", defaults.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", defaults.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", defaults.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	l.v.SetDefault("server.rate_limit_per_min", defaults.Server.RateLimitPerMin)
	l.v.SetDefault("server.callback.attempts", defaults.Server.Callback.Attempts)
	l.v.SetDefault("server.callback.initial_backoff_ms", defaults.Server.Callback.InitialBackoffMS)
	l.v.SetDefault("server.callback.max_backoff_ms", defaults.Server.Callback.MaxBackoffMS)
	l.v.SetDefault("server.callback.timeout_sec", defaults.Server.Callback.TimeoutSec)

	l.v.SetDefault("batch.workers", defaults.Batch.Workers)
	l.v.SetDefault("batch.recursive", defaults.Batch.Recursive)
	l.v.SetDefault("batch.destination_dir", defaults.Batch.DestinationDir)

	l.v.SetDefault("queue.redis_uri", defaults.Queue.RedisURI)
	l.v.SetDefault("queue.concurrency", defaults.Queue.Concurrency)
	l.v.SetDefault("queue.queues", defaults.Queue.Queues)
	l.v.SetDefault("queue.max_retry", defaults.Queue.MaxRetry)
}

// GetResolvedConfig returns the current resolved configuration for debugging.
func (l *Loader) GetResolvedConfig() map[string]interface{} {
	return l.v.AllSettings()
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile generates a default configuration file.
func GenerateDefaultConfigFile(filename string) error {
	loader := &Loader{v: viper.New()}
	loader.setDefaults()

	if filename == "" {
		filename = "quill.yaml"
	}
	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are
// searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
		paths = append(paths, filepath.Join(home, ".config", "quill"))
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "quill"))
	}

	paths = append(paths, "/etc/quill")

	return paths
}
