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
	ConfigFileName = "quillscan"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "QUILLSCAN"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	// Use the global viper instance to ensure flag bindings work
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWith creates a loader backed by a specific viper instance.
// Used by tests to avoid the shared global.
func NewLoaderWith(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load loads configuration from files, environment variables and defaults,
// validating the result.
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")

	l.addConfigPaths()
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env vars carry the load.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// LoadWithFile loads configuration from a specific file path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	l.v.SetConfigFile(configFile)
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
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
	// Current directory
	l.v.AddConfigPath(".")

	// User's home directory
	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
	}

	// System-wide configuration
	l.v.AddConfigPath("/etc/quillscan")

	// XDG config directory
	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		l.v.AddConfigPath(filepath.Join(configDir, "quillscan"))
	} else if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(filepath.Join(home, ".config", "quillscan"))
	}
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()

	// server.cors_origin becomes QUILLSCAN_SERVER_CORS_ORIGIN
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("log_level", defaults.LogLevel)

	l.v.SetDefault("server.host", defaults.Server.Host)
	l.v.SetDefault("server.port", defaults.Server.Port)
	l.v.SetDefault("server.cors_origin", defaults.Server.CORSOrigin)
	l.v.SetDefault("server.max_file_size_mb", defaults.Server.MaxFileSizeMB)
	l.v.SetDefault("server.max_batch_size", defaults.Server.MaxBatchSize)
	l.v.SetDefault("server.timeout_sec", defaults.Server.TimeoutSec)

	l.v.SetDefault("cache.max_size", defaults.Cache.MaxSize)
	l.v.SetDefault("cache.ttl_seconds", defaults.Cache.TTLSeconds)

	l.v.SetDefault("dispatcher.workers", defaults.Dispatcher.Workers)
	l.v.SetDefault("dispatcher.image_timeout_sec", defaults.Dispatcher.ImageTimeoutSec)
	l.v.SetDefault("dispatcher.batch_item_timeout_sec", defaults.Dispatcher.BatchItemTimeoutSec)
	l.v.SetDefault("dispatcher.frame_timeout_sec", defaults.Dispatcher.FrameTimeoutSec)
	l.v.SetDefault("dispatcher.batch_concurrency", defaults.Dispatcher.BatchConcurrency)
	l.v.SetDefault("dispatcher.dedup_threshold", defaults.Dispatcher.DedupThreshold)

	l.v.SetDefault("recognizer.det_model_path", defaults.Recognizer.DetModelPath)
	l.v.SetDefault("recognizer.rec_model_path", defaults.Recognizer.RecModelPath)
	l.v.SetDefault("recognizer.dict_path", defaults.Recognizer.DictPath)
	l.v.SetDefault("recognizer.image_height", defaults.Recognizer.ImageHeight)
	l.v.SetDefault("recognizer.num_threads", defaults.Recognizer.NumThreads)
	l.v.SetDefault("recognizer.det_threshold", defaults.Recognizer.DetThreshold)

	l.v.SetDefault("video.ffmpeg_path", defaults.Video.FFmpegPath)
	l.v.SetDefault("video.frame_interval", defaults.Video.FrameInterval)
	l.v.SetDefault("video.similarity_threshold", defaults.Video.SimilarityThreshold)
	l.v.SetDefault("video.min_confidence", defaults.Video.MinConfidence)
	l.v.SetDefault("video.max_frames", defaults.Video.MaxFrames)
}
