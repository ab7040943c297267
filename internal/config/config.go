// Package config defines the service configuration and its loading rules.
// Configuration comes from a YAML file, QUILLSCAN_* environment variables
// and built-in defaults, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/quillscan/quillscan/internal/cache"
	"github.com/quillscan/quillscan/internal/ocr"
	"github.com/quillscan/quillscan/internal/pipeline"
	"github.com/quillscan/quillscan/internal/recognizer"
)

// Config is the root configuration for the service.
type Config struct {
	// LogLevel controls logging verbosity: debug, info, warn, error.
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`

	Server     ServerConfig     `mapstructure:"server" yaml:"server" json:"server"`
	Cache      CacheConfig      `mapstructure:"cache" yaml:"cache" json:"cache"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher" yaml:"dispatcher" json:"dispatcher"`
	Recognizer RecognizerConfig `mapstructure:"recognizer" yaml:"recognizer" json:"recognizer"`
	Video      VideoConfig      `mapstructure:"video" yaml:"video" json:"video"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host          string `mapstructure:"host" yaml:"host" json:"host"`
	Port          int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin    string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxFileSizeMB int    `mapstructure:"max_file_size_mb" yaml:"max_file_size_mb" json:"max_file_size_mb"`
	MaxBatchSize  int    `mapstructure:"max_batch_size" yaml:"max_batch_size" json:"max_batch_size"`
	TimeoutSec    int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
}

// CacheConfig contains result cache settings.
type CacheConfig struct {
	MaxSize    int `mapstructure:"max_size" yaml:"max_size" json:"max_size"`
	TTLSeconds int `mapstructure:"ttl_seconds" yaml:"ttl_seconds" json:"ttl_seconds"`
}

// DispatcherConfig contains job dispatcher settings.
type DispatcherConfig struct {
	Workers             int     `mapstructure:"workers" yaml:"workers" json:"workers"`
	ImageTimeoutSec     int     `mapstructure:"image_timeout_sec" yaml:"image_timeout_sec" json:"image_timeout_sec"`
	BatchItemTimeoutSec int     `mapstructure:"batch_item_timeout_sec" yaml:"batch_item_timeout_sec" json:"batch_item_timeout_sec"`
	FrameTimeoutSec     int     `mapstructure:"frame_timeout_sec" yaml:"frame_timeout_sec" json:"frame_timeout_sec"`
	BatchConcurrency    int     `mapstructure:"batch_concurrency" yaml:"batch_concurrency" json:"batch_concurrency"`
	DedupThreshold      float64 `mapstructure:"dedup_threshold" yaml:"dedup_threshold" json:"dedup_threshold"`
}

// RecognizerConfig contains model and inference settings.
type RecognizerConfig struct {
	DetModelPath string  `mapstructure:"det_model_path" yaml:"det_model_path" json:"det_model_path"`
	RecModelPath string  `mapstructure:"rec_model_path" yaml:"rec_model_path" json:"rec_model_path"`
	DictPath     string  `mapstructure:"dict_path" yaml:"dict_path" json:"dict_path"`
	ImageHeight  int     `mapstructure:"image_height" yaml:"image_height" json:"image_height"`
	NumThreads   int     `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	DetThreshold float64 `mapstructure:"det_threshold" yaml:"det_threshold" json:"det_threshold"`
}

// VideoConfig contains frame sampling defaults applied when a request
// leaves them unset.
type VideoConfig struct {
	FFmpegPath          string  `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path" json:"ffmpeg_path"`
	FrameInterval       int     `mapstructure:"frame_interval" yaml:"frame_interval" json:"frame_interval"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" yaml:"similarity_threshold" json:"similarity_threshold"`
	MinConfidence       float64 `mapstructure:"min_confidence" yaml:"min_confidence" json:"min_confidence"`
	MaxFrames           int     `mapstructure:"max_frames" yaml:"max_frames" json:"max_frames"`
}

// DefaultConfig returns the configuration with all default values set.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          8000,
			CORSOrigin:    "*",
			MaxFileSizeMB: 200,
			MaxBatchSize:  50,
			TimeoutSec:    300,
		},
		Cache: CacheConfig{
			MaxSize:    200,
			TTLSeconds: 3600,
		},
		Dispatcher: DispatcherConfig{
			Workers:             8,
			ImageTimeoutSec:     30,
			BatchItemTimeoutSec: 60,
			FrameTimeoutSec:     45,
			BatchConcurrency:    8,
			DedupThreshold:      0.85,
		},
		Recognizer: RecognizerConfig{
			DetModelPath: "models/det.onnx",
			RecModelPath: "models/rec.onnx",
			DictPath:     "models/dict.txt",
			ImageHeight:  48,
			NumThreads:   0,
			DetThreshold: 0.3,
		},
		Video: VideoConfig{
			FFmpegPath:          "ffmpeg",
			FrameInterval:       30,
			SimilarityThreshold: 0.98,
			MinConfidence:       0.5,
			MaxFrames:           1000,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxFileSizeMB <= 0 {
		return fmt.Errorf("invalid max file size: %d (must be positive)", c.Server.MaxFileSizeMB)
	}
	if c.Server.MaxBatchSize <= 0 {
		return fmt.Errorf("invalid max batch size: %d (must be positive)", c.Server.MaxBatchSize)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid server timeout: %d (must be positive)", c.Server.TimeoutSec)
	}

	if c.Cache.MaxSize <= 0 {
		return fmt.Errorf("invalid cache max size: %d (must be positive)", c.Cache.MaxSize)
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("invalid cache ttl: %d (must be positive)", c.Cache.TTLSeconds)
	}

	if c.Dispatcher.Workers <= 0 {
		return fmt.Errorf("invalid dispatcher workers: %d (must be positive)", c.Dispatcher.Workers)
	}
	if c.Dispatcher.BatchConcurrency <= 0 {
		return fmt.Errorf("invalid batch concurrency: %d (must be positive)", c.Dispatcher.BatchConcurrency)
	}
	if err := validateThreshold(c.Dispatcher.DedupThreshold, "dispatcher.dedup_threshold"); err != nil {
		return err
	}

	if err := validateThreshold(c.Recognizer.DetThreshold, "recognizer.det_threshold"); err != nil {
		return err
	}
	if c.Recognizer.ImageHeight <= 0 {
		return fmt.Errorf("invalid recognizer image height: %d (must be positive)", c.Recognizer.ImageHeight)
	}

	if c.Video.FrameInterval <= 0 {
		return fmt.Errorf("invalid video frame interval: %d (must be positive)", c.Video.FrameInterval)
	}
	if err := validateThreshold(c.Video.SimilarityThreshold, "video.similarity_threshold"); err != nil {
		return err
	}
	if err := validateThreshold(c.Video.MinConfidence, "video.min_confidence"); err != nil {
		return err
	}
	if c.Video.MaxFrames <= 0 {
		return fmt.Errorf("invalid video max frames: %d (must be positive)", c.Video.MaxFrames)
	}

	return nil
}

// ToCacheConfig converts the cache section to the cache package config.
func (c *Config) ToCacheConfig() cache.Config {
	return cache.Config{
		MaxSize: c.Cache.MaxSize,
		TTL:     time.Duration(c.Cache.TTLSeconds) * time.Second,
	}
}

// ToDispatcherConfig converts the dispatcher section to the pipeline config.
func (c *Config) ToDispatcherConfig() pipeline.Config {
	return pipeline.Config{
		Workers:          c.Dispatcher.Workers,
		ImageTimeout:     time.Duration(c.Dispatcher.ImageTimeoutSec) * time.Second,
		BatchItemTimeout: time.Duration(c.Dispatcher.BatchItemTimeoutSec) * time.Second,
		FrameTimeout:     time.Duration(c.Dispatcher.FrameTimeoutSec) * time.Second,
		BatchConcurrency: c.Dispatcher.BatchConcurrency,
		DedupThreshold:   c.Dispatcher.DedupThreshold,
	}
}

// ToRecognizerConfig converts the recognizer section to the engine config.
func (c *Config) ToRecognizerConfig() recognizer.Config {
	return recognizer.Config{
		DetModelPath: c.Recognizer.DetModelPath,
		RecModelPath: c.Recognizer.RecModelPath,
		DictPath:     c.Recognizer.DictPath,
		ImageHeight:  c.Recognizer.ImageHeight,
		NumThreads:   c.Recognizer.NumThreads,
		DetThreshold: float32(c.Recognizer.DetThreshold),
	}
}

// ToVideoOpts returns the configured frame sampling defaults as request
// options. Normalize fills the remaining fields.
func (c *Config) ToVideoOpts() ocr.VideoOpts {
	o := ocr.VideoOpts{
		FrameInterval:       c.Video.FrameInterval,
		SimilarityThreshold: c.Video.SimilarityThreshold,
		MinConfidence:       c.Video.MinConfidence,
		MaxFrames:           c.Video.MaxFrames,
	}
	o.Normalize()
	return o
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxFileSizeMB) * 1024 * 1024
}

func validateThreshold(v float64, name string) error {
	if v < 0.0 || v > 1.0 {
		return fmt.Errorf("invalid %s: %f (must be between 0.0 and 1.0)", name, v)
	}
	return nil
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
