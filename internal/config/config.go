package config

import (
	"fmt"
	"strings"

	"github.com/quill-ocr/quill/internal/assemble"
	"github.com/quill-ocr/quill/internal/crop"
	"github.com/quill-ocr/quill/internal/pipeline"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		StorageDir: "",
		LogLevel:   "info",
		LogFormat:  "json",
		Verbose:    false,
		Pipeline: PipelineConfig{
			CropPadding:   assemble.DefaultCropPadding,
			RegionPadding: assemble.DefaultRegionPadding,
			CropQuality:   crop.DefaultQuality,
			TextDelimiter: "\n",
			MergeHyphens:  false,
			RegionWorkers: 0,
			Recognition: RecognitionConfig{
				Enabled:   true,
				Languages: []string{"rus"},
			},
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      120,
			ShutdownTimeout: 10,
			RateLimitPerMin: 120,
			Callback: CallbackConfig{
				Attempts:         5,
				InitialBackoffMS: 500,
				MaxBackoffMS:     8000,
				TimeoutSec:       10,
			},
		},
		Batch: BatchConfig{
			Workers:   4,
			Recursive: false,
		},
		Queue: QueueConfig{
			Concurrency: 4,
			Queues:      map[string]int{"default": 1},
			MaxRetry:    3,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"text", "json"}
	if c.LogFormat != "" && !contains(validLogFormats, c.LogFormat) {
		return fmt.Errorf("invalid log format: %s (must be one of: %s)", c.LogFormat, strings.Join(validLogFormats, ", "))
	}

	if c.Pipeline.CropPadding < 0 {
		return fmt.Errorf("invalid crop padding: %d (must not be negative)", c.Pipeline.CropPadding)
	}
	if c.Pipeline.RegionPadding < 0 {
		return fmt.Errorf("invalid region padding: %d (must not be negative)", c.Pipeline.RegionPadding)
	}
	if c.Pipeline.CropQuality < 1 || c.Pipeline.CropQuality > 100 {
		return fmt.Errorf("invalid crop quality: %d (must be between 1 and 100)", c.Pipeline.CropQuality)
	}
	if c.Pipeline.RegionWorkers < 0 {
		return fmt.Errorf("invalid region workers: %d (must not be negative)", c.Pipeline.RegionWorkers)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RateLimitPerMin < 0 {
		return fmt.Errorf("invalid rate limit: %d (must not be negative)", c.Server.RateLimitPerMin)
	}
	if c.Server.Callback.Attempts <= 0 {
		return fmt.Errorf("invalid callback attempts: %d (must be positive)", c.Server.Callback.Attempts)
	}
	if c.Server.Callback.InitialBackoffMS <= 0 || c.Server.Callback.MaxBackoffMS < c.Server.Callback.InitialBackoffMS {
		return fmt.Errorf("invalid callback backoff: initial %dms, max %dms",
			c.Server.Callback.InitialBackoffMS, c.Server.Callback.MaxBackoffMS)
	}

	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}

	if c.Queue.RedisURI != "" && c.Queue.Concurrency <= 0 {
		return fmt.Errorf("invalid queue concurrency: %d (must be positive)", c.Queue.Concurrency)
	}

	return nil
}

// PipelineBuilder returns a pipeline builder pre-configured from the
// loaded settings. Callers chain further With* overrides for
// command-specific flags before Build.
func (c *Config) PipelineBuilder() *pipeline.Builder {
	return pipeline.NewBuilder().
		WithStorageDir(c.StorageDir).
		WithCropPadding(c.Pipeline.CropPadding).
		WithRegionPadding(c.Pipeline.RegionPadding).
		WithCropQuality(c.Pipeline.CropQuality).
		WithTextDelimiter(c.Pipeline.TextDelimiter).
		WithHyphenMerge(c.Pipeline.MergeHyphens).
		WithRequireRegions(c.Pipeline.RequireRegions).
		WithRegionWorkers(c.Pipeline.RegionWorkers).
		WithRecognition(c.Pipeline.Recognition.Enabled).
		WithForceRecognition(c.Pipeline.Recognition.Force).
		WithLanguages(c.Pipeline.Recognition.Languages...).
		WithDPI(c.Pipeline.Recognition.DPI).
		WithOverlay(c.Pipeline.Overlay.Enabled, c.Pipeline.Overlay.Dir)
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
