package config

// Config is the complete configuration for the quill application. It
// covers all commands (process, batch, serve, worker, report) and loads
// from configuration files, environment variables, and command-line
// flags.
type Config struct {
	// StorageDir is the workspace root holding input_scans/ and
	// results/. Empty disables persistence; process output then goes
	// only to stdout or --output.
	StorageDir string `mapstructure:"storage_dir" yaml:"storage_dir" json:"storage_dir"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" json:"log_format"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	Batch    BatchConfig    `mapstructure:"batch" yaml:"batch" json:"batch"`
	Queue    QueueConfig    `mapstructure:"queue" yaml:"queue" json:"queue"`
}

// PipelineConfig contains scan assembly settings.
type PipelineConfig struct {
	// CropPadding expands line polygons before clamping, in pixels.
	CropPadding int `mapstructure:"crop_padding" yaml:"crop_padding" json:"crop_padding"`

	// RegionPadding is reported in region coordinates for downstream
	// rendering; it does not shift aggregated extents.
	RegionPadding int `mapstructure:"region_padding" yaml:"region_padding" json:"region_padding"`

	// CropQuality is the JPEG quality for saved line crops, 1..100.
	CropQuality int `mapstructure:"crop_quality" yaml:"crop_quality" json:"crop_quality"`

	// TextDelimiter joins line texts within a region.
	TextDelimiter string `mapstructure:"text_delimiter" yaml:"text_delimiter" json:"text_delimiter"`

	// MergeHyphens joins hyphenated line breaks into single words.
	MergeHyphens bool `mapstructure:"merge_hyphens" yaml:"merge_hyphens" json:"merge_hyphens"`

	// RequireRegions fails scans whose layout has no regions at all.
	RequireRegions bool `mapstructure:"require_regions" yaml:"require_regions" json:"require_regions"`

	// RegionWorkers bounds parallel per-region recognition (0 = CPUs).
	RegionWorkers int `mapstructure:"region_workers" yaml:"region_workers" json:"region_workers"`

	Recognition RecognitionConfig `mapstructure:"recognition" yaml:"recognition" json:"recognition"`
	Overlay     OverlayConfig     `mapstructure:"overlay" yaml:"overlay" json:"overlay"`
}

// RecognitionConfig contains OCR engine settings.
type RecognitionConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// Force re-recognizes every line, replacing layout-supplied text.
	Force bool `mapstructure:"force" yaml:"force" json:"force"`

	// Languages lists trained-data hints for the engine.
	Languages []string `mapstructure:"languages" yaml:"languages" json:"languages"`

	// DPI is forwarded to the engine; zero means unknown.
	DPI int `mapstructure:"dpi" yaml:"dpi" json:"dpi"`
}

// OverlayConfig contains review overlay settings.
type OverlayConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Dir     string `mapstructure:"dir" yaml:"dir" json:"dir"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// RateLimitPerMin caps requests per client IP; zero disables.
	RateLimitPerMin int `mapstructure:"rate_limit_per_min" yaml:"rate_limit_per_min" json:"rate_limit_per_min"`

	Callback CallbackConfig `mapstructure:"callback" yaml:"callback" json:"callback"`
}

// CallbackConfig controls completion notifications for async batch
// requests.
type CallbackConfig struct {
	// Attempts is the total number of delivery tries.
	Attempts int `mapstructure:"attempts" yaml:"attempts" json:"attempts"`

	// InitialBackoffMS is the delay before the second attempt; it
	// doubles per retry up to MaxBackoffMS.
	InitialBackoffMS int `mapstructure:"initial_backoff_ms" yaml:"initial_backoff_ms" json:"initial_backoff_ms"`
	MaxBackoffMS     int `mapstructure:"max_backoff_ms" yaml:"max_backoff_ms" json:"max_backoff_ms"`

	// TimeoutSec bounds each delivery attempt.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers        int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	Recursive      bool   `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	DestinationDir string `mapstructure:"destination_dir" yaml:"destination_dir" json:"destination_dir"`
}

// QueueConfig contains Redis-backed task queue settings. An empty
// RedisURI disables queueing; the server then processes async requests
// in-process.
type QueueConfig struct {
	RedisURI    string         `mapstructure:"redis_uri" yaml:"redis_uri" json:"redis_uri"`
	Concurrency int            `mapstructure:"concurrency" yaml:"concurrency" json:"concurrency"`
	Queues      map[string]int `mapstructure:"queues" yaml:"queues" json:"queues"`
	MaxRetry    int            `mapstructure:"max_retry" yaml:"max_retry" json:"max_retry"`
}
