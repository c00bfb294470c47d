package vocalgap

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ScanConfig carries every tunable of the onset scan. Plain data, never
// mutated by the engine; load one from YAML or start from
// DefaultScanConfig() and adjust.
type ScanConfig struct {
	// Chunking.
	ChunkDurationMs float64 `yaml:"chunk_duration_ms"`
	ChunkOverlapMs  float64 `yaml:"chunk_overlap_ms"`

	// Energy envelope.
	FrameDurationMs      float64 `yaml:"frame_duration_ms"`
	HopDurationMs        float64 `yaml:"hop_duration_ms"`
	NoiseFloorDurationMs float64 `yaml:"noise_floor_duration_ms"`

	// Onset decision.
	OnsetSNRThresholdDB float64 `yaml:"onset_snr_threshold_db"`
	OnsetAbsThreshold   float64 `yaml:"onset_abs_threshold"`
	MinVoicedDurationMs float64 `yaml:"min_voiced_duration_ms"`
	HysteresisMs        float64 `yaml:"hysteresis_ms"`

	// Expanding search.
	InitialRadiusMs      float64 `yaml:"initial_radius_ms"`
	RadiusIncrementMs    float64 `yaml:"radius_increment_ms"`
	MaxExpansions        int     `yaml:"max_expansions"`
	EarlyStopToleranceMs float64 `yaml:"early_stop_tolerance_ms"`

	// Scoring.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// DefaultScanConfig returns the tuning used for typical full-mix songs.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		ChunkDurationMs:      12000,
		ChunkOverlapMs:       1000,
		FrameDurationMs:      20,
		HopDurationMs:        10,
		NoiseFloorDurationMs: 800,
		OnsetSNRThresholdDB:  10,
		OnsetAbsThreshold:    0.01,
		MinVoicedDurationMs:  250,
		HysteresisMs:         120,
		InitialRadiusMs:      15000,
		RadiusIncrementMs:    10000,
		MaxExpansions:        5,
		EarlyStopToleranceMs: 1000,
		ConfidenceThreshold:  0.5,
	}
}

// Validate rejects configurations that cannot drive a scan. All failures wrap
// ErrInvalidConfig.
func (c ScanConfig) Validate() error {
	if c.ChunkDurationMs <= 0 {
		return fmt.Errorf("%w: chunk duration must be positive, got %.1fms", ErrInvalidConfig, c.ChunkDurationMs)
	}
	if c.ChunkOverlapMs < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %.1fms", ErrInvalidConfig, c.ChunkOverlapMs)
	}
	if c.ChunkOverlapMs >= c.ChunkDurationMs {
		return fmt.Errorf("%w: chunk overlap %.1fms must be smaller than chunk duration %.1fms",
			ErrInvalidConfig, c.ChunkOverlapMs, c.ChunkDurationMs)
	}
	if c.FrameDurationMs <= 0 || c.HopDurationMs <= 0 {
		return fmt.Errorf("%w: frame (%.1fms) and hop (%.1fms) durations must be positive",
			ErrInvalidConfig, c.FrameDurationMs, c.HopDurationMs)
	}
	if c.NoiseFloorDurationMs <= 0 {
		return fmt.Errorf("%w: noise floor duration must be positive, got %.1fms", ErrInvalidConfig, c.NoiseFloorDurationMs)
	}
	if c.MinVoicedDurationMs <= 0 {
		return fmt.Errorf("%w: minimum voiced duration must be positive, got %.1fms", ErrInvalidConfig, c.MinVoicedDurationMs)
	}
	if c.HysteresisMs < 0 {
		return fmt.Errorf("%w: hysteresis must not be negative, got %.1fms", ErrInvalidConfig, c.HysteresisMs)
	}
	if c.InitialRadiusMs <= 0 {
		return fmt.Errorf("%w: initial radius must be positive, got %.1fms", ErrInvalidConfig, c.InitialRadiusMs)
	}
	if c.RadiusIncrementMs < 0 {
		return fmt.Errorf("%w: radius increment must not be negative, got %.1fms", ErrInvalidConfig, c.RadiusIncrementMs)
	}
	if c.MaxExpansions < 0 {
		return fmt.Errorf("%w: max expansions must not be negative, got %d", ErrInvalidConfig, c.MaxExpansions)
	}
	if c.EarlyStopToleranceMs < 0 {
		return fmt.Errorf("%w: early stop tolerance must not be negative, got %.1fms", ErrInvalidConfig, c.EarlyStopToleranceMs)
	}
	return nil
}

// LoadScanConfig reads a YAML scan configuration from path. Fields missing
// from the file keep their defaults.
func LoadScanConfig(path string) (ScanConfig, error) {
	cfg := DefaultScanConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading scan config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing scan config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Config holds the service-level wiring.
type Config struct {
	TempDir       string
	CacheCapacity int
	Scan          ScanConfig
	Logger        Logger
	Loader        ChunkLoader
	Separator     Separator
}

// Option configures a Service at construction.
type Option func(*Config)

// WithTempDir sets the directory used for transcoded intermediates.
func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

// WithCacheCapacity bounds the isolated-vocals cache. Each entry can be
// several MB of samples, so keep this small.
func WithCacheCapacity(n int) Option {
	return func(c *Config) {
		c.CacheCapacity = n
	}
}

// WithScanConfig replaces the default scan tuning.
func WithScanConfig(sc ScanConfig) Option {
	return func(c *Config) {
		c.Scan = sc
	}
}

// WithLogger sets the logger used by the engine.
func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

// WithLoader replaces the default WAV/ffmpeg chunk loader.
func WithLoader(loader ChunkLoader) Option {
	return func(c *Config) {
		c.Loader = loader
	}
}

// WithSeparator replaces the default spectral separator, e.g. with a neural
// vocal-isolation model backend.
func WithSeparator(sep Separator) Option {
	return func(c *Config) {
		c.Separator = sep
	}
}

func defaultConfig() *Config {
	return &Config{
		TempDir:       os.TempDir(),
		CacheCapacity: DefaultCacheCapacity,
		Scan:          DefaultScanConfig(),
	}
}
