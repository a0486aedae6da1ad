package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"cuemix/internal/mix"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Library LibraryConfig `toml:"library"`
	Engine  EngineConfig  `toml:"engine"`
	Mix     MixConfig     `toml:"mix"`
	Logging LoggingConfig `toml:"logging"`
	Storage StorageConfig `toml:"storage"`
	Watch   WatchConfig   `toml:"watch"`
}

// LibraryConfig points at the Mixxx library database
type LibraryConfig struct {
	Path string `toml:"path"`
}

// EngineConfig contains ffmpeg settings
type EngineConfig struct {
	FFmpegPath string `toml:"ffmpeg_path"`
	LogLevel   string `toml:"log_level"`
}

// MixConfig contains planning and rendering defaults
type MixConfig struct {
	SegmentDir       string         `toml:"segment_dir"`
	SegmentExtension string         `toml:"segment_extension"`
	CrossFadeBeats   int            `toml:"crossfade_beats"`
	RampSteps        int            `toml:"ramp_steps"`
	FadeCurve        string         `toml:"fade_curve"`
	Loudness         LoudnessConfig `toml:"loudness"`
}

// LoudnessConfig contains EBU R128 normalization targets. All zero keeps
// the engine defaults.
type LoudnessConfig struct {
	Integrated float64 `toml:"integrated"`
	TruePeak   float64 `toml:"true_peak"`
	Range      float64 `toml:"range"`
}

// Target converts the configured targets for the graph builder
func (l LoudnessConfig) Target() mix.Loudness {
	return mix.Loudness{Integrated: l.Integrated, TruePeak: l.TruePeak, Range: l.Range}
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// StorageConfig contains publishing configuration for finished mixes
type StorageConfig struct {
	Enabled         bool   `toml:"enabled"`
	Bucket          string `toml:"bucket"`
	Prefix          string `toml:"prefix"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
}

// WatchConfig contains plan watch settings
type WatchConfig struct {
	DebounceMillis int `toml:"debounce_ms"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Library: LibraryConfig{
			Path: "./mixxxdb.sqlite",
		},
		Engine: EngineConfig{
			FFmpegPath: "ffmpeg",
			LogLevel:   "warning",
		},
		Mix: MixConfig{
			SegmentDir:       "./segments",
			SegmentExtension: ".mp3",
			CrossFadeBeats:   32,
			RampSteps:        mix.RampSteps,
			FadeCurve:        mix.DefaultFadeCurve,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
		Storage: StorageConfig{
			Enabled: false,
			Region:  "auto",
		},
		Watch: WatchConfig{
			DebounceMillis: 500,
		},
	}
}

// LoadConfig loads configuration from a TOML file, then applies
// environment overrides (a .env file is read first if present).
func LoadConfig(configPath string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		fmt.Printf("Created default configuration file at: %s\n", configPath)
	} else if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("MIXXX_DB_PATH"); v != "" {
		c.Library.Path = v
	}
	if v := os.Getenv("CUEMIX_FFMPEG"); v != "" {
		c.Engine.FFmpegPath = v
	}
	if v := os.Getenv("CUEMIX_SEGMENT_DIR"); v != "" {
		c.Mix.SegmentDir = v
	}
	if v := os.Getenv("CUEMIX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CUEMIX_S3_BUCKET"); v != "" {
		c.Storage.Bucket = v
	}
	if v := os.Getenv("CUEMIX_S3_ENDPOINT"); v != "" {
		c.Storage.Endpoint = v
	}
	if v := os.Getenv("CUEMIX_S3_ACCESS_KEY_ID"); v != "" {
		c.Storage.AccessKeyID = v
	}
	if v := os.Getenv("CUEMIX_S3_SECRET_ACCESS_KEY"); v != "" {
		c.Storage.SecretAccessKey = v
	}
	if v := os.Getenv("CUEMIX_S3_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Storage.Enabled = b
		}
	}
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := `# cuemix configuration
# Library, engine and rendering settings for planning beat-aligned mixes.
# MIXXX_DB_PATH and CUEMIX_* environment variables override these values.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Library.Path == "" {
		return fmt.Errorf("library path cannot be empty")
	}
	if c.Engine.FFmpegPath == "" {
		return fmt.Errorf("ffmpeg path cannot be empty")
	}

	if c.Mix.SegmentDir == "" {
		return fmt.Errorf("segment directory cannot be empty")
	}
	if c.Mix.SegmentExtension == "" {
		return fmt.Errorf("segment extension cannot be empty")
	}
	if c.Mix.CrossFadeBeats < 0 {
		return fmt.Errorf("crossfade beats must not be negative")
	}
	if c.Mix.RampSteps < 1 {
		return fmt.Errorf("ramp steps must be at least 1")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage bucket is required when storage is enabled")
	}

	return nil
}
