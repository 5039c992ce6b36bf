package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/newthinker/comicshrink/internal/core"
	"github.com/newthinker/comicshrink/internal/logger"
	"github.com/newthinker/comicshrink/internal/pipeline"
	"github.com/newthinker/comicshrink/internal/storage"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. COMICSHRINK_COMPRESSION_LEVEL.
const EnvPrefix = "COMICSHRINK"

type Config struct {
	Compression CompressionConfig `mapstructure:"compression"`
	Paths       PathsConfig       `mapstructure:"paths"`
	Workspace   WorkspaceConfig   `mapstructure:"workspace"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Report      ReportConfig      `mapstructure:"report"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	Log         LogConfig         `mapstructure:"log"`
}

// CompressionConfig tunes image recompression.
type CompressionConfig struct {
	Level       float64 `mapstructure:"level"`       // max visual difference, percent
	Concurrency int     `mapstructure:"concurrency"` // 0 = one per CPU
}

type PathsConfig struct {
	Input        string `mapstructure:"input"`
	Output       string `mapstructure:"output"`
	SkipExisting bool   `mapstructure:"skip_existing"`
}

type WorkspaceConfig struct {
	TempDir string `mapstructure:"temp_dir"`
}

type StorageConfig struct {
	Type string   `mapstructure:"type"` // "", "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile"`
	Listen   string `mapstructure:"listen"`
}

// ReportConfig holds the CSV report location.
type ReportConfig struct {
	Path string `mapstructure:"path"`
}

// NotifyConfig selects where run summaries are announced.
type NotifyConfig struct {
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type WebhookConfig struct {
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type LogConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
}

// Load reads configuration from an optional file, environment overrides and
// defaults, in that order of precedence after the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	// Support environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.Contains(val, "${") {
			v.Set(key, os.ExpandEnv(val))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys the file
// never mentions.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("compression.level", d.Compression.Level)
	v.SetDefault("compression.concurrency", d.Compression.Concurrency)
	v.SetDefault("paths.input", d.Paths.Input)
	v.SetDefault("paths.output", d.Paths.Output)
	v.SetDefault("paths.skip_existing", d.Paths.SkipExisting)
	v.SetDefault("workspace.temp_dir", d.Workspace.TempDir)
	v.SetDefault("storage.type", d.Storage.Type)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.s3.bucket", d.Storage.S3.Bucket)
	v.SetDefault("storage.s3.endpoint", d.Storage.S3.Endpoint)
	v.SetDefault("storage.s3.region", d.Storage.S3.Region)
	v.SetDefault("storage.s3.access_key", d.Storage.S3.AccessKey)
	v.SetDefault("storage.s3.secret_key", d.Storage.S3.SecretKey)
	v.SetDefault("storage.s3.prefix", d.Storage.S3.Prefix)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
	v.SetDefault("metrics.listen", d.Metrics.Listen)
	v.SetDefault("report.path", d.Report.Path)
	v.SetDefault("notify.webhook.url", d.Notify.Webhook.URL)
	v.SetDefault("notify.telegram.bot_token", d.Notify.Telegram.BotToken)
	v.SetDefault("notify.telegram.chat_id", d.Notify.Telegram.ChatID)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Compression: CompressionConfig{
			Level: 0.5,
		},
		Paths: PathsConfig{
			Input:  ".",
			Output: "compressed-comics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Compression.Level < 0 || c.Compression.Level > 100 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("compression level must be between 0 and 100, got %g", c.Compression.Level))
	}
	if c.Compression.Concurrency < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("concurrency cannot be negative, got %d", c.Compression.Concurrency))
	}

	if c.Paths.Input == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("input directory required"))
	}
	if c.Paths.Output == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("output directory required"))
	}

	switch c.Storage.Type {
	case storage.TypeNone:
	case storage.TypeLocalFS:
		if c.Storage.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage path required when type is localfs"))
		}
	case storage.TypeS3:
		if c.Storage.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("s3 bucket required when type is s3"))
		}
		if c.Storage.S3.Region == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("s3 region required when type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown storage type %q", c.Storage.Type))
	}

	tg := c.Notify.Telegram
	if (tg.BotToken == "") != (tg.ChatID == "") {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("telegram needs both bot_token and chat_id"))
	}

	return nil
}

// Options derives the pipeline tuning knobs.
func (c *Config) Options() pipeline.Options {
	concurrency := c.Compression.Concurrency
	if concurrency == 0 {
		concurrency = runtime.NumCPU()
	}
	return pipeline.Options{
		CompressionLevel: c.Compression.Level,
		ConcurrencyLimit: concurrency,
		TempDir:          c.Workspace.TempDir,
	}
}

// StorageBackend converts the storage section for storage.New.
func (c *Config) StorageBackend() storage.Config {
	return storage.Config{
		Type: c.Storage.Type,
		Path: c.Storage.Path,
		S3: storage.S3Config{
			Bucket:    c.Storage.S3.Bucket,
			Endpoint:  c.Storage.S3.Endpoint,
			Region:    c.Storage.S3.Region,
			AccessKey: c.Storage.S3.AccessKey,
			SecretKey: c.Storage.S3.SecretKey,
			Prefix:    c.Storage.S3.Prefix,
		},
	}
}

// LoggerOptions converts the log section for logger.New.
func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{
		Development: c.Log.Development,
		Level:       c.Log.Level,
		Format:      c.Log.Format,
	}
}
