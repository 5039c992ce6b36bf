package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/newthinker/comicshrink/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))
	return cfgPath
}

func TestLoad_FromFile(t *testing.T) {
	cfgPath := writeConfig(t, `
compression:
  level: 2.5
  concurrency: 3

paths:
  input: "/comics"
  skip_existing: true

storage:
  type: localfs
  path: "/mnt/backup"
`)

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, 2.5, cfg.Compression.Level)
	assert.Equal(t, 3, cfg.Compression.Concurrency)
	assert.Equal(t, "/comics", cfg.Paths.Input)
	assert.True(t, cfg.Paths.SkipExisting)
	assert.Equal(t, "localfs", cfg.Storage.Type)
	// untouched keys keep their defaults
	assert.Equal(t, "compressed-comics", cfg.Paths.Output)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("COMICSHRINK_COMPRESSION_LEVEL", "7")
	t.Setenv("COMICSHRINK_STORAGE_S3_BUCKET", "comics")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7.0, cfg.Compression.Level)
	assert.Equal(t, "comics", cfg.Storage.S3.Bucket)
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_S3_SECRET", "hunter2")
	cfgPath := writeConfig(t, `
storage:
  type: s3
  s3:
    bucket: comics
    region: us-east-1
    secret_key: "${TEST_S3_SECRET}"
`)

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.Storage.S3.SecretKey)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Notify(t *testing.T) {
	cfgPath := writeConfig(t, `
notify:
  webhook:
    url: "https://hooks.example.com/comics"
    headers:
      Authorization: "Bearer abc"
`)

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "https://hooks.example.com/comics", cfg.Notify.Webhook.URL)
	assert.Equal(t, "Bearer abc", cfg.Notify.Webhook.Headers["authorization"])
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, 0.5, cfg.Compression.Level)
	assert.Equal(t, 0, cfg.Compression.Concurrency)
	assert.Equal(t, ".", cfg.Paths.Input)
	assert.Equal(t, "compressed-comics", cfg.Paths.Output)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   *core.Error
	}{
		{"valid config", func(*Config) {}, nil},
		{"level below zero", func(c *Config) { c.Compression.Level = -1 }, core.ErrConfigInvalid},
		{"level above hundred", func(c *Config) { c.Compression.Level = 101 }, core.ErrConfigInvalid},
		{"negative concurrency", func(c *Config) { c.Compression.Concurrency = -2 }, core.ErrConfigInvalid},
		{"missing input", func(c *Config) { c.Paths.Input = "" }, core.ErrConfigMissing},
		{"missing output", func(c *Config) { c.Paths.Output = "" }, core.ErrConfigMissing},
		{"localfs without path", func(c *Config) { c.Storage.Type = "localfs" }, core.ErrConfigMissing},
		{"s3 without bucket", func(c *Config) {
			c.Storage.Type = "s3"
			c.Storage.S3.Region = "us-east-1"
		}, core.ErrConfigMissing},
		{"s3 without region", func(c *Config) {
			c.Storage.Type = "s3"
			c.Storage.S3.Bucket = "comics"
		}, core.ErrConfigMissing},
		{"unknown storage", func(c *Config) { c.Storage.Type = "ftp" }, core.ErrConfigInvalid},
		{"telegram without chat", func(c *Config) { c.Notify.Telegram.BotToken = "t" }, core.ErrConfigMissing},
		{"telegram complete", func(c *Config) {
			c.Notify.Telegram = TelegramConfig{BotToken: "t", ChatID: "c"}
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestConfig_Options(t *testing.T) {
	cfg := Defaults()
	cfg.Workspace.TempDir = "/scratch"

	opts := cfg.Options()
	assert.Equal(t, 0.5, opts.CompressionLevel)
	assert.Equal(t, runtime.NumCPU(), opts.ConcurrencyLimit)
	assert.Equal(t, "/scratch", opts.TempDir)

	cfg.Compression.Concurrency = 2
	assert.Equal(t, 2, cfg.Options().ConcurrencyLimit)
}

func TestConfig_StorageBackend(t *testing.T) {
	cfg := Defaults()
	cfg.Storage = StorageConfig{Type: "s3", S3: S3Config{Bucket: "b", Region: "r", Prefix: "p"}}

	backend := cfg.StorageBackend()
	assert.Equal(t, "s3", backend.Type)
	assert.Equal(t, "b", backend.S3.Bucket)
	assert.Equal(t, "p", backend.S3.Prefix)
}
