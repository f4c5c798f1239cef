// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "GAMERUNNER"

// Config aggregates configuration for the application.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
}

// StorageConfig selects the object store and the corpus location in it.
type StorageConfig struct {
	// Provider is one of "aws", "azure" or "file".
	Provider string `mapstructure:"provider"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	Region   string `mapstructure:"region"`

	// S3-compatible endpoint overrides (MinIO, Ceph, GCS interop).
	Endpoint        string `mapstructure:"endpoint"`
	PathStyle       bool   `mapstructure:"path_style"`
	Role            string `mapstructure:"role"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`

	// AzureAccountURL is the blob service URL, eg https://acct.blob.core.windows.net/
	AzureAccountURL string `mapstructure:"azure_account_url"`

	// Root is the base directory for the "file" provider; buckets are subdirectories.
	Root string `mapstructure:"root"`
}

// FetchConfig controls how objects are streamed to local scratch files.
type FetchConfig struct {
	// ScratchDir receives downloads. Empty means os.TempDir(), which the
	// binary points at a gamerunner subdirectory on startup.
	ScratchDir     string        `mapstructure:"scratch_dir"`
	ChunkSize      int           `mapstructure:"chunk_size"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
}

// IngestConfig controls the per-key processing loop.
type IngestConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	RunTimeout  time.Duration `mapstructure:"run_timeout"`
	Progress    bool          `mapstructure:"progress"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
// Retries and timeouts are off by default: a failed download fails its key.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Provider: "aws",
			Bucket:   "sqlite-chess-data",
			Prefix:   "game-data/",
			Region:   "us-east-2",
		},
		Fetch: FetchConfig{
			ChunkSize:    1 << 20,
			MaxAttempts:  1,
			RetryBackoff: time.Second,
		},
		Ingest: IngestConfig{
			Concurrency: 1,
			Progress:    true,
		},
	}
}

// Load reads configuration from an optional config.yaml in the working
// directory and from environment variables. Environment variables use the
// prefix "GAMERUNNER" and the dot character in keys is replaced by an
// underscore. For example, "fetch.max_attempts" becomes
// "GAMERUNNER_FETCH_MAX_ATTEMPTS".
func Load() (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	switch c.Storage.Provider {
	case "aws", "azure", "file":
	default:
		return fmt.Errorf("unsupported storage provider %q", c.Storage.Provider)
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required")
	}
	if c.Storage.Provider == "azure" && c.Storage.AzureAccountURL == "" {
		return fmt.Errorf("storage.azure_account_url is required for the azure provider")
	}
	if c.Storage.Provider == "file" && c.Storage.Root == "" {
		return fmt.Errorf("storage.root is required for the file provider")
	}
	if c.Fetch.ChunkSize <= 0 {
		return fmt.Errorf("fetch.chunk_size must be positive, got %d", c.Fetch.ChunkSize)
	}
	if c.Fetch.MaxAttempts < 1 {
		return fmt.Errorf("fetch.max_attempts must be at least 1, got %d", c.Fetch.MaxAttempts)
	}
	if c.Ingest.Concurrency < 1 {
		return fmt.Errorf("ingest.concurrency must be at least 1, got %d", c.Ingest.Concurrency)
	}
	return nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(append([]string{}, parts...), tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
