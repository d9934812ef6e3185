// Package config loads cloudref run configuration from defaults, an optional
// config file, environment variables and bound command-line flags.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. CLOUDREF_UPLOAD_CONCURRENCY.
const EnvPrefix = "CLOUDREF"

// Keys shared with flag binding in cmd.
const (
	KeyImageExtensions      = "image_extensions"
	KeyRoots                = "roots"
	KeyRemoveVersionSegment = "remove_version_segment"
	KeyUploadConcurrency    = "upload.concurrency"
	KeyUploadMaxAttempts    = "upload.max_attempts"
	KeyUploadRetryDelay     = "upload.retry_delay"
	KeyUploadTimeout        = "upload.timeout"
	KeyUploadEndpoint       = "upload.endpoint"
	KeyAccountFile          = "account_file"
	KeyFiles                = "files"
	KeyReport               = "report"
)

// Config holds all configuration for one run.
type Config struct {
	ImageExtensions      []string     `mapstructure:"image_extensions"`
	Roots                []string     `mapstructure:"roots"`
	RemoveVersionSegment bool         `mapstructure:"remove_version_segment"`
	Upload               UploadConfig `mapstructure:"upload"`
	AccountFile          string       `mapstructure:"account_file"`
	Files                []FileGroup  `mapstructure:"files"`
	Report               string       `mapstructure:"report"`
}

// UploadConfig holds store client and retry settings.
type UploadConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Endpoint    string        `mapstructure:"endpoint"`
}

// FileGroup declares sources written to one destination. Src entries are
// doublestar globs; a leading "!" excludes matches.
type FileGroup struct {
	Dest string   `mapstructure:"dest"`
	Src  []string `mapstructure:"src"`
}

var defaultConfig = Config{
	ImageExtensions: []string{"png", "jpg", "jpeg", "gif"},
	Roots:           []string{},
	Upload: UploadConfig{
		Concurrency: 1,
		MaxAttempts: 4,
		RetryDelay:  0,
		Timeout:     60 * time.Second,
		Endpoint:    "https://api.cloudinary.com",
	},
	AccountFile: "cloudinary-account.json",
}

// Default returns a copy of the built-in defaults.
func Default() Config {
	c := defaultConfig
	c.ImageExtensions = append([]string(nil), defaultConfig.ImageExtensions...)
	c.Roots = []string{}
	return c
}

// NewViper returns a viper instance carrying defaults and env binding. Flags
// may be bound to it before Load is called.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyImageExtensions, defaultConfig.ImageExtensions)
	v.SetDefault(KeyRoots, defaultConfig.Roots)
	v.SetDefault(KeyRemoveVersionSegment, false)
	v.SetDefault(KeyUploadConcurrency, defaultConfig.Upload.Concurrency)
	v.SetDefault(KeyUploadMaxAttempts, defaultConfig.Upload.MaxAttempts)
	v.SetDefault(KeyUploadRetryDelay, defaultConfig.Upload.RetryDelay.String())
	v.SetDefault(KeyUploadTimeout, defaultConfig.Upload.Timeout.String())
	v.SetDefault(KeyUploadEndpoint, defaultConfig.Upload.Endpoint)
	v.SetDefault(KeyAccountFile, defaultConfig.AccountFile)
	v.SetDefault(KeyReport, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Env values arrive as strings; cast them to the default's type.
	v.SetTypeByDefaultValue(true)
	return v
}

// Load reads the config file (explicit path, or an optional cloudref.yaml,
// .json or .toml in the working directory), validates the merged settings
// against the embedded schema and unmarshals them.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("cloudref")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	doc, err := json.Marshal(v.AllSettings())
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	if err := ValidateConfig(doc); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Validate checks cross-field constraints the schema cannot express.
func (c *Config) Validate() error {
	if len(c.Files) == 0 {
		return errors.New("no files declared: set files in the config or pass --dest and --src")
	}
	for i, g := range c.Files {
		if strings.TrimSpace(g.Dest) == "" {
			return fmt.Errorf("files[%d]: dest is required", i)
		}
		if len(g.Src) == 0 {
			return fmt.Errorf("files[%d]: at least one src is required", i)
		}
	}
	if c.Upload.Concurrency < 1 {
		return fmt.Errorf("upload.concurrency must be at least 1, got %d", c.Upload.Concurrency)
	}
	if c.Upload.MaxAttempts < 1 {
		return fmt.Errorf("upload.max_attempts must be at least 1, got %d", c.Upload.MaxAttempts)
	}
	return nil
}
