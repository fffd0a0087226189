package hfdataset

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/sgl-project/hfdatasets/pkg/configutils"
	"github.com/sgl-project/hfdatasets/pkg/logging"
)

// ProgressDisplayMode controls how fetch/decode progress is surfaced.
type ProgressDisplayMode int

const (
	// ProgressModeAuto picks bars for an interactive terminal, logs otherwise.
	ProgressModeAuto ProgressDisplayMode = iota
	ProgressModeBars
	ProgressModeLog
)

// Config holds everything the Cache, Repository, Loader and Streaming
// components need, built through functional options exactly like the
// upstream HubConfig.
type Config struct {
	Logger logging.Interface

	Token    string `mapstructure:"hf_token"`
	Endpoint string `mapstructure:"endpoint"`
	CacheDir string `mapstructure:"cache_dir"`

	UserAgent       string        `mapstructure:"user_agent"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	EtagTimeout     time.Duration `mapstructure:"etag_timeout"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`

	MaxRetries    int           `mapstructure:"max_retries"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	MaxWorkers    int           `mapstructure:"max_workers"`

	LocalFilesOnly      bool `mapstructure:"local_files_only"`
	DisableProgressBars bool `mapstructure:"disable_progress_bars"`
	EnableOfflineMode   bool `mapstructure:"enable_offline_mode"`
	VerifySSL           bool `mapstructure:"verify_ssl"`
	EnableDetailedLogs  bool `mapstructure:"enable_detailed_logs"`

	DownloadMode     DownloadMode        `mapstructure:"download_mode"`
	VerificationMode VerificationMode    `mapstructure:"verification_mode"`
	ProgressMode     ProgressDisplayMode `mapstructure:"progress_display_mode"`
}

func defaultConfig() *Config {
	return &Config{
		Token:           GetHfToken(),
		Endpoint:        DefaultEndpoint,
		CacheDir:        GetCacheDir(),
		UserAgent:       UserAgent,
		RequestTimeout:  DefaultRequestTimeout,
		EtagTimeout:     DefaultEtagTimeout,
		DownloadTimeout: DefaultDownloadTimeout,
		MaxRetries:      DefaultMaxRetries,
		RetryInterval:   DefaultRetryInterval,
		MaxWorkers:      DefaultMaxWorkers,
		VerifySSL:       true,
		EnableOfflineMode: IsOfflineMode(),
		ProgressMode:    progressModeFromEnv(),
	}
}

func progressModeFromEnv() ProgressDisplayMode {
	switch os.Getenv(EnvProgressMode) {
	case "bars", "progress":
		return ProgressModeBars
	case "log", "logs":
		return ProgressModeLog
	default:
		return ProgressModeAuto
	}
}

func isInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Option configures a Config.
type Option func(*Config) error

func (c *Config) apply(opts ...Option) error {
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o(c); err != nil {
			return err
		}
	}
	return nil
}

// NewConfig builds a Config from defaults plus the given options.
func NewConfig(opts ...Option) (*Config, error) {
	c := defaultConfig()
	if err := c.apply(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

func WithLogger(logger logging.Interface) Option {
	return func(c *Config) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.Logger = logger
		return nil
	}
}

func WithToken(token string) Option {
	return func(c *Config) error {
		c.Token = token
		return nil
	}
}

func WithEndpoint(endpoint string) Option {
	return func(c *Config) error {
		if endpoint == "" {
			return errors.New("endpoint cannot be empty")
		}
		c.Endpoint = endpoint
		return nil
	}
}

func WithCacheDir(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return errors.New("cache directory cannot be empty")
		}
		c.CacheDir = dir
		return nil
	}
}

func WithRetryConfig(maxRetries int, retryInterval time.Duration) Option {
	return func(c *Config) error {
		if maxRetries < 0 {
			return errors.New("max retries cannot be negative")
		}
		c.MaxRetries = maxRetries
		c.RetryInterval = retryInterval
		return nil
	}
}

func WithMaxWorkers(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return errors.New("max workers must be positive")
		}
		c.MaxWorkers = n
		return nil
	}
}

func WithOfflineMode(enabled bool) Option {
	return func(c *Config) error {
		c.EnableOfflineMode = enabled
		return nil
	}
}

func WithProgressDisplayMode(mode ProgressDisplayMode) Option {
	return func(c *Config) error {
		c.ProgressMode = mode
		return nil
	}
}

// WithViper resolves configuration from Viper's root-level keys
// (hf_token, cache_dir, max_workers, ...), mirroring the upstream WithViper
// option. Environment variables are bound under the "hub." prefix.
func WithViper(v *viper.Viper) Option {
	return func(c *Config) error {
		*c = *defaultConfig()

		if err := configutils.BindEnvsRecursive(v, c, "hub"); err != nil {
			return fmt.Errorf("binding envs: %w", err)
		}
		if err := v.Unmarshal(c); err != nil {
			return fmt.Errorf("unmarshalling config: %w", err)
		}

		if v.IsSet("hf_token") {
			c.Token = v.GetString("hf_token")
		}
		if v.IsSet("cache_dir") {
			c.CacheDir = v.GetString("cache_dir")
		}
		return nil
	}
}

// Validate checks the Config for internal consistency.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if c.CacheDir == "" {
		return errors.New("cache directory is required")
	}
	if c.MaxWorkers <= 0 {
		return errors.New("max workers must be positive")
	}
	return nil
}

// effectiveProgressMode resolves ProgressModeAuto against the terminal.
func (c *Config) effectiveProgressMode() ProgressDisplayMode {
	if c.DisableProgressBars {
		return ProgressModeLog
	}
	if c.ProgressMode == ProgressModeAuto {
		if isInteractiveTerminal() {
			return ProgressModeBars
		}
		return ProgressModeLog
	}
	return c.ProgressMode
}
