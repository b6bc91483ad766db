// Package config manages application configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ytscrape/browser"
	"ytscrape/harvest"
	ythttp "ytscrape/http"
	"ytscrape/internal/retry"
	"ytscrape/youtube"
)

// Duration is a time.Duration that reads "3s"-style strings as well as
// nanosecond numbers from JSON.
type Duration time.Duration

// D returns d as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid duration %s", b)
	}
	*d = Duration(n)
	return nil
}

// Config holds all application configuration. Credentials and API keys are
// deliberately absent; they come from the secrets package.
type Config struct {
	// Channels is scraped when the command line names none.
	Channels []string `json:"channels"`
	// OutputDir receives one <channel-key>.json link file per channel.
	OutputDir string `json:"output_dir"`
	// StorePath is the JSON results store.
	StorePath string `json:"store_path"`
	// SQLitePath selects the SQLite results store instead of the JSON one.
	SQLitePath string `json:"sqlite_path,omitempty"`
	// DotenvPath is read for secrets not set in the environment.
	DotenvPath string `json:"dotenv_path"`

	Browser BrowserConfig `json:"browser"`
	Harvest HarvestConfig `json:"harvest"`
	Captcha CaptchaConfig `json:"captcha"`
	Batch   BatchConfig   `json:"batch"`
	Retry   RetryConfig   `json:"retry"`
	Log     LogConfig     `json:"log"`
}

// BrowserConfig configures the Chrome sessions.
type BrowserConfig struct {
	Headless bool `json:"headless"`
	// ChromePath overrides Chrome discovery.
	ChromePath string `json:"chrome_path,omitempty"`
	// UserDataDir keeps the browser profile between runs.
	UserDataDir     string   `json:"user_data_dir,omitempty"`
	UserAgent       string   `json:"user_agent,omitempty"`
	WaitTimeout     Duration `json:"wait_timeout"`
	NavigateTimeout Duration `json:"navigate_timeout"`
}

// HarvestConfig tunes the videos tab scroll loop.
type HarvestConfig struct {
	QuiescenceWindow Duration `json:"quiescence_window"`
	PollInterval     Duration `json:"poll_interval"`
	MaxAttempts      int      `json:"max_attempts"`
	// MaxDuration caps one harvest. Zero means no cap.
	MaxDuration  Duration `json:"max_duration,omitempty"`
	ItemSelector string   `json:"item_selector"`
}

// CaptchaConfig configures the 2Captcha solver.
type CaptchaConfig struct {
	SiteKey      string   `json:"site_key"`
	BaseURL      string   `json:"base_url"`
	InitialDelay Duration `json:"initial_delay"`
	PollInterval Duration `json:"poll_interval"`
	Timeout      Duration `json:"timeout"`
	// RequestsPerSecond paces calls to the solver API.
	RequestsPerSecond float64 `json:"requests_per_second"`
}

// BatchConfig configures the channel runner.
type BatchConfig struct {
	Concurrency    int      `json:"concurrency"`
	StartInterval  Duration `json:"start_interval"`
	ChannelTimeout Duration `json:"channel_timeout"`
}

// RetryConfig covers both the HTTP client's backoff and the per-action
// browser policy.
type RetryConfig struct {
	MaxRetries        int      `json:"max_retries"`
	InitialBackoff    Duration `json:"initial_backoff"`
	MaxBackoff        Duration `json:"max_backoff"`
	BackoffMultiplier float64  `json:"backoff_multiplier"`
	// ActionRetries is how often a browser action is retried on a transient error.
	ActionRetries       int      `json:"action_retries"`
	ActionBackoff       Duration `json:"action_backoff"`
	SlowActionThreshold Duration `json:"slow_action_threshold"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level"`
	// Format is text or json.
	Format string `json:"format"`
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:  "output",
		StorePath:  "ytscrape-store.json",
		DotenvPath: ".env",
		Browser: BrowserConfig{
			WaitTimeout:     Duration(10 * time.Second),
			NavigateTimeout: Duration(30 * time.Second),
		},
		Harvest: HarvestConfig{
			QuiescenceWindow: Duration(3 * time.Second),
			PollInterval:     Duration(500 * time.Millisecond),
			MaxAttempts:      200,
			ItemSelector:     youtube.SelVideoItem,
		},
		Captcha: CaptchaConfig{
			SiteKey:      youtube.DefaultSiteKey,
			BaseURL:      "https://2captcha.com",
			InitialDelay: Duration(15 * time.Second),
			PollInterval: Duration(5 * time.Second),
			Timeout:      Duration(180 * time.Second),

			RequestsPerSecond: 1,
		},
		Batch: BatchConfig{
			Concurrency:    1,
			StartInterval:  Duration(2 * time.Second),
			ChannelTimeout: Duration(15 * time.Minute),
		},
		Retry: RetryConfig{
			MaxRetries:          3,
			InitialBackoff:      Duration(1 * time.Second),
			MaxBackoff:          Duration(15 * time.Second),
			BackoffMultiplier:   2.0,
			ActionRetries:       1,
			ActionBackoff:       Duration(250 * time.Millisecond),
			SlowActionThreshold: Duration(5 * time.Second),
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load loads configuration from the config file and environment variables,
// and applies defaults. Priority: env vars > config file > defaults.
// An empty path searches ytscrape.json in the working directory, then
// ~/.config/ytscrape/ytscrape.json; a given path must exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFromFile(path); err != nil {
		// Config file is optional unless named
		if path != "" || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := cfg.loadFromEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile reads path, or the first default location that exists.
func (c *Config) loadFromFile(path string) error {
	paths := []string{path}
	if path == "" {
		home, _ := os.UserHomeDir()
		paths = []string{
			"ytscrape.json",
			filepath.Join(home, ".config", "ytscrape", "ytscrape.json"),
		}
	}

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && path == "" {
				continue
			}
			return err
		}
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse %s: %w", p, err)
		}
		return nil
	}
	return os.ErrNotExist
}

// EnvPrefix starts every configuration environment variable.
const EnvPrefix = "YTSCRAPE_"

// loadFromEnv overrides config with environment variables.
func (c *Config) loadFromEnv(lookup func(string) (string, bool)) error {
	var errs []error
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return v, ok && v != ""
	}
	str := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := get(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *Duration) {
		if v, ok := get(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = Duration(d)
		}
	}

	if v, ok := get("CHANNELS"); ok {
		c.Channels = nil
		for _, ch := range strings.Split(v, ",") {
			if ch = strings.TrimSpace(ch); ch != "" {
				c.Channels = append(c.Channels, ch)
			}
		}
	}
	str("OUTPUT_DIR", &c.OutputDir)
	str("STORE_PATH", &c.StorePath)
	str("SQLITE_PATH", &c.SQLitePath)
	str("DOTENV_PATH", &c.DotenvPath)

	if v, ok := get("HEADLESS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sHEADLESS: %w", EnvPrefix, err))
		} else {
			c.Browser.Headless = b
		}
	}
	str("CHROME_PATH", &c.Browser.ChromePath)
	str("USER_DATA_DIR", &c.Browser.UserDataDir)
	str("USER_AGENT", &c.Browser.UserAgent)
	dur("WAIT_TIMEOUT", &c.Browser.WaitTimeout)

	dur("QUIESCENCE_WINDOW", &c.Harvest.QuiescenceWindow)
	dur("POLL_INTERVAL", &c.Harvest.PollInterval)
	num("MAX_ATTEMPTS", &c.Harvest.MaxAttempts)
	dur("MAX_DURATION", &c.Harvest.MaxDuration)

	str("CAPTCHA_SITE_KEY", &c.Captcha.SiteKey)
	dur("CAPTCHA_TIMEOUT", &c.Captcha.Timeout)

	num("CONCURRENCY", &c.Batch.Concurrency)
	dur("CHANNEL_TIMEOUT", &c.Batch.ChannelTimeout)

	num("MAX_RETRIES", &c.Retry.MaxRetries)
	dur("INITIAL_BACKOFF", &c.Retry.InitialBackoff)
	dur("MAX_BACKOFF", &c.Retry.MaxBackoff)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	return errors.Join(errs...)
}

// Validate checks that configuration values are valid and consistent.
// It returns an error if any configuration value is invalid.
func (c *Config) Validate() error {
	switch {
	case c.OutputDir == "":
		return fmt.Errorf("output_dir must be set")
	case c.StorePath == "" && c.SQLitePath == "":
		return fmt.Errorf("store_path or sqlite_path must be set")
	case c.Browser.WaitTimeout <= 0:
		return fmt.Errorf("browser.wait_timeout must be positive")
	case c.Browser.NavigateTimeout <= 0:
		return fmt.Errorf("browser.navigate_timeout must be positive")
	case c.Harvest.PollInterval <= 0:
		return fmt.Errorf("harvest.poll_interval must be positive")
	case c.Harvest.QuiescenceWindow < c.Harvest.PollInterval:
		return fmt.Errorf("harvest.quiescence_window must be >= harvest.poll_interval")
	case c.Harvest.MaxAttempts <= 0:
		return fmt.Errorf("harvest.max_attempts must be positive")
	case c.Harvest.MaxDuration < 0:
		return fmt.Errorf("harvest.max_duration must be non-negative")
	case c.Harvest.ItemSelector == "":
		return fmt.Errorf("harvest.item_selector must be set")
	case c.Captcha.SiteKey == "":
		return fmt.Errorf("captcha.site_key must be set")
	case c.Captcha.RequestsPerSecond < 0:
		return fmt.Errorf("captcha.requests_per_second must be non-negative")
	case c.Captcha.PollInterval <= 0 || c.Captcha.Timeout <= 0:
		return fmt.Errorf("captcha.poll_interval and captcha.timeout must be positive")
	case c.Batch.Concurrency < 1:
		return fmt.Errorf("batch.concurrency must be at least 1")
	case c.Batch.StartInterval < 0 || c.Batch.ChannelTimeout < 0:
		return fmt.Errorf("batch intervals must be non-negative")
	case c.Retry.MaxRetries < 0 || c.Retry.ActionRetries < 0:
		return fmt.Errorf("retry counts must be non-negative")
	case c.Retry.InitialBackoff <= 0:
		return fmt.Errorf("retry.initial_backoff must be positive")
	case c.Retry.MaxBackoff < c.Retry.InitialBackoff:
		return fmt.Errorf("retry.max_backoff must be >= retry.initial_backoff")
	case c.Retry.BackoffMultiplier <= 1:
		return fmt.Errorf("retry.backoff_multiplier must be > 1")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json")
	}
	return nil
}

// BrowserOptions returns the session options.
func (c *Config) BrowserOptions() browser.Options {
	o := browser.DefaultOptions()
	o.Headless = c.Browser.Headless
	o.ExecPath = c.Browser.ChromePath
	o.UserDataDir = c.Browser.UserDataDir
	o.UserAgent = c.Browser.UserAgent
	o.WaitTimeout = c.Browser.WaitTimeout.D()
	o.NavigateTimeout = c.Browser.NavigateTimeout.D()
	return o
}

// HarvestOptions returns the scroll loop settings.
func (c *Config) HarvestOptions() harvest.Options {
	o := harvest.DefaultOptions()
	o.QuiescenceWindow = c.Harvest.QuiescenceWindow.D()
	o.PollInterval = c.Harvest.PollInterval.D()
	o.MaxAttempts = c.Harvest.MaxAttempts
	o.MaxDuration = c.Harvest.MaxDuration.D()
	o.Identify = youtube.VideoID
	return o
}

// ActionPolicy returns the per-action retry policy for browser steps.
func (c *Config) ActionPolicy(transient retry.ErrorClassifier, logger *slog.Logger) retry.Policy {
	p := retry.DefaultPolicy(transient, logger)
	p.Retries = c.Retry.ActionRetries
	p.Backoff = c.Retry.ActionBackoff.D()
	p.SlowThreshold = c.Retry.SlowActionThreshold.D()
	return p
}

// HTTPConfig returns the HTTP client settings used for the captcha service.
func (c *Config) HTTPConfig(logger *slog.Logger) *ythttp.Config {
	hc := ythttp.DefaultConfig()
	hc.Retry.MaxRetries = c.Retry.MaxRetries
	hc.Retry.InitialBackoff = c.Retry.InitialBackoff.D()
	hc.Retry.MaxBackoff = c.Retry.MaxBackoff.D()
	hc.Retry.Multiplier = c.Retry.BackoffMultiplier
	if c.Captcha.BaseURL != "" {
		// Zero leaves the solver unpaced.
		hc.RateLimiter.CustomRates[ythttp.Domain(c.Captcha.BaseURL)] = c.Captcha.RequestsPerSecond
	}
	hc.Logger = logger
	return hc
}

// SlogLevel maps Log.Level to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
