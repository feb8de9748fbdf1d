package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable consulted by ResolvePath.
const EnvConfigPath = "JOBRADAR_CONFIG"

// Config is the root configuration for jobradar.
type Config struct {
	Site         SiteConfig
	Browser      BrowserConfig
	Processing   ProcessingConfig
	Extraction   ExtractionConfig
	Channel      ChannelConfig
	Store        StoreConfig
	Analysis     AnalysisConfig
	Filters      FilterConfig
	Notification NotificationConfig
	Watch        WatchConfig
}

// SiteConfig says which page to open and how to read it.
type SiteConfig struct {
	URL    string // http(s) page for the browser, or a local .html file
	Layout string // force a layout instead of detecting it by origin
}

// BrowserConfig controls the headless browser page.
type BrowserConfig struct {
	Headless     bool
	PollInterval time.Duration // how often the page is checked for mutations
	ExecPath     string        // optional Chrome binary
}

// ProcessingConfig bounds one processing session.
type ProcessingConfig struct {
	Budget           int
	ItemDelay        time.Duration
	FailureThreshold int
	FailureCooldown  time.Duration
	DispatchRetries  int
	SettleDelay      time.Duration
	MaxPages         int
	ReplyWindow      time.Duration
}

// ExtractionConfig tunes per-listing extraction.
type ExtractionConfig struct {
	DescriptionTimeout time.Duration
	PollInterval       time.Duration
	MaxAttempts        int
	Backoff            time.Duration
}

// ChannelConfig selects the transport between scanner and analyzer.
type ChannelConfig struct {
	Transport string // "memory" or "redis"
	RedisURL  string
	Namespace string
	Timeout   time.Duration
}

// StoreConfig selects the durable store.
type StoreConfig struct {
	Driver string // "sqlite", "redis", "postgres" or "memory"
	DSN    string
}

// AnalysisConfig controls the LLM evaluation service.
type AnalysisConfig struct {
	Enabled           bool
	BaseURL           string // defaults to https://api.openai.com/v1
	Model             string // OpenAI model identifier, e.g. "gpt-4o-mini"
	APIKey            string // expanded from env var by Load
	Criteria          string
	ResumePath        string
	RequestsPerMinute int
	Timeout           time.Duration // per-request timeout
}

// FilterConfig holds keyword and location filter settings.
type FilterConfig struct {
	TitleKeywords        []string `yaml:"title_keywords"`
	TitleExcludeKeywords []string `yaml:"title_exclude_keywords"`
	Locations            []string `yaml:"locations"`
	ExcludeLocations     []string `yaml:"exclude_locations"`
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

// WatchConfig controls the watch daemon.
type WatchConfig struct {
	QuietPeriod time.Duration
	Schedule    string // cron spec, empty disables scheduled sessions
}

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Site         rawSiteConfig       `yaml:"site"`
	Browser      rawBrowserConfig    `yaml:"browser"`
	Processing   rawProcessingConfig `yaml:"processing"`
	Extraction   rawExtractionConfig `yaml:"extraction"`
	Channel      rawChannelConfig    `yaml:"channel"`
	Store        StoreConfig         `yaml:"store"`
	Analysis     rawAnalysisConfig   `yaml:"analysis"`
	Filters      FilterConfig        `yaml:"filters"`
	Notification NotificationConfig  `yaml:"notification"`
	Watch        rawWatchConfig      `yaml:"watch"`
}

type rawSiteConfig struct {
	URL    string `yaml:"url"`
	Layout string `yaml:"layout"`
}

type rawBrowserConfig struct {
	Headless     *bool  `yaml:"headless"`
	PollInterval string `yaml:"poll_interval"`
	ExecPath     string `yaml:"exec_path"`
}

type rawProcessingConfig struct {
	Budget           *int   `yaml:"budget"`
	ItemDelay        string `yaml:"item_delay"`
	FailureThreshold *int   `yaml:"failure_threshold"`
	FailureCooldown  string `yaml:"failure_cooldown"`
	DispatchRetries  *int   `yaml:"dispatch_retries"`
	SettleDelay      string `yaml:"settle_delay"`
	MaxPages         *int   `yaml:"max_pages"`
	ReplyWindow      string `yaml:"reply_window"`
}

type rawExtractionConfig struct {
	DescriptionTimeout string `yaml:"description_timeout"`
	PollInterval       string `yaml:"poll_interval"`
	MaxAttempts        *int   `yaml:"max_attempts"`
	Backoff            string `yaml:"backoff"`
}

type rawChannelConfig struct {
	Transport string `yaml:"transport"`
	RedisURL  string `yaml:"redis_url"`
	Namespace string `yaml:"namespace"`
	Timeout   string `yaml:"timeout"`
}

type rawAnalysisConfig struct {
	Enabled           bool   `yaml:"enabled"`
	BaseURL           string `yaml:"base_url"`
	Model             string `yaml:"model"`
	APIKey            string `yaml:"api_key"`
	Criteria          string `yaml:"criteria"`
	ResumePath        string `yaml:"resume_path"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	Timeout           string `yaml:"timeout"`
}

type rawWatchConfig struct {
	QuietPeriod string  `yaml:"quiet_period"`
	Schedule    *string `yaml:"schedule"`
}

// ResolvePath picks the config file: the flag value, then $JOBRADAR_CONFIG,
// then ./config.yaml.
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	return "config.yaml"
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
// A .env file next to the config is loaded first so ${VAR} references can use it;
// variables already set in the environment win.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	d := durations{}
	cfg := &Config{
		Site: SiteConfig{
			URL:    raw.Site.URL,
			Layout: raw.Site.Layout,
		},
		Browser: BrowserConfig{
			Headless:     raw.Browser.Headless == nil || *raw.Browser.Headless,
			PollInterval: d.parse("browser.poll_interval", raw.Browser.PollInterval, 250*time.Millisecond),
			ExecPath:     raw.Browser.ExecPath,
		},
		Processing: ProcessingConfig{
			Budget:           intOr(raw.Processing.Budget, 25),
			ItemDelay:        d.parse("processing.item_delay", raw.Processing.ItemDelay, 1500*time.Millisecond),
			FailureThreshold: intOr(raw.Processing.FailureThreshold, 3),
			FailureCooldown:  d.parse("processing.failure_cooldown", raw.Processing.FailureCooldown, 5*time.Second),
			DispatchRetries:  intOr(raw.Processing.DispatchRetries, 2),
			SettleDelay:      d.parse("processing.settle_delay", raw.Processing.SettleDelay, 2*time.Second),
			MaxPages:         intOr(raw.Processing.MaxPages, 20),
			ReplyWindow:      d.parse("processing.reply_window", raw.Processing.ReplyWindow, 2*time.Second),
		},
		Extraction: ExtractionConfig{
			DescriptionTimeout: d.parse("extraction.description_timeout", raw.Extraction.DescriptionTimeout, 5*time.Second),
			PollInterval:       d.parse("extraction.poll_interval", raw.Extraction.PollInterval, 250*time.Millisecond),
			MaxAttempts:        intOr(raw.Extraction.MaxAttempts, 3),
			Backoff:            d.parse("extraction.backoff", raw.Extraction.Backoff, 500*time.Millisecond),
		},
		Channel: ChannelConfig{
			Transport: stringOr(raw.Channel.Transport, "memory"),
			RedisURL:  stringOr(raw.Channel.RedisURL, "redis://localhost:6379/0"),
			Namespace: stringOr(raw.Channel.Namespace, "jobradar"),
			Timeout:   d.parse("channel.timeout", raw.Channel.Timeout, 15*time.Second),
		},
		Store: StoreConfig{
			Driver: stringOr(raw.Store.Driver, "sqlite"),
			DSN:    raw.Store.DSN,
		},
		Analysis: AnalysisConfig{
			Enabled:           raw.Analysis.Enabled,
			BaseURL:           stringOr(raw.Analysis.BaseURL, defaultOpenAIBaseURL),
			Model:             raw.Analysis.Model,
			APIKey:            raw.Analysis.APIKey,
			Criteria:          strings.TrimSpace(raw.Analysis.Criteria),
			ResumePath:        raw.Analysis.ResumePath,
			RequestsPerMinute: raw.Analysis.RequestsPerMinute,
			Timeout:           d.parse("analysis.timeout", raw.Analysis.Timeout, 30*time.Second),
		},
		Filters:      raw.Filters,
		Notification: raw.Notification,
		Watch: WatchConfig{
			QuietPeriod: d.parse("watch.quiet_period", raw.Watch.QuietPeriod, 1500*time.Millisecond),
			Schedule:    "@every 30m",
		},
	}
	if d.err != nil {
		return nil, d.err
	}
	if raw.Watch.Schedule != nil {
		cfg.Watch.Schedule = strings.TrimSpace(*raw.Watch.Schedule)
	}
	if cfg.Store.DSN == "" && cfg.Store.Driver == "sqlite" {
		cfg.Store.DSN = "jobradar.db"
	}
	if cfg.Notification.Type == "" {
		cfg.Notification.Type = "log"
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// durations parses duration fields, keeping the first error.
type durations struct {
	err error
}

func (d *durations) parse(field, raw string, def time.Duration) time.Duration {
	if raw == "" || d.err != nil {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		d.err = fmt.Errorf("parse %s %q: %w", field, raw, err)
		return def
	}
	return v
}

// intOr returns def only when the field was absent, so an explicit 0 is kept.
func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func stringOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func validate(cfg *Config) error {
	if cfg.Site.URL == "" {
		return fmt.Errorf("site.url is required")
	}
	if u, err := url.Parse(cfg.Site.URL); err != nil {
		return fmt.Errorf("site.url %q: %w", cfg.Site.URL, err)
	} else if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "file" {
		return fmt.Errorf("site.url scheme must be http, https or file, got %q", u.Scheme)
	}

	p := cfg.Processing
	if p.Budget <= 0 {
		return fmt.Errorf("processing.budget must be positive, got %d", p.Budget)
	}
	if p.FailureThreshold < 0 || p.DispatchRetries < 0 || p.MaxPages < 0 {
		return fmt.Errorf("processing.failure_threshold, dispatch_retries and max_pages must not be negative")
	}
	for name, v := range map[string]time.Duration{
		"processing.item_delay":       p.ItemDelay,
		"processing.failure_cooldown": p.FailureCooldown,
		"processing.settle_delay":     p.SettleDelay,
		"processing.reply_window":     p.ReplyWindow,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %v", name, v)
		}
	}

	if cfg.Extraction.MaxAttempts < 1 {
		return fmt.Errorf("extraction.max_attempts must be at least 1, got %d", cfg.Extraction.MaxAttempts)
	}
	if cfg.Extraction.PollInterval <= 0 || cfg.Extraction.DescriptionTimeout <= 0 {
		return fmt.Errorf("extraction.poll_interval and description_timeout must be positive")
	}

	switch cfg.Channel.Transport {
	case "memory", "redis":
	default:
		return fmt.Errorf("channel.transport must be \"memory\" or \"redis\", got %q", cfg.Channel.Transport)
	}
	if cfg.Channel.Timeout <= 0 {
		return fmt.Errorf("channel.timeout must be positive, got %v", cfg.Channel.Timeout)
	}

	switch cfg.Store.Driver {
	case "sqlite", "memory":
	case "redis", "postgres":
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %q", cfg.Store.Driver)
		}
	default:
		return fmt.Errorf("store.driver must be one of sqlite, redis, postgres, memory; got %q", cfg.Store.Driver)
	}

	switch cfg.Notification.Type {
	case "log":
	case "slack":
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("notification.webhook_url must start with https://hooks.slack.com/")
		}
	default:
		return fmt.Errorf("notification.type must be \"log\" or \"slack\", got %q", cfg.Notification.Type)
	}

	if cfg.Analysis.Enabled {
		if cfg.Analysis.BaseURL == "" {
			return fmt.Errorf("analysis.base_url is required when analysis.enabled is true")
		}
		if cfg.Analysis.Model == "" {
			return fmt.Errorf("analysis.model is required when analysis.enabled is true")
		}
		if cfg.Analysis.RequestsPerMinute < 0 {
			return fmt.Errorf("analysis.requests_per_minute must not be negative")
		}
	}

	return nil
}
