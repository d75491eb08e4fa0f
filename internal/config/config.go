// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	DB         DBConfig         `mapstructure:"db"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Thumbs     ThumbConfig      `mapstructure:"thumbs"`
	Screenshot ScreenshotConfig `mapstructure:"screenshot"`
	Renderer   RendererConfig   `mapstructure:"renderer"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Favicon    FaviconConfig    `mapstructure:"favicon"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
}

// QueueConfig governs batch leasing and retry accounting.
type QueueConfig struct {
	BatchSize          int `mapstructure:"batch_size"`
	MaxAttempts        int `mapstructure:"max_attempts"`
	RunIntervalSeconds int `mapstructure:"run_interval_seconds"`
}

// RunInterval returns the daemon's batch tick interval.
func (q QueueConfig) RunInterval() time.Duration {
	return time.Duration(q.RunIntervalSeconds) * time.Second
}

// FetchConfig governs outbound HTTP behavior for the safe fetcher.
type FetchConfig struct {
	UserAgent             string `mapstructure:"user_agent"`
	ConnectTimeoutSeconds int    `mapstructure:"connect_timeout_seconds"`
	TimeoutSeconds        int    `mapstructure:"timeout_seconds"`
	MaxImageBytes         int64  `mapstructure:"max_image_bytes"`
	MaxHTMLBytes          int64  `mapstructure:"max_html_bytes"`
	MaxRedirects          int    `mapstructure:"max_redirects"`
	// AllowLoopback disables the private-address guard for loopback hosts.
	// Local development and tests only.
	AllowLoopback bool `mapstructure:"allow_loopback"`
}

// ConnectTimeout returns the dial timeout.
func (f FetchConfig) ConnectTimeout() time.Duration {
	return time.Duration(f.ConnectTimeoutSeconds) * time.Second
}

// Timeout returns the total request timeout.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// ThumbConfig governs thumbnail acquisition and storage.
type ThumbConfig struct {
	RootDir         string `mapstructure:"root_dir"`
	MaxWidth        int    `mapstructure:"max_width"`
	MinWidth        int    `mapstructure:"min_width"`
	MinHeight       int    `mapstructure:"min_height"`
	MaxDecodedBytes int64  `mapstructure:"max_decoded_bytes"`
	HTMLScanBytes   int    `mapstructure:"html_scan_bytes"`
	MaxCandidates   int    `mapstructure:"max_candidates"`
	MaxDownloads    int    `mapstructure:"max_downloads"`
}

// ScreenshotConfig configures the third-party page-rendering API. An empty
// APIKey disables the strategy.
type ScreenshotConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	Strategy       string `mapstructure:"strategy"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Timeout returns the screenshot API request timeout.
func (s ScreenshotConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// RendererConfig configures the optional local headless renderer.
type RendererConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	MaxParallel       int  `mapstructure:"max_parallel"`
	NavTimeoutSeconds int  `mapstructure:"nav_timeout_seconds"`
	ViewportWidth     int  `mapstructure:"viewport_width"`
	ViewportHeight    int  `mapstructure:"viewport_height"`
}

// NavTimeout returns the navigation timeout for headless rendering.
func (r RendererConfig) NavTimeout() time.Duration {
	return time.Duration(r.NavTimeoutSeconds) * time.Second
}

// ArchiveConfig points at the public web-archive endpoints.
type ArchiveConfig struct {
	SaveEndpoint   string `mapstructure:"save_endpoint"`
	BrowseEndpoint string `mapstructure:"browse_endpoint"`
}

// FaviconConfig points at the third-party favicon service.
type FaviconConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Size     int    `mapstructure:"size"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LINKHOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("queue.batch_size", 3)
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.run_interval_seconds", 60)
	v.SetDefault("fetch.user_agent", "linkhoard-enrich/1.0 (+https://github.com/dlnorman/linkhoard)")
	v.SetDefault("fetch.connect_timeout_seconds", 10)
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.max_image_bytes", 10<<20)
	v.SetDefault("fetch.max_html_bytes", 5<<20)
	v.SetDefault("fetch.max_redirects", 5)
	v.SetDefault("fetch.allow_loopback", false)
	v.SetDefault("thumbs.root_dir", "data/thumbnails")
	v.SetDefault("thumbs.max_width", 300)
	v.SetDefault("thumbs.min_width", 200)
	v.SetDefault("thumbs.min_height", 100)
	v.SetDefault("thumbs.max_decoded_bytes", 50<<20)
	v.SetDefault("thumbs.html_scan_bytes", 64<<10)
	v.SetDefault("thumbs.max_candidates", 10)
	v.SetDefault("thumbs.max_downloads", 5)
	v.SetDefault("screenshot.strategy", "desktop")
	v.SetDefault("screenshot.timeout_seconds", 45)
	v.SetDefault("renderer.enabled", false)
	v.SetDefault("renderer.max_parallel", 1)
	v.SetDefault("renderer.nav_timeout_seconds", 25)
	v.SetDefault("renderer.viewport_width", 1280)
	v.SetDefault("renderer.viewport_height", 800)
	v.SetDefault("archive.save_endpoint", "https://web.archive.org/save/")
	v.SetDefault("archive.browse_endpoint", "https://web.archive.org/web/*/")
	v.SetDefault("favicon.endpoint", "https://www.google.com/s2/favicons")
	v.SetDefault("favicon.size", 128)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Queue.BatchSize <= 0 {
		return fmt.Errorf("queue.batch_size must be > 0")
	}
	if c.Queue.MaxAttempts <= 0 {
		return fmt.Errorf("queue.max_attempts must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 || c.Fetch.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("fetch timeouts must be > 0")
	}
	if c.Fetch.MaxImageBytes <= 0 || c.Fetch.MaxHTMLBytes <= 0 {
		return fmt.Errorf("fetch byte ceilings must be > 0")
	}
	if c.Thumbs.RootDir == "" {
		return fmt.Errorf("thumbs.root_dir must be set")
	}
	if c.Thumbs.MaxWidth <= 0 {
		return fmt.Errorf("thumbs.max_width must be > 0")
	}
	if c.Screenshot.Strategy != "desktop" && c.Screenshot.Strategy != "mobile" {
		return fmt.Errorf("screenshot.strategy must be desktop or mobile")
	}
	return nil
}
