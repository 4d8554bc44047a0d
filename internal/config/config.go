package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/veranemoloko/clip-downloader/internal/storage"
)

// Config holds all application configuration settings.
type Config struct {
	Environment string `envconfig:"ENV" default:"development"`

	HTTPPort    int           `envconfig:"HTTP_PORT" default:"5555"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`
	// WriteTimeout bounds a whole download request, which waits for its batch.
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"30m"`
	// BaseURL is the external origin used for file URLs; empty derives it from the request.
	BaseURL  string `envconfig:"BASE_URL"`
	APIToken string `envconfig:"API_TOKEN"`

	Workers      int           `envconfig:"WORKERS" default:"5"`
	FetchRetries int           `envconfig:"FETCH_RETRIES" default:"3"`
	APITimeout   time.Duration `envconfig:"API_TIMEOUT" default:"10s"`
	AssetTimeout time.Duration `envconfig:"ASSET_TIMEOUT" default:"5m"`
	MaxFileSize  int64         `envconfig:"MAX_FILE_SIZE" default:"2147483648"`
	MaxPages     int           `envconfig:"MAX_PAGES" default:"50"`
	// EarlyStop ends date-bounded account scans at the first page older than earliest.
	EarlyStop bool `envconfig:"EARLY_STOP" default:"true"`

	RootDir      string `envconfig:"ROOT_DIR" default:"./downloads"`
	TempDir      string `envconfig:"TEMP_DIR"`
	Mount        string `envconfig:"MOUNT" default:"/files"`
	Completeness string `envconfig:"COMPLETENESS" default:"size"`

	SettingsFile string `envconfig:"SETTINGS_FILE" default:"./settings.yaml"`
	HistoryFile  string `envconfig:"HISTORY_FILE" default:"./state/history.json"`
	RedisURL     string `envconfig:"REDIS_URL"`

	DouyinAPIBase string `envconfig:"DOUYIN_API_BASE" default:"https://www.douyin.com"`
	TikTokAPIBase string `envconfig:"TIKTOK_API_BASE" default:"https://www.tiktok.com"`

	WebhookURLs    EndpointList `envconfig:"POST_DOWNLOAD_WEBHOOK_URL"`
	WebhookToken   string       `envconfig:"POST_DOWNLOAD_WEBHOOK_TOKEN"`
	WebhookTimeout Seconds      `envconfig:"POST_DOWNLOAD_WEBHOOK_TIMEOUT" default:"2.0"`
	NotifyQueue    int          `envconfig:"NOTIFY_QUEUE_SIZE" default:"64"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// Validate checks the configuration for invalid or missing values.
// Returns an error describing the first invalid setting found.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	if c.Workers <= 0 {
		return fmt.Errorf("worker pool size must be positive: %d", c.Workers)
	}
	if c.FetchRetries < 0 {
		return fmt.Errorf("fetch retries cannot be negative: %d", c.FetchRetries)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max file size must be positive: %d", c.MaxFileSize)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive: %d", c.MaxPages)
	}
	if c.NotifyQueue <= 0 {
		return fmt.Errorf("notification queue size must be positive: %d", c.NotifyQueue)
	}

	if c.RootDir == "" {
		return fmt.Errorf("root directory cannot be empty")
	}
	if c.TempDir != "" {
		root, err := filepath.Abs(c.RootDir)
		if err != nil {
			return fmt.Errorf("resolve root directory: %w", err)
		}
		tmp, err := filepath.Abs(c.TempDir)
		if err != nil {
			return fmt.Errorf("resolve temp directory: %w", err)
		}
		// commits are renames, which cannot cross filesystems
		if !storage.Below(root, tmp) {
			return fmt.Errorf("temp directory %q must be inside the root directory %q", c.TempDir, c.RootDir)
		}
	}
	if c.SettingsFile == "" {
		return fmt.Errorf("settings file cannot be empty")
	}
	if _, err := storage.ParseCompletenessPolicy(c.Completeness); err != nil {
		return err
	}

	for _, base := range []string{c.DouyinAPIBase, c.TikTokAPIBase, c.BaseURL} {
		if base == "" {
			continue
		}
		if u, err := url.Parse(base); err != nil || u.Host == "" {
			return fmt.Errorf("invalid base URL: %q", base)
		}
	}

	return nil
}

// EndpointList is a ';'-separated list of webhook URLs.
type EndpointList []string

func (l *EndpointList) Decode(value string) error {
	var out EndpointList
	for _, raw := range strings.Split(value, ";") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid webhook endpoint %q", raw)
		}
		out = append(out, raw)
	}
	*l = out
	return nil
}

// Seconds accepts a float number of seconds ("2.5") or a duration ("1500ms").
type Seconds time.Duration

func (s *Seconds) Decode(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		*s = Seconds(2 * time.Second)
		return nil
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		if f <= 0 {
			return fmt.Errorf("timeout must be positive: %s", value)
		}
		*s = Seconds(time.Duration(f * float64(time.Second)))
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fmt.Errorf("invalid timeout %q", value)
	}
	*s = Seconds(d)
	return nil
}

func (s Seconds) Duration() time.Duration { return time.Duration(s) }
