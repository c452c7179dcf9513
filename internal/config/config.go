// Package config loads and validates the application configuration
// from defaults, an optional JSON file and MYDEALZ_-prefixed
// environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	apperrors "github.com/darkkaiser/mydealz-monitor/internal/pkg/errors"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// AppName is the global application identifier.
	AppName string = "mydealz-monitor"

	// DefaultFilename is the configuration file consulted when no
	// explicit path is given on the command line.
	DefaultFilename = AppName + ".json"

	// envPrefix scopes the environment variables read by Load.
	envPrefix = "MYDEALZ_"
)

// Default values applied before any file or environment overrides.
const (
	DefaultPollIntervalSec = 60
	DefaultPageSize        = 50
	DefaultSeenLimit       = 5000
	DefaultTimeoutSec      = 30
	DefaultMaxRetries      = 3
	DefaultRetryDelay      = "2s"
	DefaultStateFilePath   = "state.json"
)

// AppConfig is the root of the application configuration.
type AppConfig struct {
	Debug    bool           `json:"debug"`
	MyDealz  MyDealzConfig  `json:"mydealz"`
	Telegram TelegramConfig `json:"telegram"`
	State    StateConfig    `json:"state"`
	HTTP     HTTPConfig     `json:"http"`
	Startup  StartupConfig  `json:"startup"`
}

// MyDealzConfig describes the monitored deal thread and polling
// behavior.
type MyDealzConfig struct {
	// ThreadURL is the full URL of the monitored deal thread.
	ThreadURL string `json:"thread_url" validate:"required,http_url"`

	// ThreadID overrides thread-id resolution from the URL when set.
	ThreadID string `json:"thread_id" validate:"omitempty,numeric"`

	PollIntervalSec int `json:"poll_interval_sec" validate:"min=1"`

	// PageSize is the page size of the structured comment query.
	PageSize int `json:"page_size" validate:"min=1,max=200"`

	// SeenLimit caps the persisted seen-comment-id sequence; the oldest
	// entries are evicted beyond it.
	SeenLimit int `json:"seen_limit" validate:"min=1"`

	// UserAgents optionally replaces the built-in browser pool.
	UserAgents []string `json:"user_agents"`
}

// TelegramConfig carries the notification channel credentials.
type TelegramConfig struct {
	BotToken string `json:"bot_token" validate:"required,telegram_bot_token"`
	ChatID   int64  `json:"chat_id" validate:"required"`
}

// StateConfig locates the persisted monitor state.
type StateConfig struct {
	FilePath string `json:"file_path" validate:"required"`
}

// HTTPConfig tunes the outbound HTTP client.
type HTTPConfig struct {
	TimeoutSec int    `json:"timeout_sec" validate:"min=1"`
	MaxRetries int    `json:"max_retries" validate:"min=0,max=10"`
	RetryDelay string `json:"retry_delay"`
}

// StartupConfig describes the optional notification sent once when the
// monitor starts.
type StartupConfig struct {
	Message  string `json:"message"`
	ImageURL string `json:"image_url" validate:"omitempty,http_url"`
}

// PollInterval returns the poll interval as a Duration.
func (c *MyDealzConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// Timeout returns the request timeout as a Duration.
func (c *HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c *AppConfig) validate() error {
	if err := validateStruct(c, "configuration"); err != nil {
		return err
	}

	if _, err := time.ParseDuration(c.HTTP.RetryDelay); err != nil {
		return apperrors.Wrapf(err, apperrors.InvalidInput, "HTTP retry delay (retry_delay) is not a valid duration: '%s' (examples: 1s, 500ms)", c.HTTP.RetryDelay)
	}

	return nil
}

// Load reads the default configuration file.
func Load() (*AppConfig, error) {
	return LoadWithFile(DefaultFilename)
}

// LoadWithFile builds an AppConfig from the given file plus defaults
// and environment overrides. A local .env file is applied to the
// process environment first, so credentials can stay out of the JSON
// file.
func LoadWithFile(filename string) (*AppConfig, error) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	k := koanf.New(".")

	// 1. Defaults (lowest precedence).
	err := k.Load(confmap.Provider(map[string]interface{}{
		"mydealz.poll_interval_sec": DefaultPollIntervalSec,
		"mydealz.page_size":         DefaultPageSize,
		"mydealz.seen_limit":        DefaultSeenLimit,
		"state.file_path":           DefaultStateFilePath,
		"http.timeout_sec":          DefaultTimeoutSec,
		"http.max_retries":          DefaultMaxRetries,
		"http.retry_delay":          DefaultRetryDelay,
	}, "."), nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "failed to load the built-in configuration defaults")
	}

	// 2. JSON configuration file. The file is optional; everything can
	// come from the environment.
	if err := k.Load(file.Provider(filename), json.Parser()); err != nil {
		if !os.IsNotExist(err) {
			return nil, apperrors.Wrapf(err, apperrors.InvalidInput, "failed to load the configuration file '%s'", filename)
		}
	}

	// 3. Environment variables (highest precedence). A double
	// underscore separates hierarchy levels:
	// MYDEALZ_MYDEALZ__THREAD_URL -> mydealz.thread_url
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "failed to load configuration from environment variables")
	}

	unmarshalConf := koanf.UnmarshalConf{
		Tag: "json",
		DecoderConfig: &mapstructure.DecoderConfig{
			ErrorUnused:      true,
			WeaklyTypedInput: true,
		},
	}
	var appConfig AppConfig
	if err := k.UnmarshalWithConf("", &appConfig, unmarshalConf); err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "failed to decode the configuration into the application structure")
	}

	if err := appConfig.validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.InvalidInput, fmt.Sprintf("validation of the configuration ('%s') failed", filename))
	}

	return &appConfig, nil
}
