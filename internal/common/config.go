package common

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// DefaultConfigFile is picked up from the working directory when no -config flag is given
const DefaultConfigFile = "akile-checkin.toml"

// ErrInvalidConfig is returned when the merged configuration fails validation
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Site        SiteConfig       `toml:"site"`
	Credential  CredentialConfig `toml:"credential"`
	Browser     BrowserConfig    `toml:"browser"`
	Checkin     CheckinConfig    `toml:"checkin"`
	Scheduler   SchedulerConfig  `toml:"scheduler"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
}

// SiteConfig describes the target site and its two API endpoints
type SiteConfig struct {
	BaseURL         string `toml:"base_url" validate:"required,url"`            // Page the session is opened on
	APIBaseURL      string `toml:"api_base_url" validate:"required,url"`        // Host of the JSON API
	UserInfoPath    string `toml:"user_info_path" validate:"required,startswith=/"`
	CheckinPath     string `toml:"checkin_path" validate:"required,startswith=/"`
	TokenStorageKey string `toml:"token_storage_key" validate:"required"` // localStorage key holding the credential
}

// UserInfoURL returns the absolute user info endpoint
func (s SiteConfig) UserInfoURL() string {
	return strings.TrimRight(s.APIBaseURL, "/") + s.UserInfoPath
}

// CheckinURL returns the absolute check-in endpoint
func (s SiteConfig) CheckinURL() string {
	return strings.TrimRight(s.APIBaseURL, "/") + s.CheckinPath
}

type CredentialConfig struct {
	Token     string `toml:"token"`      // Raw bearer token
	TokenFile string `toml:"token_file"` // Plain-text file holding the token, read verbatim
}

// BrowserConfig controls the automation engine and its launch flags
type BrowserConfig struct {
	Engine                 string `toml:"engine" validate:"oneof=chromedp rod"`
	Headless               bool   `toml:"headless"`
	ExecPath               string `toml:"exec_path"` // Optional Chrome binary; engine default lookup when empty
	UserAgent              string `toml:"user_agent" validate:"required"`
	WindowWidth            int    `toml:"window_width" validate:"gt=0"`
	WindowHeight           int    `toml:"window_height" validate:"gt=0"`
	IgnoreCertErrors       bool   `toml:"ignore_cert_errors"`
	StartupTimeout         string `toml:"startup_timeout" validate:"required"` // e.g. "60s" - launch + credential injection
	InfoTimeout            string `toml:"info_timeout" validate:"required"`    // e.g. "10s" - bound on each in-page fetch
	ReadyTimeout           string `toml:"ready_timeout" validate:"required"`   // e.g. "10s" - wait for document readiness
	FreshSessionPerCheckin bool   `toml:"fresh_session_per_checkin"`          // Open a new browser for every scheduled check-in
}

// StartupTimeoutDuration returns the parsed startup timeout
func (b BrowserConfig) StartupTimeoutDuration() time.Duration {
	return ParseDurationOr(b.StartupTimeout, 60*time.Second)
}

// InfoTimeoutDuration returns the parsed fetch timeout
func (b BrowserConfig) InfoTimeoutDuration() time.Duration {
	return ParseDurationOr(b.InfoTimeout, 10*time.Second)
}

// ReadyTimeoutDuration returns the parsed readiness timeout
func (b BrowserConfig) ReadyTimeoutDuration() time.Duration {
	return ParseDurationOr(b.ReadyTimeout, 10*time.Second)
}

type CheckinConfig struct {
	// Substring of status_msg that marks an idempotent "already checked in today" reply.
	// The server wording can change, so it lives in config rather than code.
	AlreadyCheckedInPhrase string `toml:"already_checked_in_phrase" validate:"required"`
}

// SchedulerConfig controls the daily trigger
type SchedulerConfig struct {
	At           string `toml:"at" validate:"required,datetime=15:04"` // Daily wall-clock time, HH:MM
	PollInterval string `toml:"poll_interval" validate:"required"`     // e.g. "60s"
	Once         bool   `toml:"once"`                                  // Single check-in, no loop
	RunOnStartup bool   `toml:"run_on_startup"`                        // Check in immediately before entering the loop
}

// PollIntervalDuration returns the parsed poll interval
func (s SchedulerConfig) PollIntervalDuration() time.Duration {
	return ParseDurationOr(s.PollInterval, 60*time.Second)
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Enabled        bool   `toml:"enabled"`
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=debug info warn error"`
	Output     []string `toml:"output" validate:"dive,oneof=stdout console file"`
	FilePath   string   `toml:"file_path"`   // Append-only log file (default: "checkin.log")
	TimeFormat string   `toml:"time_format"` // Time format for log lines
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "production",
		Site: SiteConfig{
			BaseURL:         "https://akile.io",
			APIBaseURL:      "https://api.akile.io",
			UserInfoPath:    "/api/v1/user/info",
			CheckinPath:     "/api/v1/user/Checkin",
			TokenStorageKey: "token",
		},
		Browser: BrowserConfig{
			Engine:           "chromedp",
			Headless:         true,
			UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36",
			WindowWidth:      1920,
			WindowHeight:     1080,
			IgnoreCertErrors: true,
			StartupTimeout:   "60s",
			InfoTimeout:      "10s",
			ReadyTimeout:     "10s",
		},
		Checkin: CheckinConfig{
			AlreadyCheckedInPhrase: "今日已签到",
		},
		Scheduler: SchedulerConfig{
			At:           "08:30",
			PollInterval: "60s",
			RunOnStartup: true,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Enabled: true,
				Path:    "./data/history",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			FilePath:   "checkin.log",
			TimeFormat: "2006-01-02 15:04:05",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied afterwards via ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// DiscoverConfigFiles returns the default config file when it exists in the working directory
func DiscoverConfigFiles() []string {
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return []string{DefaultConfigFile}
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("AKILE_ENV"); env != "" {
		config.Environment = env
	}

	// Credential
	if token := os.Getenv("AKILE_TOKEN"); token != "" {
		config.Credential.Token = token
	}
	if tokenFile := os.Getenv("AKILE_TOKEN_FILE"); tokenFile != "" {
		config.Credential.TokenFile = tokenFile
	}

	// Scheduler
	if at := os.Getenv("AKILE_SCHEDULE"); at != "" {
		config.Scheduler.At = at
	}

	// Browser
	if engine := os.Getenv("AKILE_BROWSER_ENGINE"); engine != "" {
		config.Browser.Engine = engine
	}
	if headless := os.Getenv("AKILE_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = h
		}
	}
	if execPath := os.Getenv("AKILE_CHROME_PATH"); execPath != "" {
		config.Browser.ExecPath = execPath
	}

	// Logging
	if level := os.Getenv("AKILE_LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}
}

// FlagOverrides carries the command-line values that take precedence over everything else
type FlagOverrides struct {
	Token      string
	TokenFile  string
	Schedule   string
	Engine     string
	Once       bool
	Debug      bool
	NoHeadless bool
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, flags FlagOverrides) {
	if flags.Token != "" {
		config.Credential.Token = flags.Token
	}
	if flags.TokenFile != "" {
		config.Credential.TokenFile = flags.TokenFile
	}
	if flags.Schedule != "" {
		config.Scheduler.At = flags.Schedule
	}
	if flags.Engine != "" {
		config.Browser.Engine = flags.Engine
	}
	if flags.Once {
		config.Scheduler.Once = true
	}
	if flags.Debug {
		config.Logging.Level = "debug"
	}
	if flags.NoHeadless {
		config.Browser.Headless = false
	}
}

// Validate checks the merged configuration
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	for name, value := range map[string]string{
		"browser.startup_timeout": c.Browser.StartupTimeout,
		"browser.info_timeout":    c.Browser.InfoTimeout,
		"browser.ready_timeout":   c.Browser.ReadyTimeout,
		"scheduler.poll_interval": c.Scheduler.PollInterval,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name)
		}
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ParseDurationOr parses a duration string, falling back to def when empty or invalid
func ParseDurationOr(value string, def time.Duration) time.Duration {
	if strings.TrimSpace(value) == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
