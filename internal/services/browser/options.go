package browser

import (
	"fmt"
	"time"

	"github.com/ternarybob/akile-checkin/internal/common"
	"github.com/ternarybob/akile-checkin/internal/interfaces"
	"github.com/ternarybob/arbor"
)

const (
	EngineChromeDP = "chromedp"
	EngineRod      = "rod"
)

// Options holds everything a driver needs to launch and talk to the site
type Options struct {
	Engine           string
	Headless         bool
	ExecPath         string
	UserAgent        string
	WindowWidth      int
	WindowHeight     int
	IgnoreCertErrors bool
	StartupTimeout   time.Duration
	FetchTimeout     time.Duration
	ReadyTimeout     time.Duration

	BaseURL         string
	UserInfoURL     string
	CheckinURL      string
	TokenStorageKey string
}

// OptionsFromConfig maps configuration onto driver options
func OptionsFromConfig(config *common.Config) Options {
	return Options{
		Engine:           config.Browser.Engine,
		Headless:         config.Browser.Headless,
		ExecPath:         config.Browser.ExecPath,
		UserAgent:        config.Browser.UserAgent,
		WindowWidth:      config.Browser.WindowWidth,
		WindowHeight:     config.Browser.WindowHeight,
		IgnoreCertErrors: config.Browser.IgnoreCertErrors,
		StartupTimeout:   config.Browser.StartupTimeoutDuration(),
		FetchTimeout:     config.Browser.InfoTimeoutDuration(),
		ReadyTimeout:     config.Browser.ReadyTimeoutDuration(),
		BaseURL:          config.Site.BaseURL,
		UserInfoURL:      config.Site.UserInfoURL(),
		CheckinURL:       config.Site.CheckinURL(),
		TokenStorageKey:  config.Site.TokenStorageKey,
	}
}

// NewDriver returns the session driver for the configured engine
func NewDriver(opts Options, logger arbor.ILogger) (interfaces.SessionDriver, error) {
	switch opts.Engine {
	case EngineChromeDP, "":
		return NewChromeDPDriver(opts, logger), nil
	case EngineRod:
		return NewRodDriver(opts, logger), nil
	default:
		return nil, fmt.Errorf("unknown browser engine: %s", opts.Engine)
	}
}
