package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and the resolved run settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.Print("Akile Checkin", GetVersion())

	logger.Debug().
		Str("site", config.Site.BaseURL).
		Str("engine", config.Browser.Engine).
		Bool("headless", config.Browser.Headless).
		Str("schedule", config.Scheduler.At).
		Bool("once", config.Scheduler.Once).
		Str("log_level", config.Logging.Level).
		Msg("Resolved configuration")
}
