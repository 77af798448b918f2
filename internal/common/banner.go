package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the resolved target
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("MapCheck", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("base_url", config.Target.BaseURL).
		Str("engine", config.Browser.Engine).
		Bool("headless", config.Browser.Headless).
		Str("results_dir", config.Output.ResultsDir).
		Msg("MapCheck starting")
}
