package tracker

import (
	"backend-fleettrack/internal/config"
	"backend-fleettrack/internal/transport"
)

// OptionsFromConfig builds tracker options from the environment-driven
// config: poll interval bounds and speed bands for the policy, backoff and
// retry budget for the push channel. Zero or missing knobs keep the
// defaults.
func OptionsFromConfig(cfg config.Config, pollURL, channelURL string) Options {
	policy := DefaultPollPolicy()
	if cfg.PollMinMs > 0 {
		policy.Min = cfg.PollMin()
	}
	if cfg.PollMaxMs > 0 {
		policy.Max = cfg.PollMax()
	}
	if cfg.FastSpeedKmh > 0 {
		policy.FastSpeedKmh = cfg.FastSpeedKmh
	}
	if cfg.MovingSpeedKmh > 0 {
		policy.MovingSpeedKmh = cfg.MovingSpeedKmh
	}

	return Options{
		PollURL: pollURL,
		Policy:  policy,
		ChannelOptions: transport.Options{
			URL:         channelURL,
			BaseDelay:   cfg.BackoffBase(),
			MaxDelay:    cfg.BackoffMax(),
			MaxAttempts: cfg.MaxReconnects,
		},
	}
}
