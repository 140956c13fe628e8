package combatlog

import "time"

type options struct {
	minDuration time.Duration
	header      bool
}

// Option configures Process and Events.
type Option func(*options)

// WithMinEncounterDuration sets the duration at or below which an encounter
// is dropped. Default: 35s. Zero also selects the default.
func WithMinEncounterDuration(d time.Duration) Option {
	return func(o *options) {
		o.minDuration = d
	}
}

// WithoutHeader makes Process omit the CSV header row.
func WithoutHeader() Option {
	return func(o *options) {
		o.header = false
	}
}

func defaultOptions() options {
	return options{
		minDuration: 35 * time.Second,
		header:      true,
	}
}
