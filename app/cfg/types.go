package cfg

import "time"

type Cfg struct {
	// Storage configuration
	DBPath string

	// Application configuration
	FeedsDir     string
	Port         string
	APIAccessKey string

	// Feed processing configuration
	RequestTimeout   time.Duration
	PollInterval     time.Duration
	BackoffIntervals []time.Duration

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
