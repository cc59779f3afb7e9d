package cfg

import (
	"cmp"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./data/rss_feeds.db" description:"Path to the SQLite database file"`

	// Application configuration
	FeedsDir     string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing feed definition files"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Feed processing configuration
	RequestTimeout   int   `long:"request-timeout" env:"REQUEST_TIMEOUT" default:"3" description:"Timeout of a single feed request in seconds"`
	PollInterval     int   `long:"poll-interval" env:"POLL_INTERVAL" default:"30" description:"Wait after a successful refresh in seconds"`
	BackoffIntervals []int `long:"backoff" env:"BACKOFF_INTERVALS" env-delim:"," default:"120" default:"300" default:"480" description:"Escalating waits after consecutive failures in seconds"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"RSS Feeds/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load parses the process arguments and environment. It returns nil, nil when
// help was requested.
func Load() (*Cfg, error) {
	return Parse(os.Args[1:])
}

func Parse(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validate(&raw); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	backoff := make([]time.Duration, 0, len(raw.BackoffIntervals))
	for _, seconds := range raw.BackoffIntervals {
		backoff = append(backoff, time.Duration(seconds)*time.Second)
	}

	cfg := &Cfg{
		DBPath:           raw.DBPath,
		FeedsDir:         raw.FeedsDir,
		Port:             raw.Port,
		APIAccessKey:     raw.APIAccessKey,
		RequestTimeout:   time.Duration(raw.RequestTimeout) * time.Second,
		PollInterval:     time.Duration(raw.PollInterval) * time.Second,
		BackoffIntervals: backoff,
		UserAgent:        raw.UserAgent,
		Timezone:         raw.Timezone,
		Debug:            raw.Debug,
		Version:          GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func validate(raw *rawCfg) error {
	if raw.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if raw.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	for i, seconds := range raw.BackoffIntervals {
		if seconds <= 0 {
			return fmt.Errorf("backoff interval at index %d must be positive", i)
		}
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
