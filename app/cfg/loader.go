package cfg

import (
	"cmp"
	"fmt"
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
	DBPath  string `long:"db-path" env:"DB_PATH" default:"./data/rssbot.db" description:"Path to the SQLite database file"`
	DataDir string `long:"data-dir" env:"DATA_DIR" default:"./data" description:"Directory for auth tokens and other runtime state"`

	// Application configuration
	ConfigFile        string `long:"config-file" env:"CONFIG_FILE" default:"./config.yml" description:"Path to the bot configuration file (accounts, filters)"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of concurrent feed polls (fan-out limit)"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"60" description:"Scheduler tick interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for feed management endpoints (optional)"`

	// Lemmy configuration
	LemmyServer string `long:"lemmy-server" env:"LEMMY_SERVER" description:"Lemmy instance hostname (required)" required:"true"`

	// Polling configuration
	MinInterval   int     `long:"min-interval" env:"MIN_INTERVAL" default:"300" description:"Minimum polling interval in seconds"`
	MaxInterval   int     `long:"max-interval" env:"MAX_INTERVAL" default:"86400" description:"Maximum polling interval in seconds"`
	GrowthFactor  float64 `long:"growth-factor" env:"GROWTH_FACTOR" default:"1.5" description:"Interval growth factor applied while a feed is quiet"`
	ShrinkFactor  float64 `long:"shrink-factor" env:"SHRINK_FACTOR" default:"2.0" description:"Interval shrink divisor applied when a feed has new items"`
	FetchTimeout  int     `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Per-request feed fetch timeout in seconds"`
	PostWindow    int     `long:"post-window" env:"POST_WINDOW" default:"72" description:"Maximum age of articles to post, in hours"`
	RetentionDays int     `long:"retention-days" env:"RETENTION_DAYS" default:"90" description:"Days to keep seen-article records before pruning"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Lemmy RSSBot/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		DataDir:           raw.DataDir,
		ConfigFile:        raw.ConfigFile,
		Port:              raw.Port,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		LemmyServer:       raw.LemmyServer,
		MinInterval:       raw.MinInterval,
		MaxInterval:       raw.MaxInterval,
		GrowthFactor:      raw.GrowthFactor,
		ShrinkFactor:      raw.ShrinkFactor,
		FetchTimeout:      raw.FetchTimeout,
		PostWindow:        raw.PostWindow,
		RetentionDays:     raw.RetentionDays,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if cfg.MinInterval <= 0 || cfg.MaxInterval <= cfg.MinInterval {
		return nil, fmt.Errorf("invalid polling bounds: min=%ds max=%ds", cfg.MinInterval, cfg.MaxInterval)
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
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
