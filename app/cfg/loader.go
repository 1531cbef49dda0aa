package cfg

import (
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	if Version != "" {
		return Version
	}
	return "unknown"
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./discogs-helper.db" description:"Path to the SQLite database file"`

	// Discogs account configuration
	DiscogsUsername string `long:"discogs-username" env:"DISCOGS_USERNAME" description:"Discogs username of the linked account (required)" required:"true"`
	DiscogsToken    string `long:"discogs-token" env:"DISCOGS_TOKEN" description:"Discogs personal access token (required)" required:"true"`

	// Last.fm configuration
	LastfmAPIKey string `long:"lastfm-api-key" env:"LASTFM_API_KEY" description:"Last.fm API key for recommendations (optional)"`

	// Application configuration
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl           string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://vinyl.example.com)"`
	CoversDir         string `long:"covers-dir" env:"COVERS_DIR" default:"./covers" description:"Directory for downloaded cover images"`
	ExportDir         string `long:"export-dir" env:"EXPORT_DIR" default:"./export" description:"Directory for static HTML collection snapshots"`
	ExportConfigFile  string `long:"export-config" env:"EXPORT_CONFIG" default:"./export.yml" description:"YAML file with snapshot site metadata (optional)"`
	ImportPageSize    int    `long:"import-page-size" env:"IMPORT_PAGE_SIZE" default:"25" description:"Items fetched per import batch call"`
	ImportTTLHours    int    `long:"import-ttl-hours" env:"IMPORT_TTL_HOURS" default:"168" description:"Hours of inactivity before a pending import is expired"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"300" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"DiscogsHelper/1.0" description:"User agent string for outgoing HTTP requests"`
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
		DiscogsUsername:   raw.DiscogsUsername,
		DiscogsToken:      raw.DiscogsToken,
		LastfmAPIKey:      raw.LastfmAPIKey,
		Port:              raw.Port,
		BaseUrl:           raw.BaseUrl,
		CoversDir:         raw.CoversDir,
		ExportDir:         raw.ExportDir,
		ExportConfigFile:  raw.ExportConfigFile,
		ImportPageSize:    raw.ImportPageSize,
		ImportTTLHours:    raw.ImportTTLHours,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
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

// Set replaces the global configuration. Intended for tests.
func Set(c *Cfg) {
	globalCfg = c
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
