// Package config reads runtime settings for the CLI and worker from the
// environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/billrecon/internal/logger"
	"github.com/dvloznov/billrecon/internal/reconcile"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const envPrefix = "BILLRECON_"

const (
	DefaultSchedule = "*/15 * * * *"
	DefaultTimeZone = "Asia/Shanghai"
	DefaultWorkers  = 5
)

// Config holds every tunable of the import engine and its callers.
type Config struct {
	Log logger.Config

	// Tolerance is the reconciliation epsilon.
	Tolerance decimal.Decimal

	// ProvidersFile and RulesFile are optional YAML overrides for the
	// provider registry and the category rules.
	ProvidersFile string
	RulesFile     string

	// AllowUnreconciled imports bills without a summary as unverified.
	AllowUnreconciled bool
	// Strict turns a discrepancy verdict into a failed import.
	Strict bool

	// Inbox is the directory or gs:// prefix the worker scans for bills.
	Inbox string
	// Archive, when set, receives a copy of every imported bill.
	Archive string
	// Schedule is the worker's cron spec for inbox scans.
	Schedule string
	// TimeZone is the location the schedule is evaluated in.
	TimeZone string
	// Workers is the number of concurrent import workers.
	Workers int

	// NotionToken and NotionDatabase enable mirroring imported
	// transactions into a Notion database.
	NotionToken    string
	NotionDatabase string
}

// NotionEnabled reports whether both Notion settings are present.
func (c Config) NotionEnabled() bool {
	return c.NotionToken != "" && c.NotionDatabase != ""
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Log:       logger.Config{Level: "info", Format: logger.FormatConsole},
		Tolerance: reconcile.DefaultTolerance,
		Schedule:  DefaultSchedule,
		TimeZone:  DefaultTimeZone,
		Workers:   DefaultWorkers,
	}
}

// Load reads envFile (if it exists) into the process environment without
// overriding variables that are already set, then builds a Config from the
// environment. An empty envFile means ".env".
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("Load: reading %s: %w", envFile, err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from BILLRECON_* variables looked up with getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()
	get := func(key string) string {
		return strings.TrimSpace(getenv(envPrefix + key))
	}

	if v := get("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := get("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := get("TOLERANCE"); v != "" {
		eps, err := decimal.NewFromString(v)
		if err != nil || eps.IsNegative() {
			return Config{}, fmt.Errorf("FromEnv: invalid %sTOLERANCE %q", envPrefix, v)
		}
		cfg.Tolerance = eps
	}
	cfg.ProvidersFile = get("PROVIDERS_FILE")
	cfg.RulesFile = get("RULES_FILE")
	cfg.Inbox = get("INBOX")
	cfg.Archive = get("ARCHIVE")
	cfg.NotionToken = get("NOTION_TOKEN")
	cfg.NotionDatabase = get("NOTION_DATABASE")

	var err error
	if cfg.AllowUnreconciled, err = parseBool(get("ALLOW_UNRECONCILED"), "ALLOW_UNRECONCILED"); err != nil {
		return Config{}, err
	}
	if cfg.Strict, err = parseBool(get("STRICT"), "STRICT"); err != nil {
		return Config{}, err
	}

	if v := get("SCHEDULE"); v != "" {
		cfg.Schedule = v
	}
	if v := get("TIMEZONE"); v != "" {
		if _, err := time.LoadLocation(v); err != nil {
			return Config{}, fmt.Errorf("FromEnv: invalid %sTIMEZONE %q: %w", envPrefix, v, err)
		}
		cfg.TimeZone = v
	}
	if v := get("WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("FromEnv: invalid %sWORKERS %q", envPrefix, v)
		}
		cfg.Workers = n
	}

	return cfg, nil
}

// Location resolves TimeZone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func parseBool(v, key string) (bool, error) {
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("FromEnv: invalid %s%s %q", envPrefix, key, v)
	}
	return b, nil
}
