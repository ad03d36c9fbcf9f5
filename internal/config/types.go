package config

import (
	"strings"
	"time"
)

// Config is the optional application config file (ytc.yaml or ytc.json).
// Every section may be omitted; flags and YTC_* variables fill the gaps.
type Config struct {
	Logging   LoggingConfig    `json:"logging"`
	YouTube   YouTubeConfig    `json:"youtube"`
	Timezone  string           `json:"timezone,omitempty"`
	Storage   *StorageConfig   `json:"storage,omitempty"`
	Notifier  *NotifierConfig  `json:"notifier,omitempty"`
	Autopilot *AutopilotConfig `json:"autopilot,omitempty"`
}

type LoggingConfig struct {
	Level   string `json:"level"`
	Console bool   `json:"console"`
	// JSON switches console output to JSON lines, e.g. under journald.
	JSON bool        `json:"json,omitempty"`
	File LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// YouTubeConfig holds API credentials and pacing.
//
// Example:
//
//	youtube:
//	  client_secrets: ./client_secrets.json
//	  user: church
//	  token_dir: ~/.config/ytc
//	  timeout: 30s
//	  rate_per_sec: 5
type YouTubeConfig struct {
	ClientSecrets string `json:"client_secrets,omitempty"`
	User          string `json:"user,omitempty"`
	TokenDir      string `json:"token_dir,omitempty"`
	// Timeout is a Go duration string; default 30s.
	Timeout    string  `json:"timeout,omitempty"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
	Burst      int     `json:"burst,omitempty"`
}

// StorageConfig selects the occurrence ledger.
//
// Driver values: none, file, sqlite, redis, postgres. Path is used by file
// and sqlite, DSN by redis (redis:// URL) and postgres.
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`
	KeyPrefix   string `json:"key_prefix,omitempty"`   // redis only
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// NotifierConfig announces created broadcasts to a Telegram chat.
type NotifierConfig struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token,omitempty"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	QueueSize  int    `json:"queue_size,omitempty"`
}

// AutopilotConfig drives the long-running mode.
//
// Schedule accepts a cron expression ("0 6 * * 1"), a Go duration ("12h")
// or HH:MM as an interval.
type AutopilotConfig struct {
	Templates  string       `json:"templates"`
	Schedule   string       `json:"schedule"`
	Horizon    int          `json:"horizon,omitempty"`
	IDs        []string     `json:"ids,omitempty"`
	RunOnStart bool         `json:"run_on_start,omitempty"`
	Export     ExportConfig `json:"export,omitempty"`
	// Timeout bounds a single run; Go duration string, default 10m.
	Timeout string `json:"timeout,omitempty"`
}

type ExportConfig struct {
	Dir     string   `json:"dir,omitempty"`
	Buckets []string `json:"buckets,omitempty"`
	Prefix  string   `json:"prefix,omitempty"`
}

// Location resolves the scheduling time zone. Empty means the local zone.
func (c *Config) Location() (*time.Location, error) {
	tz := ""
	if c != nil {
		tz = strings.TrimSpace(c.Timezone)
	}
	if tz == "" {
		return time.Local, nil
	}
	return time.LoadLocation(tz)
}

// Default returns the config used when no file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		YouTube: YouTubeConfig{User: "user", Timeout: "30s", RatePerSec: 5, Burst: 2},
	}
}

// fillDefaults sets zero fields to their defaults without touching anything
// the file set explicitly.
func (c *Config) fillDefaults() {
	d := Default()
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.YouTube.User == "" {
		c.YouTube.User = d.YouTube.User
	}
	if c.YouTube.Timeout == "" {
		c.YouTube.Timeout = d.YouTube.Timeout
	}
	if c.YouTube.RatePerSec == 0 {
		c.YouTube.RatePerSec = d.YouTube.RatePerSec
	}
	if c.YouTube.Burst == 0 {
		c.YouTube.Burst = d.YouTube.Burst
	}
	if c.Autopilot != nil && c.Autopilot.Horizon <= 0 {
		c.Autopilot.Horizon = 4
	}
}
