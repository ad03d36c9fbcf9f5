package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"ytc/internal/broadcast"
)

// LoadDotEnv loads ENV_FILE when set, otherwise ./.env if present. Values
// from ENV_FILE override the process environment; .env does not. It
// returns the file that was loaded, if any.
func LoadDotEnv() (string, error) {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Overload(envFile); err != nil {
			return "", err
		}
		return envFile, nil
	}
	if err := godotenv.Load(); err == nil {
		return ".env", nil
	}
	return "", nil
}

// Load reads the config file at path, then applies YTC_* variables. An
// empty path yields the defaults plus the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, broadcast.NotFoundf("config %s not found", path)
			}
			return nil, err
		}
		cfg = &Config{}
		if err := decodeStrict(path, b, cfg); err != nil {
			return nil, broadcast.Parsef("config %s: %v", path, err)
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays YTC_* variables onto cfg.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("YTC_LOG_LEVEL", &cfg.Logging.Level)
	str("YTC_CLIENT_SECRETS", &cfg.YouTube.ClientSecrets)
	str("YTC_USER", &cfg.YouTube.User)
	str("YTC_TOKEN_DIR", &cfg.YouTube.TokenDir)
	str("YTC_TIMEZONE", &cfg.Timezone)

	if v, ok := lookup("YTC_STORAGE_DRIVER"); ok && v != "" {
		if cfg.Storage == nil {
			cfg.Storage = &StorageConfig{}
		}
		cfg.Storage.Driver = v
	}
	if cfg.Storage != nil {
		str("YTC_STORAGE_PATH", &cfg.Storage.Path)
		str("YTC_STORAGE_DSN", &cfg.Storage.DSN)
	}

	if v, ok := lookup("YTC_TELEGRAM_TOKEN"); ok && v != "" {
		if cfg.Notifier == nil {
			cfg.Notifier = &NotifierConfig{Enabled: true}
		}
		cfg.Notifier.Token = v
	}
	if v, ok := lookup("YTC_TELEGRAM_CHAT_ID"); ok && v != "" && cfg.Notifier != nil {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return broadcast.Parsef("YTC_TELEGRAM_CHAT_ID: %v", err)
		}
		cfg.Notifier.ChatID = id
	}
	return nil
}

func (c *Config) validate() error {
	if _, err := c.Location(); err != nil {
		return broadcast.Parsef("timezone %q: %v", c.Timezone, err)
	}
	if _, err := ParseDurationField("youtube.timeout", c.YouTube.Timeout); err != nil {
		return err
	}
	if c.YouTube.RatePerSec < 0 {
		return broadcast.Parsef("youtube.rate_per_sec must be >= 0")
	}
	if s := c.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none", "file", "sqlite", "sqlite3", "redis", "postgres", "postgresql", "pgx":
		default:
			return broadcast.Parsef("storage.driver %q is not supported", s.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			return err
		}
	}
	if n := c.Notifier; n != nil && n.Enabled {
		if strings.TrimSpace(n.Token) == "" || n.ChatID == 0 {
			return broadcast.Parsef("notifier: token and chat_id are required when enabled")
		}
	}
	if a := c.Autopilot; a != nil {
		if _, err := ParseDurationField("autopilot.timeout", a.Timeout); err != nil {
			return err
		}
	}
	return nil
}
