// Package config loads settings from a config file, a .env file and
// LOSTFOUND_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/adhocore/gronx"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "LOSTFOUND"

type Config struct {
	Telegram TelegramConfig
	Bot      BotConfig
	DB       DBConfig
	Matching MatchingConfig
	Sweeper  SweeperConfig
	Logging  LoggingConfig
}

type TelegramConfig struct {
	Token         string
	WebhookURL    string
	WebhookSecret string
	ListenAddr    string
}

type BotConfig struct {
	AdminIDs  []int64
	Timezone  string
	RateLimit float64 // updates per second per user
	RateBurst int
}

type DBConfig struct {
	Path string
}

type MatchingConfig struct {
	WindowDays int
	MinScore   int
	TopK       int
}

type SweeperConfig struct {
	Cron            string
	ItemMaxAge      time.Duration
	ConversationTTL time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Webhook reports whether updates arrive by webhook instead of polling.
func (c *Config) Webhook() bool {
	return c.Telegram.WebhookURL != ""
}

// Location resolves Bot.Timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Bot.Timezone)
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("telegram.listen_addr", ":8080")
	v.SetDefault("bot.timezone", "UTC")
	v.SetDefault("bot.rate_limit", 1.0)
	v.SetDefault("bot.rate_burst", 5)
	v.SetDefault("db.path", "./data/lostfound.db")
	v.SetDefault("matching.window_days", 7)
	v.SetDefault("matching.min_score", 30)
	v.SetDefault("matching.top_k", 5)
	v.SetDefault("sweeper.cron", "0 3 * * *")
	v.SetDefault("sweeper.item_max_age", 30*24*time.Hour)
	v.SetDefault("sweeper.conversation_ttl", 24*time.Hour)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// NewViper returns a viper instance wired to the LOSTFOUND_ environment.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads .env (if present) and the optional config file into v and
// returns the validated configuration.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	_ = godotenv.Load(".env")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg, err := FromViper(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromViper builds a Config from v without validating it.
func FromViper(v *viper.Viper) (*Config, error) {
	adminIDs, err := parseIDs(v.GetStringSlice("bot.admin_ids"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Telegram: TelegramConfig{
			Token:         v.GetString("telegram.token"),
			WebhookURL:    v.GetString("telegram.webhook_url"),
			WebhookSecret: v.GetString("telegram.webhook_secret"),
			ListenAddr:    v.GetString("telegram.listen_addr"),
		},
		Bot: BotConfig{
			AdminIDs:  adminIDs,
			Timezone:  v.GetString("bot.timezone"),
			RateLimit: v.GetFloat64("bot.rate_limit"),
			RateBurst: v.GetInt("bot.rate_burst"),
		},
		DB: DBConfig{Path: v.GetString("db.path")},
		Matching: MatchingConfig{
			WindowDays: v.GetInt("matching.window_days"),
			MinScore:   v.GetInt("matching.min_score"),
			TopK:       v.GetInt("matching.top_k"),
		},
		Sweeper: SweeperConfig{
			Cron:            v.GetString("sweeper.cron"),
			ItemMaxAge:      v.GetDuration("sweeper.item_max_age"),
			ConversationTTL: v.GetDuration("sweeper.conversation_ttl"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}, nil
}

// parseIDs accepts a list or a single comma separated string, as env vars
// arrive.
func parseIDs(raw []string) ([]int64, error) {
	var ids []int64
	for _, entry := range raw {
		for _, s := range strings.Split(entry, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			var id int64
			if _, err := fmt.Sscan(s, &id); err != nil {
				return nil, fmt.Errorf("invalid bot.admin_ids entry %q", s)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Validate checks required settings and ranges.
func (c *Config) Validate() error {
	var errs []error

	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if c.Webhook() && c.Telegram.WebhookSecret == "" {
		errs = append(errs, errors.New("telegram.webhook_secret is required in webhook mode"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("bot.timezone: %w", err))
	}
	if c.Bot.RateLimit <= 0 || c.Bot.RateBurst < 1 {
		errs = append(errs, errors.New("bot.rate_limit must be > 0 and bot.rate_burst >= 1"))
	}
	if c.DB.Path == "" {
		errs = append(errs, errors.New("db.path is required"))
	}
	if c.Matching.WindowDays < 0 {
		errs = append(errs, errors.New("matching.window_days must not be negative"))
	}
	if c.Matching.MinScore < 0 || c.Matching.MinScore > 100 {
		errs = append(errs, errors.New("matching.min_score must be between 0 and 100"))
	}
	if c.Matching.TopK < 1 {
		errs = append(errs, errors.New("matching.top_k must be at least 1"))
	}
	if !gronx.New().IsValid(c.Sweeper.Cron) {
		errs = append(errs, fmt.Errorf("sweeper.cron: invalid cron expression %q", c.Sweeper.Cron))
	}
	if c.Sweeper.ItemMaxAge <= 0 || c.Sweeper.ConversationTTL <= 0 {
		errs = append(errs, errors.New("sweeper.item_max_age and sweeper.conversation_ttl must be positive"))
	}

	return errors.Join(errs...)
}
