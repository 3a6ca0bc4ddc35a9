package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"signal-systemv1/internal/model"
	"signal-systemv1/internal/strategy"
)

var validate = validator.New()

// Config holds all application configuration loaded from a YAML file
// with environment-variable overrides for secrets.
type Config struct {
	Environment string `yaml:"environment" default:"development"`
	LogLevel    string `yaml:"log_level" default:"info" validate:"oneof=debug info warn warning error"`

	Feed struct {
		Endpoint         string        `yaml:"endpoint" validate:"required,url"`
		Origin           string        `yaml:"origin" validate:"required,url"`
		SessionToken     string        `yaml:"session_token" validate:"required"`
		UID              string        `yaml:"uid" validate:"required"`
		Locale           string        `yaml:"locale" default:"en"`
		ContextPath      string        `yaml:"context_path" default:"/trade"`
		ReconnectDelay   time.Duration `yaml:"reconnect_delay" default:"5s"`
		HandshakeTimeout time.Duration `yaml:"handshake_timeout" default:"10s"`
	} `yaml:"feed"`

	// Assets subscribed when upstream discovery returns nothing.
	Assets []string `yaml:"assets"`

	// Timeframes in seconds; the smallest is the primary series, the
	// middle and largest confirm it.
	Timeframes []int `yaml:"timeframes" default:"[60,180,300]" validate:"min=1,dive,oneof=60 120 180 300"`

	Strategy struct {
		Family string `yaml:"family" default:"composite" validate:"oneof=trend reversal composite"`
	} `yaml:"strategy"`

	Sweep struct {
		Interval time.Duration `yaml:"interval" default:"5s"`
	} `yaml:"sweep"`

	Store struct {
		Capacity int `yaml:"capacity" default:"50" validate:"gte=2"`
	} `yaml:"store"`

	Dashboard struct {
		Addr string `yaml:"addr" default:":8080"`
	} `yaml:"dashboard"`

	Metrics struct {
		Addr string `yaml:"addr" default:":9090"`
	} `yaml:"metrics"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	SQLite struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"data/candles.db"`
	} `yaml:"sqlite"`

	Kafka struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic" default:"signals"`
	} `yaml:"kafka"`

	Telegram struct {
		Enabled  bool     `yaml:"enabled"`
		BotToken string   `yaml:"bot_token"`
		ChatIDs  []string `yaml:"chat_ids"`
	} `yaml:"telegram"`

	Webhook struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
	} `yaml:"webhook"`
}

// Load reads and parses a YAML configuration file, applies defaults,
// environment overrides and validation.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// applyEnv overrides secret-bearing fields from environment variables
// so credentials stay out of the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("SESSION_TOKEN"); v != "" {
		c.Feed.SessionToken = v
	}
	if v := os.Getenv("UID"); v != "" {
		c.Feed.UID = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
}

// Validate checks the configuration beyond struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if len(c.Telegram.ChatIDs) == 0 {
			return fmt.Errorf("telegram.chat_ids cannot be empty when telegram is enabled")
		}
	}
	if c.Webhook.Enabled && c.Webhook.URL == "" {
		return fmt.Errorf("webhook.url is required when webhook is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if min := familyMinBars(c.Strategy.Family); c.Store.Capacity < min {
		return fmt.Errorf("store.capacity %d is below the %d bars the %s family needs to warm up",
			c.Store.Capacity, min, c.Strategy.Family)
	}
	return nil
}

// familyMinBars returns the warm-up history the selected rule family
// needs before it can produce anything but HOLD.
func familyMinBars(family string) int {
	mb := strategy.DefaultMinBars()
	switch strategy.Family(family) {
	case strategy.FamilyTrend:
		return mb.Trend
	case strategy.FamilyReversal:
		return mb.Reversal
	default:
		return mb.Composite
	}
}

// ParseTFs returns the enabled timeframes sorted ascending with
// duplicates removed.
func (c *Config) ParseTFs() []model.Timeframe {
	seen := map[int]bool{}
	tfs := make([]model.Timeframe, 0, len(c.Timeframes))
	for _, n := range c.Timeframes {
		if seen[n] {
			continue
		}
		seen[n] = true
		tfs = append(tfs, model.Timeframe(n))
	}
	sort.Slice(tfs, func(i, j int) bool { return tfs[i] < tfs[j] })
	return tfs
}

// ConfirmationTFs returns the (base, mid, high) assignment derived
// from the sorted enabled timeframes. With fewer than three enabled
// the slots collapse onto the available ones.
func (c *Config) ConfirmationTFs() (base, mid, high model.Timeframe) {
	tfs := c.ParseTFs()
	base = tfs[0]
	mid = tfs[len(tfs)/2]
	high = tfs[len(tfs)-1]
	return base, mid, high
}
