package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dkeye/callstate/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode     string         `mapstructure:"mode"`
	Port     int            `mapstructure:"port"`
	LogLevel string         `mapstructure:"log_level"`
	Secret   string         `mapstructure:"secret"`
	History  HistoryConfig  `mapstructure:"history"`
	Captions CaptionsConfig `mapstructure:"captions"`
	Render   RenderConfig   `mapstructure:"render"`
	Demo     DemoConfig     `mapstructure:"demo"`
}

type HistoryConfig struct {
	MaxEndedCalls         int `mapstructure:"max_ended_calls"`
	MaxEndedIncomingCalls int `mapstructure:"max_ended_incoming_calls"`
	MaxEndedParticipants  int `mapstructure:"max_ended_participants"`
}

type CaptionsConfig struct {
	MaxCaptions int `mapstructure:"max_captions"`
}

type RenderConfig struct {
	// CreateTimeout bounds view creation; zero disables the bound.
	CreateTimeout time.Duration `mapstructure:"create_timeout"`
}

type DemoConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// Capacities converts the history settings for the snapshot store.
func (c *Config) Capacities() domain.Capacities {
	return domain.Capacities{
		EndedCalls:         c.History.MaxEndedCalls,
		EndedIncomingCalls: c.History.MaxEndedIncomingCalls,
		EndedParticipants:  c.History.MaxEndedParticipants,
		Captions:           c.Captions.MaxCaptions,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("secret", "callstate-inspector")
	v.SetDefault("history.max_ended_calls", domain.DefaultHistoryCapacity)
	v.SetDefault("history.max_ended_incoming_calls", domain.DefaultHistoryCapacity)
	v.SetDefault("history.max_ended_participants", domain.DefaultHistoryCapacity)
	v.SetDefault("captions.max_captions", domain.DefaultMaxCaptions)
	v.SetDefault("render.create_timeout", "0s")
	v.SetDefault("demo.enabled", false)
	v.SetDefault("demo.interval", "2s")
}

// Default returns the built-in settings without reading files or env.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &cfg
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev when unset) on top of
// the defaults. CALLSTATE_* variables override both, e.g.
// CALLSTATE_RENDER_CREATE_TIMEOUT=5s.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	setDefaults(v)
	v.SetEnvPrefix("CALLSTATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Dur("create_timeout", cfg.Render.CreateTimeout).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Mode != "release" && c.Mode != "debug":
		return fmt.Errorf("config: mode %q must be release or debug", c.Mode)
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("config: port %d out of range", c.Port)
	case c.History.MaxEndedCalls <= 0, c.History.MaxEndedIncomingCalls <= 0, c.History.MaxEndedParticipants <= 0:
		return fmt.Errorf("config: history capacities must be positive")
	case c.Captions.MaxCaptions <= 0:
		return fmt.Errorf("config: captions.max_captions must be positive")
	case c.Render.CreateTimeout < 0:
		return fmt.Errorf("config: render.create_timeout must not be negative")
	case c.Demo.Enabled && c.Demo.Interval <= 0:
		return fmt.Errorf("config: demo.interval must be positive")
	}
	return nil
}
