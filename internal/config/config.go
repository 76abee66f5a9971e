package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Stylize   StylizeConfig   `mapstructure:"stylize"`
	Image     ImageConfig     `mapstructure:"image"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	AdminIDs       []int64       `mapstructure:"admin_ids"`
	PollingTimeout int           `mapstructure:"polling_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type StylizeConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	WebSocketURL string        `mapstructure:"websocket_url"`
	Style        string        `mapstructure:"style"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type ImageConfig struct {
	JPEGQuality int `mapstructure:"jpeg_quality"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type BroadcastConfig struct {
	SendDelay time.Duration `mapstructure:"send_delay"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	JSONFormat bool   `mapstructure:"json_format"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("telegram.polling_timeout", 60)
	v.SetDefault("telegram.request_timeout", "5m")
	v.SetDefault("stylize.base_url", "http://localhost:8090")
	v.SetDefault("stylize.websocket_url", "ws://localhost:8090/ws")
	v.SetDefault("stylize.style", "anime")
	v.SetDefault("stylize.timeout", "2m")
	v.SetDefault("image.jpeg_quality", 80)
	v.SetDefault("storage.driver", "json")
	v.SetDefault("storage.path", "user_data.json")
	v.SetDefault("broadcast.send_delay", "100ms")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json_format", false)

	// Config file locations
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/photofx-bot")

	// Environment variables
	v.SetEnvPrefix("PHOTOFX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found is OK, use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if len(c.Telegram.AdminIDs) == 0 {
		return fmt.Errorf("telegram.admin_ids must contain at least one user ID")
	}
	if c.Image.JPEGQuality < 1 || c.Image.JPEGQuality > 100 {
		return fmt.Errorf("image.jpeg_quality must be between 1 and 100")
	}
	switch c.Storage.Driver {
	case "memory":
	case "json", "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the %s driver", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("storage.driver must be one of memory, json, sqlite")
	}
	return nil
}
