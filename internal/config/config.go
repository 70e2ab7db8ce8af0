package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	Secret         string        `mapstructure:"secret"`
	JoinBurst      int           `mapstructure:"join_burst"`
	JoinWindow     time.Duration `mapstructure:"join_window"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 3000)
	// Hard cap on one encoded payload; enforced at the transport read limit.
	v.SetDefault("read_limit", 100<<20)
	v.SetDefault("ping_period", "25s")
	v.SetDefault("shutdown_grace", "10s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("secret", "ghostbridge-dev-secret")
	v.SetDefault("join_burst", 20)
	v.SetDefault("join_window", "10s")

	if err := v.ReadInConfig(); err != nil {
		// A missing file means defaults; a file that exists but will not
		// parse must fail loudly instead of silently running on defaults.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").
		Str("mode", cfg.Mode).Int("port", cfg.Port).Int64("read_limit", cfg.ReadLimit).
		Msg("config ready")
	return &cfg, nil
}
