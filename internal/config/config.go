package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// MissingTargetPolicy controls what happens when modify-object or
// remove-object names an id the canvas store does not hold.
type MissingTargetPolicy string

const (
	// RelayAnyway rebroadcasts the event even on a local miss. This is
	// the historical behavior and the default.
	RelayAnyway MissingTargetPolicy = "relay_anyway"
	// Suppress drops the event on a local miss.
	Suppress MissingTargetPolicy = "suppress"
	// ErrorOut reports the miss to the sender and does not rebroadcast.
	ErrorOut MissingTargetPolicy = "error"
)

func (p MissingTargetPolicy) Valid() bool {
	switch p {
	case RelayAnyway, Suppress, ErrorOut:
		return true
	}
	return false
}

type Config struct {
	Mode            string              `mapstructure:"mode"`
	Port            int                 `mapstructure:"port"`
	StaticPath      string              `mapstructure:"static_path"`
	ReadLimit       int64               `mapstructure:"read_limit"`
	PingPeriod      time.Duration       `mapstructure:"ping_period"`
	Secret          string              `mapstructure:"secret"`
	MsgRateLimit    int                 `mapstructure:"msg_rate_limit"`
	MsgRateInterval time.Duration       `mapstructure:"msg_rate_interval"`
	OnMissingTarget MissingTargetPolicy `mapstructure:"on_missing_target"`
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
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("msg_rate_limit", 200)
	v.SetDefault("msg_rate_interval", "1s")
	v.SetDefault("on_missing_target", string(RelayAnyway))

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !cfg.OnMissingTarget.Valid() {
		return nil, fmt.Errorf("bad on_missing_target: %q", cfg.OnMissingTarget)
	}
	return &cfg, nil
}
