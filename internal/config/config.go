package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type RateLimit struct {
	Burst    int           `mapstructure:"burst"`
	Interval time.Duration `mapstructure:"interval"`
}

type Database struct {
	DSN string `mapstructure:"dsn"`
}

type AMQP struct {
	URL string `mapstructure:"url"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	Secret     string        `mapstructure:"secret"`
	JWTSecret  string        `mapstructure:"jwt_secret"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`

	// Backpressure is "close" (drop the slow session) or "drop" (lose the frame).
	Backpressure string        `mapstructure:"backpressure"`
	RingTimeout  time.Duration `mapstructure:"ring_timeout"`
	RateLimit    RateLimit     `mapstructure:"rate_limit"`
	Database     Database      `mapstructure:"database"`
	AMQP         AMQP          `mapstructure:"amqp"`
	ICEServers   []string      `mapstructure:"ice_servers"`
	// ICETransportPolicy is "all" or "relay" (TURN only).
	ICETransportPolicy string `mapstructure:"ice_transport_policy"`
}

// PongWait is how long a connection may stay silent before it is dropped.
func (c *Config) PongWait() time.Duration {
	return c.PingPeriod * 10 / 9
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("secret", "parley-dev-secret")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_wait", "10s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("backpressure", "close")
	v.SetDefault("ring_timeout", "45s")
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("rate_limit.interval", "1s")
	v.SetDefault("database.dsn", "")
	v.SetDefault("amqp.url", "")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("ice_transport_policy", "all")
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default). A missing
// file falls back to defaults; PARLEY_* environment variables win over both.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("PARLEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port out of range: %d", c.Port))
	}
	if c.PingPeriod <= 0 {
		errs = append(errs, errors.New("ping_period must be positive"))
	}
	if c.Backpressure != "close" && c.Backpressure != "drop" {
		errs = append(errs, fmt.Errorf("backpressure must be close or drop, got %q", c.Backpressure))
	}
	if c.ICETransportPolicy != "all" && c.ICETransportPolicy != "relay" {
		errs = append(errs, fmt.Errorf("ice_transport_policy must be all or relay, got %q", c.ICETransportPolicy))
	}
	if c.WriteWait <= 0 {
		errs = append(errs, errors.New("write_wait must be positive"))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, errors.New("send_buffer must be positive"))
	}
	if c.RateLimit.Burst <= 0 || c.RateLimit.Interval <= 0 {
		errs = append(errs, errors.New("rate_limit burst and interval must be positive"))
	}
	return errors.Join(errs...)
}
