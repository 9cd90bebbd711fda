package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	DefaultRooms       int           `mapstructure:"default_rooms"`
	SignalBuffer       int           `mapstructure:"signal_buffer"`
	NegotiationTimeout time.Duration `mapstructure:"negotiation_timeout"`
	MessageRate        float64       `mapstructure:"message_rate"`
	MessageBurst       int           `mapstructure:"message_burst"`

	RTC RTC `mapstructure:"rtc"`
}

type RTC struct {
	ICEServers   []string `mapstructure:"ice_servers"`
	UDPPortMin   uint16   `mapstructure:"udp_port_min"`
	UDPPortMax   uint16   `mapstructure:"udp_port_max"`
	AnnouncedIPs []string `mapstructure:"announced_ips"`
	// IncludeLoopback offers 127.0.0.1 candidates, for single-host setups.
	IncludeLoopback bool `mapstructure:"include_loopback"`
}

// Load reads config/config.<CONFIG_ENV>.yaml, dev by default. HUDDLE_*
// environment variables override file values.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile is Load with an explicit path. A missing file is not an error.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("huddle")
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
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("static", cfg.StaticPath).
		Int("rooms", cfg.DefaultRooms).
		Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "huddle-dev-secret")
	v.SetDefault("log_level", "info")
	v.SetDefault("default_rooms", 5)
	v.SetDefault("signal_buffer", 32)
	v.SetDefault("negotiation_timeout", "10s")
	v.SetDefault("message_rate", 5)
	v.SetDefault("message_burst", 10)
	v.SetDefault("rtc.ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("rtc.udp_port_min", 40000)
	v.SetDefault("rtc.udp_port_max", 49999)
	v.SetDefault("rtc.announced_ips", []string{})
	v.SetDefault("rtc.include_loopback", false)
}

func (c *Config) validate() error {
	switch {
	case c.DefaultRooms < 1:
		return fmt.Errorf("default_rooms must be at least 1, got %d", c.DefaultRooms)
	case c.SignalBuffer < 1:
		return fmt.Errorf("signal_buffer must be at least 1, got %d", c.SignalBuffer)
	case c.RTC.UDPPortMin > c.RTC.UDPPortMax:
		return fmt.Errorf("rtc.udp_port_min %d above rtc.udp_port_max %d", c.RTC.UDPPortMin, c.RTC.UDPPortMax)
	}
	return nil
}
