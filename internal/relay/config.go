package relay

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config captures the relay binary's runtime parameters, loaded from an
// optional file plus WSP_-prefixed environment variables, mirroring
// SSD-Foundation-hermes-proxy/internal/config/config.go's viper wiring.
type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`
	LogLevel   string `mapstructure:"log_level"`
}

const (
	defaultListenAddr = "0.0.0.0:8443"
	defaultLogLevel   = "info"
)

// LoadConfig reads configuration from path (if non-empty) and the
// environment. Environment variables are prefixed with WSP_ and override
// file values.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WSP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("listen_addr", defaultListenAddr)
	v.SetDefault("log_level", defaultLogLevel)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("relay: read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("relay: unmarshal config: %w", err)
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	return cfg, nil
}
