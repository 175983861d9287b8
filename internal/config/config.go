package config

import (
	"fmt"
	"time"

	"github.com/scenesync/relay/internal/proto"
)

// Config holds relay server configuration values.
type Config struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
	StatusAddr      string        `mapstructure:"status_addr" yaml:"status_addr"`
	Latency         time.Duration `mapstructure:"latency" yaml:"latency"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns configuration with reasonable starter defaults.
// StatusAddr is empty, which disables the HTTP status server.
func Default() Config {
	return Config{
		Host:            "",
		Port:            proto.DefaultPort,
		LogLevel:        "info",
		StatusAddr:      "",
		Latency:         0,
		ShutdownTimeout: 5 * time.Second,
	}
}

// ListenAddr returns the TCP listen address.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
