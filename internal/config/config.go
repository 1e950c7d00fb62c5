package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Engine  EngineConfig  `yaml:"engine"`
	Preview PreviewConfig `yaml:"preview"`
	WS      WSConfig      `yaml:"ws"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// EngineConfig describes the external map generator binary and the
// loopback port the seed handshake happens on.
type EngineConfig struct {
	Binary string `yaml:"binary"`
	Port   int    `yaml:"port"`
	Mode   string `yaml:"mode"`
}

type PreviewConfig struct {
	SessionTimeout  time.Duration `yaml:"session_timeout"`
	MaxPayloadBytes int64         `yaml:"max_payload_bytes"`
	MaxQueueDepth   int           `yaml:"max_queue_depth"`
	RetainCompleted time.Duration `yaml:"retain_completed"`
}

type WSConfig struct {
	BroadcastThrottle time.Duration `yaml:"broadcast_throttle"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
		Engine: EngineConfig{
			Binary: "hwengine",
			Port:   46631,
			Mode:   "landpreview",
		},
		Preview: PreviewConfig{
			SessionTimeout:  30 * time.Second,
			MaxPayloadBytes: 1 << 20,
			MaxQueueDepth:   32,
			RetainCompleted: 10 * time.Minute,
		},
		WS: WSConfig{
			BroadcastThrottle: 100 * time.Millisecond,
		},
	}
}

// Load reads the YAML config at path on top of the defaults. A missing
// file is not an error; the defaults are returned as-is.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Engine.Port <= 0 || c.Engine.Port > 65535 {
		return fmt.Errorf("engine.port %d out of range", c.Engine.Port)
	}
	if c.Preview.MaxPayloadBytes <= 0 {
		return fmt.Errorf("preview.max_payload_bytes must be positive")
	}
	if c.Preview.MaxQueueDepth <= 0 {
		return fmt.Errorf("preview.max_queue_depth must be positive")
	}
	if c.Preview.SessionTimeout <= 0 {
		return fmt.Errorf("preview.session_timeout must be positive")
	}
	return nil
}
