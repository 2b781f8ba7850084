package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/andrewgt3/PlantAGI/internal/adapters/history"
	"github.com/andrewgt3/PlantAGI/internal/adapters/opcua"
	"github.com/andrewgt3/PlantAGI/internal/adapters/predictapi"
	"github.com/andrewgt3/PlantAGI/internal/adapters/snapshot"
	"github.com/andrewgt3/PlantAGI/internal/domain"
)

type Config struct {
	Buffer   BufferConfig      `yaml:"buffer"`
	History  HistoryConfig     `yaml:"history"`
	Predict  predictapi.Config `yaml:"predict"`
	Snapshot SnapshotConfig    `yaml:"snapshot"`
	Server   ServerConfig      `yaml:"server"`
	OPCUA    *opcua.Config     `yaml:"opcua"`
}

type BufferConfig struct {
	AssetID     string              `yaml:"asset_id"`
	Range       string              `yaml:"range"`
	Capacity    int                 `yaml:"capacity"`
	TickPeriod  time.Duration       `yaml:"tick_period"`
	FallbackLen int                 `yaml:"fallback_len"`
	SeedLimit   int                 `yaml:"seed_limit"`
	Metrics     []domain.MetricSpec `yaml:"metrics"`
}

// HistoryConfig selects where window seeds come from: the history API, the
// Timescale store directly, or nothing (synthetic-only).
type HistoryConfig struct {
	Mode       string             `yaml:"mode"` // "http", "postgres", "none"
	HTTP       history.HTTPConfig `yaml:"http"`
	ConnString string             `yaml:"conn_string"`
	Table      string             `yaml:"table"`
}

type SnapshotConfig struct {
	Enabled bool            `yaml:"enabled"`
	Redis   snapshot.Config `yaml:"redis"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Buffer.Range == "" {
		c.Buffer.Range = string(domain.Range1h)
	}
	if c.Buffer.Capacity == 0 {
		c.Buffer.Capacity = 100
	}
	if c.Buffer.TickPeriod == 0 {
		c.Buffer.TickPeriod = 5 * time.Second
	}
	if c.Buffer.FallbackLen == 0 {
		c.Buffer.FallbackLen = 12
	}
	if c.Buffer.SeedLimit == 0 || c.Buffer.SeedLimit > c.Buffer.Capacity {
		c.Buffer.SeedLimit = c.Buffer.Capacity
	}
	if len(c.Buffer.Metrics) == 0 {
		c.Buffer.Metrics = domain.DefaultMetricSet()
	}
	if c.History.Mode == "" {
		c.History.Mode = "http"
	}
	if c.History.Table == "" {
		c.History.Table = "sensor_readings"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":9200"
	}

	c.History.HTTP.ApplyDefaults()
	c.Predict.ApplyDefaults()
	c.Snapshot.Redis.ApplyDefaults()
	if c.OPCUA != nil {
		c.OPCUA.ApplyDefaults()
	}
}

func (c *Config) validate() error {
	if c.Buffer.AssetID == "" {
		return fmt.Errorf("buffer.asset_id is required")
	}
	for _, m := range c.Buffer.Metrics {
		if m.Name == "" {
			return fmt.Errorf("buffer.metrics: name is required")
		}
		if m.Min > m.Max {
			return fmt.Errorf("buffer.metrics %q: min %v above max %v", m.Name, m.Min, m.Max)
		}
		if m.Default < m.Min || m.Default > m.Max {
			return fmt.Errorf("buffer.metrics %q: default %v outside [%v, %v]", m.Name, m.Default, m.Min, m.Max)
		}
	}

	switch c.History.Mode {
	case "http":
		if err := c.History.HTTP.Validate(); err != nil {
			return fmt.Errorf("history.http: %w", err)
		}
	case "postgres":
		if c.History.ConnString == "" {
			return fmt.Errorf("history.conn_string is required for postgres mode")
		}
	case "none":
	default:
		return fmt.Errorf("history.mode %q is not one of http, postgres, none", c.History.Mode)
	}

	if err := c.Predict.Validate(); err != nil {
		return fmt.Errorf("predict: %w", err)
	}

	if c.OPCUA != nil {
		if c.OPCUA.AssetID == "" {
			c.OPCUA.AssetID = c.Buffer.AssetID
		}
		if err := c.OPCUA.Validate(); err != nil {
			return fmt.Errorf("opcua: %w", err)
		}
	}
	return nil
}
