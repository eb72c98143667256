package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the YAML schema. Store settings live in the nested
// redis section.
type fileConfig struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	Tag          string   `yaml:"tag"`
	MaxBodyBytes int64    `yaml:"max_body_bytes"`
	LogLevel     string   `yaml:"log_level"`
	EmitSinks    []string `yaml:"emit_sinks"`

	Redis struct {
		Host             string   `yaml:"host"`
		Port             int      `yaml:"port"`
		Password         string   `yaml:"password"`
		DB               *int     `yaml:"db"`
		GracePeriod      Duration `yaml:"grace_period"`
		FlushInterval    Duration `yaml:"flush_interval"`
		LastUpdatePrefix string   `yaml:"last_update_prefix"`
		MetricsPrefix    string   `yaml:"metrics_prefix"`
		OpTimeout        Duration `yaml:"op_timeout"`
	} `yaml:"redis"`

	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
		JetStream     *bool  `yaml:"jetstream"`
	} `yaml:"nats"`

	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// Duration decodes "300s", "5m" or a bare number of seconds.
type Duration struct {
	time.Duration
	set bool
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	parsed, err := ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	d.Duration = parsed
	d.set = true
	return nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var f fileConfig
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if f.Host != "" {
		c.Server.Host = f.Host
	}
	if f.Port > 0 {
		c.Server.Port = f.Port
	}
	if f.Tag != "" {
		c.Server.Tag = f.Tag
	}
	if f.MaxBodyBytes > 0 {
		c.Server.MaxBodyBytes = f.MaxBodyBytes
	}
	if f.LogLevel != "" {
		c.LogLevel = f.LogLevel
	}
	if len(f.EmitSinks) > 0 {
		c.Emit.Sinks = splitCSV(strings.Join(f.EmitSinks, ","))
	}

	if f.Redis.Host != "" {
		c.Redis.Host = f.Redis.Host
	}
	if f.Redis.Port > 0 {
		c.Redis.Port = f.Redis.Port
	}
	if f.Redis.Password != "" {
		c.Redis.Password = f.Redis.Password
	}
	if f.Redis.DB != nil {
		c.Redis.DB = *f.Redis.DB
	}
	if f.Redis.GracePeriod.set {
		c.Redis.GracePeriod = f.Redis.GracePeriod.Duration
	}
	if f.Redis.FlushInterval.set {
		c.Redis.FlushInterval = f.Redis.FlushInterval.Duration
	}
	if f.Redis.OpTimeout.set {
		c.Redis.OpTimeout = f.Redis.OpTimeout.Duration
	}
	if f.Redis.LastUpdatePrefix != "" {
		c.Redis.LastUpdatePrefix = f.Redis.LastUpdatePrefix
	}
	if f.Redis.MetricsPrefix != "" {
		c.Redis.MetricsPrefix = f.Redis.MetricsPrefix
	}

	if f.NATS.URL != "" {
		c.NATS.URL = f.NATS.URL
	}
	if f.NATS.SubjectPrefix != "" {
		c.NATS.SubjectPrefix = f.NATS.SubjectPrefix
	}
	if f.NATS.JetStream != nil {
		c.NATS.JetStream = *f.NATS.JetStream
	}

	if f.RateLimit.RPS > 0 {
		c.RateLimit.RPS = f.RateLimit.RPS
	}
	if f.RateLimit.Burst > 0 {
		c.RateLimit.Burst = f.RateLimit.Burst
	}

	return nil
}
