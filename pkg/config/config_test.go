package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("INGEST_TAG", "minio")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Server.Tag != "minio" {
		t.Fatalf("unexpected tag: %q", cfg.Server.Tag)
	}

	r := cfg.Redis
	if r.Host != "localhost" || r.Port != 6379 || r.DB != 0 {
		t.Fatalf("unexpected redis address defaults: %+v", r)
	}
	if r.GracePeriod != 300*time.Second || r.FlushInterval != 300*time.Second {
		t.Fatalf("unexpected redis timing defaults: grace=%s flush=%s", r.GracePeriod, r.FlushInterval)
	}
	if r.LastUpdatePrefix != "deploymentid:last_action" {
		t.Fatalf("unexpected last update prefix: %s", r.LastUpdatePrefix)
	}
	if r.MetricsPrefix != "deploymentid:minio-metrics" {
		t.Fatalf("unexpected metrics prefix: %s", r.MetricsPrefix)
	}
	if !cfg.HasSink(SinkLog) || len(cfg.Emit.Sinks) != 1 {
		t.Fatalf("expected only the log sink by default, got %v", cfg.Emit.Sinks)
	}
	if cfg.Server.Addr() != "localhost:8080" || r.Addr() != "localhost:6379" {
		t.Fatalf("unexpected addresses: %s %s", cfg.Server.Addr(), r.Addr())
	}
}

func TestLoadRequiresTag(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("INGEST_TAG", "")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "tag is required") {
		t.Fatalf("expected tag error, got %v", err)
	}
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "ingest.yaml")
	content := `
host: 0.0.0.0
port: 9880
tag: /cwm.minio/
emit_sinks: [log, tail]
redis:
  host: redis.internal
  port: 6380
  db: 2
  grace_period: 60
  flush_interval: 2m
  last_update_prefix: dep:last
  metrics_prefix: dep:metrics
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("INGEST_TAG", "")
	t.Setenv("REDIS_PORT", "6390")
	t.Setenv("REDIS_GRACE_PERIOD", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9880 {
		t.Fatalf("file values not applied: %+v", cfg.Server)
	}
	if cfg.Server.Tag != "cwm.minio" {
		t.Fatalf("expected slashes trimmed from tag, got %q", cfg.Server.Tag)
	}
	if cfg.Redis.Host != "redis.internal" || cfg.Redis.DB != 2 {
		t.Fatalf("redis file values not applied: %+v", cfg.Redis)
	}
	if cfg.Redis.Port != 6390 {
		t.Fatalf("env should override file port, got %d", cfg.Redis.Port)
	}
	if cfg.Redis.GracePeriod != 90*time.Second {
		t.Fatalf("env should override grace period, got %s", cfg.Redis.GracePeriod)
	}
	if cfg.Redis.FlushInterval != 2*time.Minute {
		t.Fatalf("unexpected flush interval: %s", cfg.Redis.FlushInterval)
	}
	if cfg.Redis.LastUpdatePrefix != "dep:last" || cfg.Redis.MetricsPrefix != "dep:metrics" {
		t.Fatalf("unexpected prefixes: %+v", cfg.Redis)
	}
	if !cfg.HasSink(SinkTail) || !cfg.HasSink(SinkLog) {
		t.Fatalf("unexpected sinks: %v", cfg.Emit.Sinks)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad port", map[string]string{"INGEST_PORT": "http"}, "INGEST_PORT"},
		{"bad duration", map[string]string{"REDIS_FLUSH_INTERVAL": "soon"}, "REDIS_FLUSH_INTERVAL"},
		{"zero flush", map[string]string{"REDIS_FLUSH_INTERVAL": "0"}, "flush interval"},
		{"unknown sink", map[string]string{"EMIT_SINKS": "log,kafka"}, "unknown emit sink"},
		{"cloudwatch without group", map[string]string{"EMIT_SINKS": "cloudwatch"}, "CLOUDWATCH_LOG_GROUP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv("CONFIG_FILE", "")
			t.Setenv("INGEST_TAG", "minio")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadRejectsUnroutableTags(t *testing.T) {
	tests := []struct {
		tag  string
		want string
	}{
		{"healthz", "built-in route"},
		{"/readyz/", "built-in route"},
		{"metrics", "built-in route"},
		{"tail", "built-in route"},
		{"cwm {id}", "not allowed"},
		{"cwm}", "not allowed"},
		{"cwm minio", "whitespace"},
		{"cwm\tminio", "whitespace"},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv("CONFIG_FILE", "")
			t.Setenv("INGEST_TAG", tt.tag)

			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"300s", 300 * time.Second},
		{"300", 300 * time.Second},
		{"1.5", 1500 * time.Millisecond},
		{"5m", 5 * time.Minute},
		{" 1h ", time.Hour},
	}

	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if err != nil {
			t.Fatalf("ParseDuration(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseDuration(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := ParseDuration(""); err == nil {
		t.Fatalf("expected error for empty duration")
	}
}

func TestLoadTailOrigins(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("INGEST_TAG", "minio")
	t.Setenv("EMIT_SINKS", "log,tail")
	t.Setenv("TAIL_ALLOWED_ORIGINS", " https://Ops.example.com , ,http://localhost:3000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []string{"https://Ops.example.com", "http://localhost:3000"}
	if strings.Join(cfg.Tail.AllowedOrigins, "|") != strings.Join(want, "|") {
		t.Fatalf("AllowedOrigins = %v, want %v", cfg.Tail.AllowedOrigins, want)
	}
}
