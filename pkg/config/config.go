package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/joho/godotenv"
)

// Поддерживаемые получатели событий
const (
	SinkLog        = "log"
	SinkNATS       = "nats"
	SinkCloudWatch = "cloudwatch"
	SinkTail       = "tail"
)

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	Emit       EmitConfig
	NATS       NATSConfig
	CloudWatch CloudWatchConfig
	RateLimit  RateLimitConfig
	Tail       TailConfig
	LogLevel   string
}

type ServerConfig struct {
	Host            string
	Port            int
	Tag             string
	MaxBodyBytes    int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type RedisConfig struct {
	Host             string
	Port             int
	Password         string
	DB               int
	GracePeriod      time.Duration
	FlushInterval    time.Duration
	FlushTimeout     time.Duration
	LastUpdatePrefix string
	MetricsPrefix    string
	OpTimeout        time.Duration
	ConnectBackoff   time.Duration
}

type EmitConfig struct {
	Sinks []string
}

type NATSConfig struct {
	URL           string
	SubjectPrefix string
	JetStream     bool
}

type CloudWatchConfig struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	LogGroupName    string
	LogStreamName   string
	AutoCreate      bool
	MetricsEnabled  bool
	Namespace       string
	BufferSize      int
	FlushInterval   time.Duration
}

// TailConfig - Origin, которым разрешено подключаться к /tail из браузера
type TailConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// Default возвращает конфигурацию со значениями по умолчанию.
// Tag обязателен и по умолчанию пуст.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			MaxBodyBytes:    1 << 20,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			Host:             "localhost",
			Port:             6379,
			DB:               0,
			GracePeriod:      300 * time.Second,
			FlushInterval:    300 * time.Second,
			FlushTimeout:     30 * time.Second,
			LastUpdatePrefix: "deploymentid:last_action",
			MetricsPrefix:    "deploymentid:minio-metrics",
			OpTimeout:        2 * time.Second,
			ConnectBackoff:   time.Second,
		},
		Emit: EmitConfig{
			Sinks: []string{SinkLog},
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			SubjectPrefix: "ingest",
		},
		CloudWatch: CloudWatchConfig{
			Region:        "us-east-1",
			LogStreamName: "traffic-ingest",
			Namespace:     "TrafficIngest/Deployments",
			BufferSize:    50,
			FlushInterval: 5 * time.Second,
		},
		LogLevel: "info",
	}
}

// Load собирает конфигурацию: значения по умолчанию -> YAML файл (CONFIG_FILE) -> .env -> переменные окружения
func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error

	c.Server.Host = getEnv("INGEST_HOST", c.Server.Host)
	c.Server.Tag = getEnv("INGEST_TAG", c.Server.Tag)
	errs = append(errs,
		envInt("INGEST_PORT", &c.Server.Port),
		envInt64("INGEST_MAX_BODY_BYTES", &c.Server.MaxBodyBytes),
	)

	c.Redis.Host = getEnv("REDIS_HOST", c.Redis.Host)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.LastUpdatePrefix = getEnv("REDIS_LAST_UPDATE_PREFIX", c.Redis.LastUpdatePrefix)
	c.Redis.MetricsPrefix = getEnv("REDIS_METRICS_PREFIX", c.Redis.MetricsPrefix)
	errs = append(errs,
		envInt("REDIS_PORT", &c.Redis.Port),
		envInt("REDIS_DB", &c.Redis.DB),
		envDuration("REDIS_GRACE_PERIOD", &c.Redis.GracePeriod),
		envDuration("REDIS_FLUSH_INTERVAL", &c.Redis.FlushInterval),
		envDuration("REDIS_FLUSH_TIMEOUT", &c.Redis.FlushTimeout),
		envDuration("REDIS_OP_TIMEOUT", &c.Redis.OpTimeout),
		envDuration("REDIS_CONNECT_BACKOFF", &c.Redis.ConnectBackoff),
	)

	if raw := os.Getenv("EMIT_SINKS"); raw != "" {
		c.Emit.Sinks = splitCSV(raw)
	}

	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", c.NATS.SubjectPrefix)
	c.NATS.JetStream = getEnvBool("NATS_JETSTREAM", c.NATS.JetStream)

	c.CloudWatch.Region = getEnv("CLOUDWATCH_REGION", c.CloudWatch.Region)
	c.CloudWatch.Endpoint = getEnv("CLOUDWATCH_ENDPOINT", c.CloudWatch.Endpoint)
	c.CloudWatch.AccessKeyID = getEnv("CLOUDWATCH_ACCESS_KEY_ID", c.CloudWatch.AccessKeyID)
	c.CloudWatch.SecretAccessKey = getEnv("CLOUDWATCH_SECRET_ACCESS_KEY", c.CloudWatch.SecretAccessKey)
	c.CloudWatch.LogGroupName = getEnv("CLOUDWATCH_LOG_GROUP", c.CloudWatch.LogGroupName)
	c.CloudWatch.LogStreamName = getEnv("CLOUDWATCH_LOG_STREAM", c.CloudWatch.LogStreamName)
	c.CloudWatch.AutoCreate = getEnvBool("CLOUDWATCH_AUTO_CREATE", c.CloudWatch.AutoCreate)
	c.CloudWatch.MetricsEnabled = getEnvBool("CLOUDWATCH_METRICS_ENABLED", c.CloudWatch.MetricsEnabled)
	c.CloudWatch.Namespace = getEnv("CLOUDWATCH_NAMESPACE", c.CloudWatch.Namespace)
	errs = append(errs,
		envInt("CLOUDWATCH_BUFFER_SIZE", &c.CloudWatch.BufferSize),
		envDuration("CLOUDWATCH_FLUSH_INTERVAL", &c.CloudWatch.FlushInterval),
	)

	errs = append(errs,
		envFloat("RATE_LIMIT_RPS", &c.RateLimit.RPS),
		envInt("RATE_LIMIT_BURST", &c.RateLimit.Burst),
	)

	if raw := os.Getenv("TAIL_ALLOWED_ORIGINS"); raw != "" {
		c.Tail.AllowedOrigins = splitList(raw)
	}

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	return errors.Join(errs...)
}

// Validate проверяет обязательные параметры и диапазоны
func (c *Config) Validate() error {
	tag := strings.Trim(strings.TrimSpace(c.Server.Tag), "/")
	if tag == "" {
		return fmt.Errorf("tag is required (INGEST_TAG or 'tag' in config file)")
	}
	if err := validateTag(tag); err != nil {
		return err
	}
	c.Server.Tag = tag

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		return fmt.Errorf("invalid redis port: %d", c.Redis.Port)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("invalid redis db: %d", c.Redis.DB)
	}
	if c.Redis.GracePeriod < 0 {
		return fmt.Errorf("grace period cannot be negative: %s", c.Redis.GracePeriod)
	}
	if c.Redis.FlushInterval <= 0 {
		return fmt.Errorf("flush interval must be positive: %s", c.Redis.FlushInterval)
	}
	if c.Redis.ConnectBackoff <= 0 {
		return fmt.Errorf("connect backoff must be positive: %s", c.Redis.ConnectBackoff)
	}
	if c.Redis.LastUpdatePrefix == "" || c.Redis.MetricsPrefix == "" {
		return fmt.Errorf("redis key prefixes cannot be empty")
	}

	if len(c.Emit.Sinks) == 0 {
		return fmt.Errorf("at least one emit sink is required")
	}
	for _, sink := range c.Emit.Sinks {
		switch sink {
		case SinkLog, SinkNATS, SinkTail:
		case SinkCloudWatch:
			if c.CloudWatch.LogGroupName == "" {
				return fmt.Errorf("CLOUDWATCH_LOG_GROUP is required for the cloudwatch sink")
			}
		default:
			return fmt.Errorf("unknown emit sink %q", sink)
		}
	}

	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("rate limit rps cannot be negative")
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = int(c.RateLimit.RPS)
		if c.RateLimit.Burst < 1 {
			c.RateLimit.Burst = 1
		}
	}

	return nil
}

// reservedTags заняты служебными маршрутами
var reservedTags = map[string]struct{}{
	"healthz": {},
	"readyz":  {},
	"metrics": {},
	"tail":    {},
}

// validateTag проверяет, что тег можно использовать как путь ServeMux
func validateTag(tag string) error {
	if _, ok := reservedTags[tag]; ok {
		return fmt.Errorf("tag %q conflicts with a built-in route", tag)
	}
	if strings.ContainsAny(tag, "{}?#%") {
		return fmt.Errorf("tag %q contains characters not allowed in a path", tag)
	}
	for _, r := range tag {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("tag %q contains whitespace or control characters", tag)
		}
	}
	return nil
}

// HasSink проверяет, включен ли получатель событий
func (c *Config) HasSink(name string) bool {
	for _, sink := range c.Emit.Sinks {
		if sink == name {
			return true
		}
	}
	return false
}

func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func envInt(key string, dst *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func envInt64(key string, dst *int64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func envFloat(key string, dst *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

// ParseDuration принимает синтаксис Go ("300s", "5m") или целое число секунд ("300")
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if seconds, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(seconds * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

func splitCSV(raw string) []string {
	items := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			items = append(items, part)
		}
	}
	return items
}

// splitList разбивает csv без изменения регистра
func splitList(raw string) []string {
	items := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}
