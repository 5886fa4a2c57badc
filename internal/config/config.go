// Package config loads and validates tracker configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/keyword-tracker/internal/tracker"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Workers   WorkersConfig    `mapstructure:"workers"`
	HTTP      HTTPConfig       `mapstructure:"http"`
	Headless  HeadlessConfig   `mapstructure:"headless"`
	RateLimit RateLimitConfig  `mapstructure:"ratelimit"`
	Tasks     TasksConfig      `mapstructure:"tasks"`
	Notify    NotifyConfig     `mapstructure:"notify"`
	SMTP      SMTPConfig       `mapstructure:"smtp"`
	PubSub    PubSubConfig     `mapstructure:"pubsub"`
	Logging   LoggingConfig    `mapstructure:"logging"`
	Tracing   TracingConfig    `mapstructure:"tracing"`
	Schedules []ScheduleConfig `mapstructure:"schedules"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// WorkersConfig sizes the worker pool and its queue.
type WorkersConfig struct {
	Concurrency      int    `mapstructure:"concurrency"`
	QueueDepth       int    `mapstructure:"queue_depth"`
	Backpressure     string `mapstructure:"backpressure"`
	EnqueueTimeoutMs int    `mapstructure:"enqueue_timeout_ms"`
}

// HTTPConfig configures the probe fetcher.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	RespectRobots  bool   `mapstructure:"respect_robots"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	MaxParallel     int  `mapstructure:"max_parallel"`
	NavTimeoutSec   int  `mapstructure:"nav_timeout_seconds"`
	PromotionThresh int  `mapstructure:"promotion_threshold"`
}

// RateLimitConfig throttles fetches per host.
type RateLimitConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	PerHostRPS float64 `mapstructure:"per_host_rps"`
	Burst      int     `mapstructure:"burst"`
}

// TasksConfig bounds how long finished task records are kept.
type TasksConfig struct {
	RetentionMinutes     int `mapstructure:"retention_minutes"`
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds"`
}

// NotifyConfig selects the notification driver.
type NotifyConfig struct {
	Driver         string `mapstructure:"driver"`
	Recipient      string `mapstructure:"recipient"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// SMTPConfig carries mail server settings for the smtp driver.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// PubSubConfig holds the topic used by the pubsub driver.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TracingConfig toggles the OpenTelemetry tracer provider.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// ScheduleConfig is a recurring check registered at startup.
type ScheduleConfig struct {
	Name            string   `mapstructure:"name"`
	URL             string   `mapstructure:"url"`
	Keywords        []string `mapstructure:"keywords"`
	IntervalMinutes int      `mapstructure:"interval_minutes"`
}

// Interval returns the recurrence, defaulting to 60 minutes when unset.
func (s ScheduleConfig) Interval() (time.Duration, error) {
	if s.IntervalMinutes == 0 {
		return 60 * time.Minute, nil
	}
	return tracker.IntervalFromMinutes(s.IntervalMinutes)
}

// Notification drivers.
const (
	DriverLog    = "log"
	DriverSMTP   = "smtp"
	DriverPubSub = "pubsub"
)

const maxSweepSeconds = math.MaxInt64 / int64(time.Second)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("workers.concurrency", 4)
	v.SetDefault("workers.queue_depth", 64)
	v.SetDefault("workers.backpressure", "reject")
	v.SetDefault("workers.enqueue_timeout_ms", 2000)
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.user_agent", "keyword-tracker/0.1")
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.promotion_threshold", 60)
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.per_host_rps", 1.0)
	v.SetDefault("ratelimit.burst", 1)
	v.SetDefault("tasks.retention_minutes", 1440)
	v.SetDefault("tasks.sweep_interval_seconds", 60)
	v.SetDefault("notify.driver", DriverLog)
	v.SetDefault("notify.recipient", "admin@example.com")
	v.SetDefault("notify.timeout_seconds", 10)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("logging.development", true)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "keyword-tracker")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 {
		errs = append(errs, errors.New("server.port must be > 0"))
	}
	if c.Workers.Concurrency <= 0 {
		errs = append(errs, errors.New("workers.concurrency must be > 0"))
	}
	if c.Workers.QueueDepth <= 0 {
		errs = append(errs, errors.New("workers.queue_depth must be > 0"))
	}
	switch c.Workers.Backpressure {
	case "", "reject", "block":
	default:
		errs = append(errs, fmt.Errorf("workers.backpressure must be reject or block, got %q", c.Workers.Backpressure))
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("http.timeout_seconds must be > 0"))
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		errs = append(errs, errors.New("headless.max_parallel must be > 0 when headless is enabled"))
	}
	if c.RateLimit.Enabled && c.RateLimit.PerHostRPS <= 0 {
		errs = append(errs, errors.New("ratelimit.per_host_rps must be > 0 when rate limiting is enabled"))
	}
	if c.Tasks.RetentionMinutes < 0 || int64(c.Tasks.RetentionMinutes) > tracker.MaxIntervalMinutes {
		errs = append(errs, fmt.Errorf("tasks.retention_minutes must be between 0 and %d", tracker.MaxIntervalMinutes))
	}
	if c.Tasks.SweepIntervalSeconds <= 0 || int64(c.Tasks.SweepIntervalSeconds) > maxSweepSeconds {
		errs = append(errs, fmt.Errorf("tasks.sweep_interval_seconds must be between 1 and %d", maxSweepSeconds))
	}
	switch c.Notify.Driver {
	case "", DriverLog:
	case DriverSMTP:
		if c.SMTP.Host == "" {
			errs = append(errs, errors.New("smtp.host must be set when notify.driver is smtp"))
		}
	case DriverPubSub:
		if c.PubSub.ProjectID == "" || c.PubSub.TopicID == "" {
			errs = append(errs, errors.New("pubsub.project_id and pubsub.topic_id must be set when notify.driver is pubsub"))
		}
	default:
		errs = append(errs, fmt.Errorf("notify.driver %q is not one of log, smtp, pubsub", c.Notify.Driver))
	}
	for i, s := range c.Schedules {
		if s.IntervalMinutes < 0 {
			errs = append(errs, fmt.Errorf("schedules[%d].interval_minutes must be >= 0", i))
		} else if int64(s.IntervalMinutes) > tracker.MaxIntervalMinutes {
			errs = append(errs, fmt.Errorf("schedules[%d].interval_minutes must be at most %d", i, tracker.MaxIntervalMinutes))
		}
	}
	return errors.Join(errs...)
}

// FetchTimeout is the per-page fetch budget.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Retention is how long terminal task records are kept.
func (c Config) Retention() time.Duration {
	return time.Duration(c.Tasks.RetentionMinutes) * time.Minute
}

// SweepInterval is how often expired task records are evicted.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.Tasks.SweepIntervalSeconds) * time.Second
}
