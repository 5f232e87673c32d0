// Package config loads and validates crawld configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Frontier   FrontierConfig   `mapstructure:"frontier"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Politeness PolitenessConfig `mapstructure:"politeness"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Storage    StorageConfig    `mapstructure:"storage"`
	DB         DBConfig         `mapstructure:"db"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Predict    PredictConfig    `mapstructure:"predict"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// FrontierConfig bounds the URL queue. DedupWindow limits how long a visited
// URL stays deduplicated; zero remembers it for the frontier's lifetime.
type FrontierConfig struct {
	MaxSize         int           `mapstructure:"max_size"`
	DefaultPriority int           `mapstructure:"default_priority"`
	PriorityLevels  int           `mapstructure:"priority_levels"`
	DedupWindow     time.Duration `mapstructure:"dedup_window"`
}

// SchedulerConfig governs task dispatch and retry budgets.
type SchedulerConfig struct {
	MaxConcurrent     int           `mapstructure:"max_concurrent"`
	DefaultMaxRetries int           `mapstructure:"default_max_retries"`
	IdleWait          time.Duration `mapstructure:"idle_wait"`
}

// PolitenessConfig covers per-domain rate limits and robots handling.
// CrawlDelay, when set, spaces requests to every domain without a domain_rps
// override; robots.txt Crawl-delay directives still tighten it further.
type PolitenessConfig struct {
	DefaultRPS    float64            `mapstructure:"default_rps"`
	DefaultBurst  int                `mapstructure:"default_burst"`
	DomainRPS     map[string]float64 `mapstructure:"domain_rps"`
	MaxDomains    int                `mapstructure:"max_domains"`
	CrawlDelay    time.Duration      `mapstructure:"crawl_delay"`
	RespectRobots bool               `mapstructure:"respect_robots"`
	UserAgent     string             `mapstructure:"user_agent"`
	RobotsTTL     time.Duration      `mapstructure:"robots_ttl"`
}

// HTTPConfig configures fetch retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
}

// StorageConfig selects and parameterizes the record store.
type StorageConfig struct {
	Provider    string `mapstructure:"provider"` // memory, local, postgres, gcs
	LocalDir    string `mapstructure:"local_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// PredictConfig tunes the async prediction client.
type PredictConfig struct {
	QueueSize int           `mapstructure:"queue_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Load builds a Config from disk/environment. An empty path skips the config
// file and relies on defaults plus CRAWLD_* environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLD")
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
	v.SetDefault("logging.development", true)
	v.SetDefault("frontier.max_size", 1000)
	v.SetDefault("frontier.default_priority", 5)
	v.SetDefault("frontier.priority_levels", 10)
	v.SetDefault("frontier.dedup_window", time.Duration(0))
	v.SetDefault("scheduler.max_concurrent", 8)
	v.SetDefault("scheduler.default_max_retries", 3)
	v.SetDefault("scheduler.idle_wait", 50*time.Millisecond)
	v.SetDefault("politeness.default_rps", 1.0)
	v.SetDefault("politeness.default_burst", 1)
	v.SetDefault("politeness.max_domains", 4096)
	v.SetDefault("politeness.respect_robots", true)
	v.SetDefault("politeness.user_agent", "crawld/0.1 (+https://github.com/seedline/crawld)")
	v.SetDefault("politeness.robots_ttl", time.Hour)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("storage.provider", "memory")
	v.SetDefault("storage.local_dir", "data/records")
	v.SetDefault("storage.prefix", "records")
	v.SetDefault("storage.content_type", "application/json")
	v.SetDefault("db.max_open_conns", 8)
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("predict.queue_size", 64)
	v.SetDefault("predict.timeout", 30*time.Second)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Frontier.MaxSize <= 0 {
		return fmt.Errorf("frontier.max_size must be > 0")
	}
	if c.Frontier.PriorityLevels <= 0 {
		return fmt.Errorf("frontier.priority_levels must be > 0")
	}
	if c.Frontier.DefaultPriority < 0 || c.Frontier.DefaultPriority >= c.Frontier.PriorityLevels {
		return fmt.Errorf("frontier.default_priority must be within [0, %d)", c.Frontier.PriorityLevels)
	}
	if c.Frontier.DedupWindow < 0 {
		return fmt.Errorf("frontier.dedup_window must not be negative")
	}
	if c.Politeness.CrawlDelay < 0 {
		return fmt.Errorf("politeness.crawl_delay must not be negative")
	}
	if c.Scheduler.MaxConcurrent <= 0 {
		return fmt.Errorf("scheduler.max_concurrent must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Politeness.UserAgent == "" {
		return fmt.Errorf("politeness.user_agent must be set")
	}
	switch c.Storage.Provider {
	case "memory", "local":
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set for the postgres provider")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs provider")
		}
	default:
		return fmt.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	return nil
}

// FetchTimeout converts the HTTP timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffInitial converts the initial backoff into a duration.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}
