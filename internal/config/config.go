package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"palpiteiros/internal/apperr"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Gamma      GammaConfig      `mapstructure:"gamma"`
	MarketSync MarketSyncConfig `mapstructure:"market_sync"`
	Breaking   BreakingConfig   `mapstructure:"breaking"`
	Newsletter NewsletterConfig `mapstructure:"newsletter"`
	Email      EmailConfig      `mapstructure:"email"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Cron       CronConfig       `mapstructure:"cron"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type CacheConfig struct {
	Backend     string        `mapstructure:"backend"`
	Prefix      string        `mapstructure:"prefix"`
	BreakingTTL time.Duration `mapstructure:"breaking_ttl"`
	GammaTTL    time.Duration `mapstructure:"gamma_ttl"`
}

type GammaConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	PageLimit int           `mapstructure:"page_limit"`
	MaxPages  int           `mapstructure:"max_pages"`
	ChunkSize int           `mapstructure:"chunk_size"`
	RateLimit float64       `mapstructure:"rate_limit"`
	RateBurst int           `mapstructure:"rate_burst"`
}

type MarketSyncConfig struct {
	Bucket time.Duration `mapstructure:"bucket"`
}

type BreakingConfig struct {
	DefaultLimit          int     `mapstructure:"default_limit"`
	DefaultMinPriceChange float64 `mapstructure:"default_min_price_change"`
	DefaultTimeRangeHours int     `mapstructure:"default_time_range_hours"`
	CandidatePageSize     int     `mapstructure:"candidate_page_size"`
	HistoryPoints         int     `mapstructure:"history_points"`
}

type NewsletterConfig struct {
	MarketLimit int           `mapstructure:"market_limit"`
	BatchSize   int           `mapstructure:"batch_size"`
	BatchDelay  time.Duration `mapstructure:"batch_delay"`
	SiteURL     string        `mapstructure:"site_url"`
	CronSecret  string        `mapstructure:"cron_secret"`
	FromAddress string        `mapstructure:"from_address"`
	FromName    string        `mapstructure:"from_name"`
	SendRate    float64       `mapstructure:"send_rate"`
}

type EmailConfig struct {
	Timeout  time.Duration  `mapstructure:"timeout"`
	Resend   ProviderConfig `mapstructure:"resend"`
	SendGrid ProviderConfig `mapstructure:"sendgrid"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type RateLimitConfig struct {
	Backend         string        `mapstructure:"backend"`
	SubscribeLimit  int           `mapstructure:"subscribe_limit"`
	SubscribeWindow time.Duration `mapstructure:"subscribe_window"`
}

type CronConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MarketSync   string        `mapstructure:"market_sync"`
	DailyDigest  string        `mapstructure:"daily_digest"`
	WeeklyDigest string        `mapstructure:"weekly_digest"`
	JobTimeout   time.Duration `mapstructure:"job_timeout"`
}

func Load(path string, envOnly bool) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("BM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")

	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)

	v.SetDefault("db.driver", DriverPostgres)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.auto_migrate", true)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	v.SetDefault("cache.backend", BackendMemory)
	v.SetDefault("cache.prefix", "bm:")
	v.SetDefault("cache.breaking_ttl", "30s")
	v.SetDefault("cache.gamma_ttl", "30s")

	v.SetDefault("gamma.base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("gamma.timeout", "15s")
	v.SetDefault("gamma.page_limit", 100)
	v.SetDefault("gamma.max_pages", 5)
	v.SetDefault("gamma.chunk_size", 50)
	v.SetDefault("gamma.rate_limit", 5.0)
	v.SetDefault("gamma.rate_burst", 1)

	v.SetDefault("market_sync.bucket", "1m")

	v.SetDefault("breaking.default_limit", 20)
	v.SetDefault("breaking.default_min_price_change", 0.05)
	v.SetDefault("breaking.default_time_range_hours", 24)
	v.SetDefault("breaking.candidate_page_size", 500)
	v.SetDefault("breaking.history_points", 24)

	v.SetDefault("newsletter.market_limit", 10)
	v.SetDefault("newsletter.batch_size", 10)
	v.SetDefault("newsletter.batch_delay", "1s")
	v.SetDefault("newsletter.site_url", "http://localhost:3000")
	v.SetDefault("newsletter.cron_secret", "")
	v.SetDefault("newsletter.from_address", "")
	v.SetDefault("newsletter.from_name", "Breaking Markets")
	v.SetDefault("newsletter.send_rate", 10.0)

	v.SetDefault("email.timeout", "10s")
	v.SetDefault("email.resend.api_key", "")
	v.SetDefault("email.resend.base_url", "https://api.resend.com")
	v.SetDefault("email.sendgrid.api_key", "")
	v.SetDefault("email.sendgrid.base_url", "https://api.sendgrid.com")

	v.SetDefault("ratelimit.backend", BackendMemory)
	v.SetDefault("ratelimit.subscribe_limit", 5)
	v.SetDefault("ratelimit.subscribe_window", "1h")

	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.market_sync", "@every 5m")
	v.SetDefault("cron.daily_digest", "0 8 * * *")
	v.SetDefault("cron.weekly_digest", "0 8 * * 1")
	v.SetDefault("cron.job_timeout", "10m")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first missing or inconsistent setting as an apperr.ConfigurationError.
func Validate(cfg Config) error {
	switch strings.ToLower(strings.TrimSpace(cfg.DB.Driver)) {
	case DriverPostgres:
		if strings.TrimSpace(cfg.DB.DSN) == "" {
			return &apperr.ConfigurationError{Key: "db.dsn", Message: "required when db.driver=postgres"}
		}
	case DriverMemory:
	default:
		return &apperr.ConfigurationError{Key: "db.driver", Message: "must be postgres or memory"}
	}

	for key, backend := range map[string]string{
		"cache.backend":     cfg.Cache.Backend,
		"ratelimit.backend": cfg.RateLimit.Backend,
	} {
		switch strings.ToLower(strings.TrimSpace(backend)) {
		case BackendMemory, "":
		case BackendRedis:
			if strings.TrimSpace(cfg.Redis.URL) == "" {
				return &apperr.ConfigurationError{Key: "redis.url", Message: "required when " + key + "=redis"}
			}
		default:
			return &apperr.ConfigurationError{Key: key, Message: "must be memory or redis"}
		}
	}

	if cfg.Email.Resend.APIKey != "" || cfg.Email.SendGrid.APIKey != "" {
		if strings.TrimSpace(cfg.Newsletter.FromAddress) == "" {
			return &apperr.ConfigurationError{Key: "newsletter.from_address", Message: "required when an email provider is configured"}
		}
	}
	if cfg.Gamma.ChunkSize <= 0 {
		return &apperr.ConfigurationError{Key: "gamma.chunk_size", Message: "must be positive"}
	}
	return nil
}

// ConfigPath returns BM_CONFIG or the fallback.
func ConfigPath(fallback string) string {
	if p := strings.TrimSpace(os.Getenv("BM_CONFIG")); p != "" {
		return p
	}
	return fallback
}
