package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Registry sources
const (
	SourceDatabase = "database"
	SourceConfig   = "config"
)

// maxUpsertChunk keeps one multi-row insert under the postgres bind
// parameter limit (65535) for the products column count.
const maxUpsertChunk = 5000

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Fetch     FetchConfig
	Scrape    ScrapeConfig
	Scheduler SchedulerConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
	Registry  RegistryConfig
	Suppliers []SupplierConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	LogLevel        string
	UpsertChunkSize int
}

// RedisConfig holds Redis connection settings. When disabled the run lock
// is process-local.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	LockTTL  time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxBodySize      int64
	CORSAllowOrigins []string
}

// FetchConfig controls feed downloads
type FetchConfig struct {
	Timeout      time.Duration
	RetryDelay   time.Duration
	UserAgent    string
	MaxBodyBytes int64
}

// ScrapeConfig describes the storefront scraped for the supplier without a feed
type ScrapeConfig struct {
	Enabled      bool
	SupplierID   string
	SupplierName string

	LoginURL         string
	ListingURL       string
	UsernameSelector string
	PasswordSelector string
	SubmitSelector   string
	ProductSelector  string
	NameSelector     string
	PriceSelector    string
	LinkSelector     string
	ImageSelector    string
	SKUSelector      string
	SKUAttribute     string
	StockSelector    string // optional; listings without it are stored with zero stock
	NextSelector     string

	// Username and Password are the default storefront credentials,
	// normally supplied through the environment.
	Username string
	Password string

	MaxPages          int
	PageDelay         time.Duration
	NavigationTimeout time.Duration
	JobTimeout        time.Duration

	Headless  bool
	NoSandbox bool
	RemoteURL string // DevTools websocket URL of an existing browser
}

// SchedulerConfig controls the daily ingestion trigger
type SchedulerConfig struct {
	Enabled       bool
	DailyHour     int
	DailyMinute   int
	CheckInterval time.Duration
	RunTimeout    time.Duration
}

// StorageConfig holds S3-compatible raw feed archive settings
type StorageConfig struct {
	Enabled      bool
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	Prefix       string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	LogsEnabled       bool
	DBTraceEnabled    bool
}

// RegistryConfig selects where supplier entries come from
type RegistryConfig struct {
	Source string // database or config
}

// SupplierConfig is a static supplier entry. URL may contain {{ENV}}
// credential placeholders.
type SupplierConfig struct {
	ID      string `mapstructure:"id"`
	Name    string `mapstructure:"name"`
	URL     string `mapstructure:"url"`
	Type    string `mapstructure:"type"`
	Enabled bool   `mapstructure:"enabled"`
}

// Load reads configuration from config.toml in the default search paths.
// Priority (highest to lowest):
// 1. Environment variables with FEEDSYNC_ prefix (e.g. FEEDSYNC_DATABASE_PASSWORD)
// 2. .env file in the working directory
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")
	return load(v)
}

// LoadFile reads configuration from an explicit file path
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("FEEDSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// defaults whose zero value is a legal setting
	v.SetDefault("scrape.headless", true)
	v.SetDefault("scheduler.daily_hour", 2)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			LogLevel:        v.GetString("database.log_level"),
			UpsertChunkSize: v.GetInt("database.upsert_chunk_size"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			LockTTL:  v.GetDuration("redis.lock_ttl"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
		},
		Fetch: FetchConfig{
			Timeout:      v.GetDuration("fetch.timeout"),
			RetryDelay:   v.GetDuration("fetch.retry_delay"),
			UserAgent:    v.GetString("fetch.user_agent"),
			MaxBodyBytes: v.GetInt64("fetch.max_body_bytes"),
		},
		Scrape: ScrapeConfig{
			Enabled:           v.GetBool("scrape.enabled"),
			SupplierID:        v.GetString("scrape.supplier_id"),
			SupplierName:      v.GetString("scrape.supplier_name"),
			LoginURL:          v.GetString("scrape.login_url"),
			ListingURL:        v.GetString("scrape.listing_url"),
			UsernameSelector:  v.GetString("scrape.username_selector"),
			PasswordSelector:  v.GetString("scrape.password_selector"),
			SubmitSelector:    v.GetString("scrape.submit_selector"),
			ProductSelector:   v.GetString("scrape.product_selector"),
			NameSelector:      v.GetString("scrape.name_selector"),
			PriceSelector:     v.GetString("scrape.price_selector"),
			LinkSelector:      v.GetString("scrape.link_selector"),
			ImageSelector:     v.GetString("scrape.image_selector"),
			SKUSelector:       v.GetString("scrape.sku_selector"),
			SKUAttribute:      v.GetString("scrape.sku_attribute"),
			StockSelector:     v.GetString("scrape.stock_selector"),
			NextSelector:      v.GetString("scrape.next_selector"),
			Username:          v.GetString("scrape.username"),
			Password:          v.GetString("scrape.password"),
			MaxPages:          v.GetInt("scrape.max_pages"),
			PageDelay:         v.GetDuration("scrape.page_delay"),
			NavigationTimeout: v.GetDuration("scrape.navigation_timeout"),
			JobTimeout:        v.GetDuration("scrape.job_timeout"),
			Headless:          v.GetBool("scrape.headless"),
			NoSandbox:         v.GetBool("scrape.no_sandbox"),
			RemoteURL:         v.GetString("scrape.remote_url"),
		},
		Scheduler: SchedulerConfig{
			Enabled:       v.GetBool("scheduler.enabled"),
			DailyHour:     v.GetInt("scheduler.daily_hour"),
			DailyMinute:   v.GetInt("scheduler.daily_minute"),
			CheckInterval: v.GetDuration("scheduler.check_interval"),
			RunTimeout:    v.GetDuration("scheduler.run_timeout"),
		},
		Storage: StorageConfig{
			Enabled:      v.GetBool("storage.enabled"),
			Endpoint:     v.GetString("storage.endpoint"),
			Region:       v.GetString("storage.region"),
			Bucket:       v.GetString("storage.bucket"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
			Prefix:       v.GetString("storage.prefix"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
		},
		Registry: RegistryConfig{
			Source: v.GetString("registry.source"),
		},
	}

	if err := v.UnmarshalKey("suppliers", &cfg.Suppliers); err != nil {
		return nil, fmt.Errorf("error reading suppliers: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "feedsync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "feedsync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Database.UpsertChunkSize == 0 {
		cfg.Database.UpsertChunkSize = 300
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = 2 * time.Hour
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// scrape jobs answer synchronously
		cfg.HTTP.WriteTimeout = 6 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}

	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = 60 * time.Second
	}
	if cfg.Fetch.RetryDelay == 0 {
		cfg.Fetch.RetryDelay = 2 * time.Second
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = DefaultUserAgent
	}
	if cfg.Fetch.MaxBodyBytes == 0 {
		cfg.Fetch.MaxBodyBytes = 64 << 20
	}

	if cfg.Scrape.SupplierID == "" {
		cfg.Scrape.SupplierID = "storefront"
	}
	if cfg.Scrape.SupplierName == "" {
		cfg.Scrape.SupplierName = cfg.Scrape.SupplierID
	}
	if cfg.Scrape.SKUAttribute == "" && cfg.Scrape.SKUSelector != "" {
		cfg.Scrape.SKUAttribute = "data-sku"
	}
	if cfg.Scrape.MaxPages == 0 {
		cfg.Scrape.MaxPages = 50
	}
	if cfg.Scrape.PageDelay == 0 {
		cfg.Scrape.PageDelay = 2 * time.Second
	}
	if cfg.Scrape.NavigationTimeout == 0 {
		cfg.Scrape.NavigationTimeout = 30 * time.Second
	}
	if cfg.Scrape.JobTimeout == 0 {
		cfg.Scrape.JobTimeout = 5 * time.Minute
	}

	if cfg.Scheduler.CheckInterval == 0 {
		cfg.Scheduler.CheckInterval = time.Minute
	}
	if cfg.Scheduler.RunTimeout == 0 {
		cfg.Scheduler.RunTimeout = time.Hour
	}

	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "feeds"
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}

	if cfg.Registry.Source == "" {
		cfg.Registry.Source = SourceDatabase
	}
}

// DefaultUserAgent mimics a desktop browser; several distributor portals
// reject requests from unknown clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Database.UpsertChunkSize < 1 || c.Database.UpsertChunkSize > maxUpsertChunk {
		return fmt.Errorf("database.upsert_chunk_size must be between 1 and %d", maxUpsertChunk)
	}

	switch c.Registry.Source {
	case SourceDatabase:
	case SourceConfig:
		if len(c.Suppliers) == 0 {
			return fmt.Errorf("registry.source=config requires at least one [[suppliers]] entry")
		}
	default:
		return fmt.Errorf("registry.source must be %q or %q, got %q", SourceDatabase, SourceConfig, c.Registry.Source)
	}

	seen := make(map[string]bool, len(c.Suppliers))
	for i, s := range c.Suppliers {
		if s.ID == "" {
			return fmt.Errorf("suppliers[%d].id is required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("suppliers[%d].id %q is duplicated", i, s.ID)
		}
		seen[s.ID] = true
	}

	if c.Scheduler.DailyHour < 0 || c.Scheduler.DailyHour > 23 {
		return fmt.Errorf("scheduler.daily_hour must be between 0 and 23")
	}
	if c.Scheduler.DailyMinute < 0 || c.Scheduler.DailyMinute > 59 {
		return fmt.Errorf("scheduler.daily_minute must be between 0 and 59")
	}

	if c.Scrape.Enabled {
		required := map[string]string{
			"scrape.login_url":         c.Scrape.LoginURL,
			"scrape.username_selector": c.Scrape.UsernameSelector,
			"scrape.password_selector": c.Scrape.PasswordSelector,
			"scrape.submit_selector":   c.Scrape.SubmitSelector,
			"scrape.product_selector":  c.Scrape.ProductSelector,
			"scrape.name_selector":     c.Scrape.NameSelector,
			"scrape.price_selector":    c.Scrape.PriceSelector,
		}
		for key, val := range required {
			if val == "" {
				return fmt.Errorf("%s is required when scrape.enabled is true", key)
			}
		}
		if c.Scrape.LinkSelector == "" && c.Scrape.SKUSelector == "" {
			return fmt.Errorf("scrape.link_selector or scrape.sku_selector is required to identify products")
		}
	}

	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage.enabled is true")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("http.cors_allow_origins cannot be '*' in production")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the redis host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
