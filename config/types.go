package config

import "time"

type PipelineConfig struct {
	Log        LogConfig        `mapstructure:"log"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Discovery  DiscoveryConfig  `mapstructure:"discovery"`
	Crawl      CrawlConfig      `mapstructure:"crawl"`
	Enrich     EnrichConfig     `mapstructure:"enrich"`
	Seed       SeedConfig       `mapstructure:"seed"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CheckpointConfig struct {
	// Backend is "disk" or "mongo".
	Backend string      `mapstructure:"backend"`
	Dir     string      `mapstructure:"dir"`
	Mongo   MongoConfig `mapstructure:"mongo"`
}

type HTTPConfig struct {
	ProxyUrl     string        `mapstructure:"proxy_url"`
	ProxyEnabled bool          `mapstructure:"proxy_enabled"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type DiscoveryConfig struct {
	// LogBackend is "file" or "redis".
	LogBackend      string      `mapstructure:"log_backend"`
	LogFile         string      `mapstructure:"log_file"`
	ProductHuntFeed string      `mapstructure:"product_hunt_feed"`
	HackerNewsURL   string      `mapstructure:"hacker_news_url"`
	GitHubURL       string      `mapstructure:"github_url"`
	GitHubToken     string      `mapstructure:"github_token"`
	Topics          []string    `mapstructure:"topics"`
	Queries         []string    `mapstructure:"queries"`
	SeedFile        string      `mapstructure:"seed_file"`
	PerSourceLimit  int         `mapstructure:"per_source_limit"`
	Redis           RedisConfig `mapstructure:"redis"`
}

type CrawlConfig struct {
	// Fetcher is "browser" (headless Chrome) or "http".
	Fetcher     string        `mapstructure:"fetcher"`
	Workers     int           `mapstructure:"workers"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PageTimeout time.Duration `mapstructure:"page_timeout"`
	// Delay is the minimum pause a worker takes between pages; a random
	// jitter of the same size is added.
	Delay           time.Duration `mapstructure:"delay"`
	ChromePath      string        `mapstructure:"chrome_path"`
	Headless        bool          `mapstructure:"headless"`
	PlaceholderLogo string        `mapstructure:"placeholder_logo"`
}

type EnrichConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	FastModel   string        `mapstructure:"fast_model"`
	SmartModel  string        `mapstructure:"smart_model"`
	Concurrency int           `mapstructure:"concurrency"`
	MaxRepairs  int           `mapstructure:"max_repairs"`
	MaxTokens   int64         `mapstructure:"max_tokens"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	CallRetries int           `mapstructure:"call_retries"`
}

type SeedConfig struct {
	Concurrency    int            `mapstructure:"concurrency"`
	BatchSize      int            `mapstructure:"batch_size"`
	ImageRetries   int            `mapstructure:"image_retries"`
	ImageBackoff   time.Duration  `mapstructure:"image_backoff"`
	ImageMaxBytes  int64          `mapstructure:"image_max_bytes"`
	EntityCacheTTL time.Duration  `mapstructure:"entity_cache_ttl"`
	DB             PostgresConfig `mapstructure:"db"`
	Storage        StorageConfig  `mapstructure:"storage"`
}

type StorageConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	Region        string `mapstructure:"region"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	Bucket        string `mapstructure:"bucket"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	// LocalDir backs dry runs with a plain directory instead of the bucket.
	LocalDir string `mapstructure:"local_dir"`
}

type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	LogKey   string `mapstructure:"log_key"`
	// Bloom puts a RedisBloom filter in front of the log hash. Needs the bloom module.
	Bloom bool `mapstructure:"bloom"`
}

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	DBName     string `mapstructure:"db_name"`
	Collection string `mapstructure:"collection"`
}

type PostgresConfig struct {
	// Driver is the database/sql driver: "postgres" (lib/pq) or "pgx".
	Driver string `mapstructure:"driver"`
	// URL wins over the discrete fields when set (Supabase connection string).
	URL          string `mapstructure:"url"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	SSL          bool   `mapstructure:"ssl"`
	DBName       string `mapstructure:"db_name"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}
