package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrMissingCredential = errors.New("missing credential")

// LoadPipelineConfig reads the yaml file over the defaults. PIPELINE_* variables
// override keys present in the file; credentials are also read from their usual
// names (ANTHROPIC_API_KEY, DATABASE_URL, ...). A missing file is not an error.
func LoadPipelineConfig(filename string) (*PipelineConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("cannot read .env file %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PIPELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindCredentials(v)

	if filename != "" {
		if _, err := os.Stat(filename); err == nil {
			v.SetConfigFile(filename)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("cannot read the file %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("cannot stat the file %w", err)
		}
	}

	config := GetDefaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error reading the config file %w", err)
	}
	return config, nil
}

func bindCredentials(v *viper.Viper) {
	_ = v.BindEnv("enrich.api_key", "PIPELINE_ENRICH_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("seed.db.url", "PIPELINE_SEED_DB_URL", "DATABASE_URL")
	_ = v.BindEnv("seed.storage.access_key", "PIPELINE_SEED_STORAGE_ACCESS_KEY", "STORAGE_ACCESS_KEY")
	_ = v.BindEnv("seed.storage.secret_key", "PIPELINE_SEED_STORAGE_SECRET_KEY", "STORAGE_SECRET_KEY")
	_ = v.BindEnv("seed.storage.endpoint", "PIPELINE_SEED_STORAGE_ENDPOINT", "STORAGE_ENDPOINT")
	_ = v.BindEnv("seed.storage.public_base_url", "PIPELINE_SEED_STORAGE_PUBLIC_BASE_URL", "STORAGE_PUBLIC_URL")
	_ = v.BindEnv("discovery.github_token", "PIPELINE_DISCOVERY_GITHUB_TOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv("checkpoint.mongo.uri", "PIPELINE_CHECKPOINT_MONGO_URI", "MONGO_URI")
}

func GetDefaultConfig() *PipelineConfig {
	return &PipelineConfig{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Checkpoint: CheckpointConfig{
			Backend: "disk",
			Dir:     "data",
			Mongo: MongoConfig{
				URI:        "mongodb://localhost:27017",
				DBName:     "directory_pipeline",
				Collection: "checkpoints",
			},
		},
		HTTP: HTTPConfig{
			Timeout: 15 * time.Second,
		},
		Discovery: DiscoveryConfig{
			LogBackend:      "file",
			LogFile:         filepath.Join("data", "discovery-log.json"),
			ProductHuntFeed: "https://www.producthunt.com/feed",
			HackerNewsURL:   "https://hn.algolia.com/api/v1/search_by_date",
			GitHubURL:       "https://api.github.com/search/repositories",
			Topics:          []string{"ai-agents", "llm-tools"},
			Queries:         []string{"ai agent"},
			PerSourceLimit:  30,
			Redis: RedisConfig{
				Host:   "localhost:6379",
				LogKey: "discovery_log",
			},
		},
		Crawl: CrawlConfig{
			Fetcher:         "browser",
			Workers:         4,
			MaxRetries:      3,
			PageTimeout:     30 * time.Second,
			Delay:           500 * time.Millisecond,
			Headless:        true,
			PlaceholderLogo: "/placeholder.png",
		},
		Enrich: EnrichConfig{
			FastModel:   "claude-3-5-haiku-latest",
			SmartModel:  "claude-sonnet-4-0",
			Concurrency: 2,
			MaxRepairs:  2,
			MaxTokens:   1024,
			CallTimeout: 60 * time.Second,
			CallRetries: 3,
		},
		Seed: SeedConfig{
			Concurrency:    4,
			BatchSize:      50,
			ImageRetries:   3,
			ImageBackoff:   500 * time.Millisecond,
			ImageMaxBytes:  5 << 20,
			EntityCacheTTL: 30 * time.Minute,
			DB: PostgresConfig{
				Driver:       "postgres",
				Host:         "localhost",
				Port:         5432,
				User:         "postgres",
				DBName:       "postgres",
				MaxOpenConns: 8,
			},
			Storage: StorageConfig{
				Region:   "us-east-1",
				UseSSL:   true,
				Bucket:   "product-logos",
				LocalDir: filepath.Join("data", "objects"),
			},
		},
		Metrics: MetricsConfig{
			Job: "directory_pipeline",
		},
	}
}

// Validate checks that every credential the given stages need is present.
// Dry runs never touch the datastore or the bucket.
func (c *PipelineConfig) Validate(stages []string, dryRun bool) error {
	var missing []string
	for _, stage := range stages {
		switch stage {
		case "enrich":
			if c.Enrich.APIKey == "" {
				missing = append(missing, "ANTHROPIC_API_KEY")
			}
		case "seed":
			if dryRun {
				continue
			}
			if c.Seed.DB.URL == "" && c.Seed.DB.Host == "" {
				missing = append(missing, "DATABASE_URL")
			}
			if c.Seed.Storage.Endpoint == "" {
				missing = append(missing, "STORAGE_ENDPOINT")
			}
			if c.Seed.Storage.AccessKey == "" || c.Seed.Storage.SecretKey == "" {
				missing = append(missing, "STORAGE_ACCESS_KEY/STORAGE_SECRET_KEY")
			}
		}
	}
	if c.Checkpoint.Backend == "mongo" && c.Checkpoint.Mongo.URI == "" {
		missing = append(missing, "MONGO_URI")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredential, strings.Join(missing, ", "))
	}
	return nil
}

// DSN builds the lib/pq connection string.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s", p.Host, p.Port, p.User, p.Password, p.DBName)
	if p.SSL {
		dsn += " sslmode=require"
	} else {
		dsn += " sslmode=disable"
	}
	return dsn
}
