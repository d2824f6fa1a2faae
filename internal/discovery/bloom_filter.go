package discovery

import (
	"fmt"
	"strings"

	redisbloom "github.com/RedisBloom/redisbloom-go"
	"github.com/amankumarsingh77/directory_pipeline/config"
)

const (
	approxItems     = 1_000_000
	errorRate       = 0.01
	bloomFilterName = "discovered_url"
)

// BloomFilter is a cheap "definitely new" check in front of the Redis log.
type BloomFilter struct {
	client *redisbloom.Client
}

func NewRedisBloomFilter(cfg *config.RedisConfig) (*BloomFilter, error) {
	var pass *string
	if cfg.Password != "" {
		pass = &cfg.Password
	}
	client := redisbloom.NewClient(cfg.Host, "discovery", pass)
	if err := client.Reserve(bloomFilterName, errorRate, approxItems); err != nil {
		if !strings.Contains(err.Error(), "item exists") {
			return nil, fmt.Errorf("could not reserve bloom filter :%w", err)
		}
	}
	return &BloomFilter{client}, nil
}

func (r *BloomFilter) Add(key string) error {
	_, err := r.client.Add(bloomFilterName, key)
	return err
}

func (r *BloomFilter) Exists(key string) (bool, error) {
	exists, err := r.client.Exists(bloomFilterName, key)
	if err != nil {
		return false, fmt.Errorf("failed to check bloom filter : %w", err)
	}
	return exists, nil
}
