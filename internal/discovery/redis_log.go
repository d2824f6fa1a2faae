package discovery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/amankumarsingh77/directory_pipeline/config"
	"github.com/amankumarsingh77/directory_pipeline/models"
	"github.com/redis/go-redis/v9"
)

func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Host,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("error pinging the redis : %w", err)
	}
	return client, nil
}

type membershipFilter interface {
	Add(key string) error
	Exists(key string) (bool, error)
}

// RedisLog stores the log as a hash of normalized URL -> item JSON. With a
// bloom filter configured, keys the filter has never seen skip the hash lookup,
// so the filter is loaded from the hash when the log is opened.
type RedisLog struct {
	client *redis.Client
	key    string
	bloom  membershipFilter
}

func NewRedisLog(ctx context.Context, client *redis.Client, key string, bloom *BloomFilter) (*RedisLog, error) {
	l := &RedisLog{client: client, key: key}
	if bloom == nil {
		return l, nil
	}
	l.bloom = bloom
	if _, err := l.seedBloom(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// seedBloom adds every key already in the hash to the filter.
func (l *RedisLog) seedBloom(ctx context.Context) (int, error) {
	seeded := 0
	iter := l.client.HScan(ctx, l.key, 0, "", 500).Iterator()
	for i := 0; iter.Next(ctx); i++ {
		// HSCAN yields field and value alternately.
		if i%2 == 1 {
			continue
		}
		if err := l.bloom.Add(iter.Val()); err != nil {
			return seeded, fmt.Errorf("failed to add url to bloom filter: %w", err)
		}
		seeded++
	}
	if err := iter.Err(); err != nil {
		return seeded, fmt.Errorf("failed to scan discovery log: %w", err)
	}
	return seeded, nil
}

func (l *RedisLog) Known(ctx context.Context, keys []string) (map[string]bool, error) {
	known := make(map[string]bool)
	var candidates []string
	for _, key := range keys {
		if l.bloom != nil {
			maybe, err := l.bloom.Exists(key)
			if err != nil {
				return nil, err
			}
			if !maybe {
				continue
			}
		}
		candidates = append(candidates, key)
	}
	if len(candidates) == 0 {
		return known, nil
	}

	pipe := l.client.Pipeline()
	cmds := make([]*redis.BoolCmd, len(candidates))
	for i, key := range candidates {
		cmds[i] = pipe.HExists(ctx, l.key, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to check discovery log: %w", err)
	}
	for i, cmd := range cmds {
		if cmd.Val() {
			known[candidates[i]] = true
		}
	}
	return known, nil
}

func (l *RedisLog) Append(ctx context.Context, items []models.DiscoveredAgent) error {
	if len(items) == 0 {
		return nil
	}
	values := make([]any, 0, len(items)*2)
	var keys []string
	for _, item := range items {
		key, err := NormalizeURL(item.URL)
		if err != nil {
			continue
		}
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal discovered item: %w", err)
		}
		values = append(values, key, string(data))
		keys = append(keys, key)
	}
	if len(values) == 0 {
		return nil
	}
	if err := l.client.HSet(ctx, l.key, values...).Err(); err != nil {
		return fmt.Errorf("failed to append to discovery log: %w", err)
	}
	if l.bloom != nil {
		for _, key := range keys {
			if err := l.bloom.Add(key); err != nil {
				return fmt.Errorf("failed to add url to bloom filter: %w", err)
			}
		}
	}
	return nil
}

func (l *RedisLog) Close() error {
	if err := l.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	return nil
}
