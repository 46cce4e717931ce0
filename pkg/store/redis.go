package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"bridgypoll/pkg/config"

	backend "github.com/redis/go-redis/v9"
)

// globEscaper quotes the SCAN MATCH metacharacters so prefixes match literally
var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// RedisArea keeps an area as plain redis string keys under <prefix>:<area>:
type RedisArea struct {
	client *backend.Client
	prefix string
}

// Connect opens a redis client and checks it answers a ping
func Connect(ctx context.Context, cfg config.RedisConfig) (*backend.Client, error) {
	client := backend.NewClient(&backend.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis unavailable at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewRedisArea creates an area on an existing client
func NewRedisArea(client *backend.Client, prefix, area string) *RedisArea {
	if prefix == "" {
		prefix = "bridgypoll"
	}
	return &RedisArea{
		client: client,
		prefix: prefix + ":" + area + ":",
	}
}

func (a *RedisArea) key(k string) string {
	return a.prefix + k
}

func (a *RedisArea) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	val, err := a.client.Get(ctx, a.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %q from redis: %w", key, err)
	}
	if err := json.Unmarshal(val, dst); err != nil {
		return true, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return true, nil
}

func (a *RedisArea) Set(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	if err := a.client.Set(ctx, a.key(key), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %q to redis: %w", key, err)
	}
	return nil
}

func (a *RedisArea) Remove(ctx context.Context, key string) error {
	if err := a.client.Del(ctx, a.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %q from redis: %w", key, err)
	}
	return nil
}

func (a *RedisArea) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := a.client.Scan(ctx, 0, globEscaper.Replace(a.key(prefix))+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), a.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan redis keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
