package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	cfgpkg "github.com/taoyao-code/daly-bms/internal/config"
)

const defaultKeyPrefix = "daly:snapshot:"

// Client Redis 客户端，同时决定快照 key 与更新通知频道的命名
type Client struct {
	*redis.Client
	keyPrefix string
	channel   string
}

// options 配置到 go-redis 选项的映射
func options(cfg cfgpkg.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// wrap 不做连通性检查
func wrap(rdb *redis.Client, cfg cfgpkg.RedisConfig) *Client {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Client{Client: rdb, keyPrefix: prefix, channel: cfg.Channel}
}

// NewClient 创建客户端并 PING，超时取 dialTimeout（默认 5s）
func NewClient(cfg cfgpkg.RedisConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, errors.New("redis is not enabled")
	}

	rdb := redis.NewClient(options(cfg))

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return wrap(rdb, cfg), nil
}

// SnapshotKey 设备快照 hash 的 key
func (c *Client) SnapshotKey(device string) string { return c.keyPrefix + device }

// Channel 更新通知频道，为空表示不发布
func (c *Client) Channel() string { return c.channel }

// HealthCheck 健康检查
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Stats 连接池统计
func (c *Client) Stats() *redis.PoolStats {
	return c.PoolStats()
}
