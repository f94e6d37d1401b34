package thirdparty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dedupKeyPrefix = "daly:webhook:state:"

	// DefaultDedupTTL 默认去重TTL
	DefaultDedupTTL = 5 * time.Minute
)

// Deduper 多实例共享同一设备时避免重复推送。
// 记录每个状态键最近一次推送的状态，状态未变化才算重复，
// 因此“新增-解除-新增”中的第二次新增总会推送。
type Deduper interface {
	IsDuplicate(ctx context.Context, key, state string) (bool, error)
}

// RedisDeduper 基于 SET ... GET 的去重器：原子地写入新状态并取回旧状态
type RedisDeduper struct {
	redis redis.Cmdable
	ttl   time.Duration
}

// NewRedisDeduper ttl <= 0 时取 DefaultDedupTTL
func NewRedisDeduper(client redis.Cmdable, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &RedisDeduper{redis: client, ttl: ttl}
}

// IsDuplicate true 表示 TTL 内已有实例推送过同一状态
func (d *RedisDeduper) IsDuplicate(ctx context.Context, key, state string) (bool, error) {
	if key == "" {
		return false, errors.New("dedup key is empty")
	}
	old, err := d.redis.SetArgs(ctx, dedupKeyPrefix+key, state, redis.SetArgs{TTL: d.ttl, Get: true}).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis set get: %w", err)
	}
	return old == state, nil
}
