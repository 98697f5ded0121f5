package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// quotaRecordTTL 是配额记录自最后一次写入起的保留时长。
const quotaRecordTTL = 30 * 24 * time.Hour

// QuotaRepository 定义了按 (身份, 日期) 键控的原子计数器操作。
type QuotaRepository interface {
	// Increment 原子地将计数器加一并刷新 TTL，返回新值。
	Increment(ctx context.Context, identity, day string) (int64, error)
	// Count 只读地返回当前计数，记录不存在时为 0。
	Count(ctx context.Context, identity, day string) (int, error)
}

type redisQuotaRepository struct {
	redisClient *redis.Client
}

// NewQuotaRepository 创建一个新的 QuotaRepository 实例。
func NewQuotaRepository(redisClient *redis.Client) QuotaRepository {
	return &redisQuotaRepository{redisClient: redisClient}
}

func quotaKey(identity, day string) string {
	return fmt.Sprintf("quota:%s:%s", identity, day)
}

// Increment 使用 Redis 的 INCR 保证并发请求下不丢计数。
// 跨天的翻转是隐式的：新的日期键从 0 起计。
func (r *redisQuotaRepository) Increment(ctx context.Context, identity, day string) (int64, error) {
	key := quotaKey(identity, day)
	count, err := r.redisClient.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment quota counter: %w", err)
	}
	// 每次写入都刷新保留时长
	if err := r.redisClient.Expire(ctx, key, quotaRecordTTL).Err(); err != nil {
		return count, fmt.Errorf("failed to refresh quota ttl: %w", err)
	}
	return count, nil
}

func (r *redisQuotaRepository) Count(ctx context.Context, identity, day string) (int, error) {
	count, err := r.redisClient.Get(ctx, quotaKey(identity, day)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read quota counter: %w", err)
	}
	return count, nil
}
