// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"campus-tutor-go/internal/model"

	"github.com/go-redis/redis/v8"
)

const (
	whitelistKey = "auth:whitelist"
	adminSetKey  = "auth:admins"
)

// ErrCodeNotFound 表示指定身份当前没有有效的验证码记录。
var ErrCodeNotFound = fmt.Errorf("verification code not found")

// CredentialRepository 定义了凭证存储的操作接口：
// 白名单集合、管理员集合（管理员恒为白名单的子集，由写入侧保证）、
// 以及按身份键控的临时验证码记录。
type CredentialRepository interface {
	IsWhitelisted(ctx context.Context, identity string) (bool, error)
	AddToWhitelist(ctx context.Context, identity string) error
	RemoveFromWhitelist(ctx context.Context, identity string) error
	Whitelist(ctx context.Context) ([]string, error)

	IsAdmin(ctx context.Context, identity string) (bool, error)
	AddAdmin(ctx context.Context, identity string) error
	RemoveAdmin(ctx context.Context, identity string) error
	Admins(ctx context.Context) ([]string, error)

	SaveCode(ctx context.Context, identity string, record model.VerificationCode, ttl time.Duration) error
	GetCode(ctx context.Context, identity string) (*model.VerificationCode, error)
	DeleteCode(ctx context.Context, identity string) error
}

type redisCredentialRepository struct {
	redisClient *redis.Client
}

// NewCredentialRepository 创建一个新的 CredentialRepository 实例。
func NewCredentialRepository(redisClient *redis.Client) CredentialRepository {
	return &redisCredentialRepository{redisClient: redisClient}
}

func (r *redisCredentialRepository) IsWhitelisted(ctx context.Context, identity string) (bool, error) {
	return r.redisClient.SIsMember(ctx, whitelistKey, identity).Result()
}

func (r *redisCredentialRepository) AddToWhitelist(ctx context.Context, identity string) error {
	return r.redisClient.SAdd(ctx, whitelistKey, identity).Err()
}

func (r *redisCredentialRepository) RemoveFromWhitelist(ctx context.Context, identity string) error {
	return r.redisClient.SRem(ctx, whitelistKey, identity).Err()
}

func (r *redisCredentialRepository) Whitelist(ctx context.Context) ([]string, error) {
	return r.redisClient.SMembers(ctx, whitelistKey).Result()
}

func (r *redisCredentialRepository) IsAdmin(ctx context.Context, identity string) (bool, error) {
	return r.redisClient.SIsMember(ctx, adminSetKey, identity).Result()
}

// AddAdmin 只写入管理员集合，Admin ⊆ Whitelist 的不变式由服务层
// 在授予管理员时同时写入白名单来保证。
func (r *redisCredentialRepository) AddAdmin(ctx context.Context, identity string) error {
	return r.redisClient.SAdd(ctx, adminSetKey, identity).Err()
}

func (r *redisCredentialRepository) RemoveAdmin(ctx context.Context, identity string) error {
	return r.redisClient.SRem(ctx, adminSetKey, identity).Err()
}

func (r *redisCredentialRepository) Admins(ctx context.Context) ([]string, error) {
	return r.redisClient.SMembers(ctx, adminSetKey).Result()
}

func codeKey(identity string) string {
	return fmt.Sprintf("auth:code:%s", identity)
}

// SaveCode 以覆盖写的方式保存验证码记录，并设置存储层 TTL。
// 过期判定以记录内的 expires_at 为准，TTL 负责清理。
func (r *redisCredentialRepository) SaveCode(ctx context.Context, identity string, record model.VerificationCode, ttl time.Duration) error {
	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal verification code: %w", err)
	}
	return r.redisClient.Set(ctx, codeKey(identity), jsonData, ttl).Err()
}

func (r *redisCredentialRepository) GetCode(ctx context.Context, identity string) (*model.VerificationCode, error) {
	jsonData, err := r.redisClient.Get(ctx, codeKey(identity)).Result()
	if err == redis.Nil {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verification code: %w", err)
	}
	var record model.VerificationCode
	if err := json.Unmarshal([]byte(jsonData), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal verification code: %w", err)
	}
	return &record, nil
}

func (r *redisCredentialRepository) DeleteCode(ctx context.Context, identity string) error {
	return r.redisClient.Del(ctx, codeKey(identity)).Err()
}
