package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"campus-tutor-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// 历史记录的保留策略：最近 20 轮，7 天未活动后过期。
const (
	historyMaxTurns = 20
	historyTTL      = 7 * 24 * time.Hour
)

// ConversationRepository 定义了对话历史记录的操作接口。
// 历史以身份为键整体读写；同一会话的并发查询可能互相覆盖
// 丢失一轮，人机对话的节奏下可以接受。
type ConversationRepository interface {
	GetHistory(ctx context.Context, identity string) ([]model.Turn, error)
	UpdateHistory(ctx context.Context, identity string, turns []model.Turn) error
	ClearHistory(ctx context.Context, identity string) error
}

type redisConversationRepository struct {
	redisClient *redis.Client
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(redisClient *redis.Client) ConversationRepository {
	return &redisConversationRepository{redisClient: redisClient}
}

func conversationKey(identity string) string {
	return fmt.Sprintf("conversation:%s", identity)
}

// GetHistory 从 Redis 获取对话历史记录，没有历史时返回空切片。
func (r *redisConversationRepository) GetHistory(ctx context.Context, identity string) ([]model.Turn, error) {
	jsonData, err := r.redisClient.Get(ctx, conversationKey(identity)).Result()
	if err == redis.Nil {
		return []model.Turn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	var turns []model.Turn
	if err := json.Unmarshal([]byte(jsonData), &turns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation history: %w", err)
	}
	return turns, nil
}

// UpdateHistory 在 Redis 中整体覆盖对话历史记录。
func (r *redisConversationRepository) UpdateHistory(ctx context.Context, identity string, turns []model.Turn) error {
	// 保留最近 20 轮
	if len(turns) > historyMaxTurns {
		turns = turns[len(turns)-historyMaxTurns:]
	}
	jsonData, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation history: %w", err)
	}
	if err := r.redisClient.Set(ctx, conversationKey(identity), jsonData, historyTTL).Err(); err != nil {
		return fmt.Errorf("failed to set conversation history: %w", err)
	}
	return nil
}

// ClearHistory 删除指定身份的对话历史。
func (r *redisConversationRepository) ClearHistory(ctx context.Context, identity string) error {
	return r.redisClient.Del(ctx, conversationKey(identity)).Err()
}
