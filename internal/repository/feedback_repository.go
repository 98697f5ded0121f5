package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"campus-tutor-go/internal/model"

	"github.com/go-redis/redis/v8"
)

const (
	feedbackIDsKey = "feedback:ids"
	// feedbackMaxReports 是反馈报告的保留上限，超出后淘汰最旧的。
	feedbackMaxReports = 1000
)

// ErrReportNotFound 表示指定 ID 的反馈报告不存在。
var ErrReportNotFound = fmt.Errorf("feedback report not found")

// FeedbackRepository 定义了反馈报告的存储操作。
// 报告本体存在哈希键中，ID 列表维护提交顺序并实现容量淘汰。
type FeedbackRepository interface {
	Save(ctx context.Context, report model.FeedbackReport) error
	Get(ctx context.Context, id string) (*model.FeedbackReport, error)
	Update(ctx context.Context, report model.FeedbackReport) error
	List(ctx context.Context) ([]model.FeedbackReport, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type redisFeedbackRepository struct {
	redisClient *redis.Client
}

// NewFeedbackRepository 创建一个新的 FeedbackRepository 实例。
func NewFeedbackRepository(redisClient *redis.Client) FeedbackRepository {
	return &redisFeedbackRepository{redisClient: redisClient}
}

func reportKey(id string) string {
	return fmt.Sprintf("feedback:report:%s", id)
}

// Save 写入一条新报告并登记 ID；超出保留上限时淘汰最旧的报告。
func (r *redisFeedbackRepository) Save(ctx context.Context, report model.FeedbackReport) error {
	jsonData, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback report: %w", err)
	}
	if err := r.redisClient.Set(ctx, reportKey(report.ID), jsonData, 0).Err(); err != nil {
		return fmt.Errorf("failed to save feedback report: %w", err)
	}
	if err := r.redisClient.RPush(ctx, feedbackIDsKey, report.ID).Err(); err != nil {
		return fmt.Errorf("failed to register feedback report id: %w", err)
	}

	length, err := r.redisClient.LLen(ctx, feedbackIDsKey).Result()
	if err != nil {
		return nil
	}
	for length > feedbackMaxReports {
		oldest, popErr := r.redisClient.LPop(ctx, feedbackIDsKey).Result()
		if popErr != nil {
			break
		}
		_ = r.redisClient.Del(ctx, reportKey(oldest)).Err()
		length--
	}
	return nil
}

func (r *redisFeedbackRepository) Get(ctx context.Context, id string) (*model.FeedbackReport, error) {
	jsonData, err := r.redisClient.Get(ctx, reportKey(id)).Result()
	if err == redis.Nil {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback report: %w", err)
	}
	var report model.FeedbackReport
	if err := json.Unmarshal([]byte(jsonData), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal feedback report: %w", err)
	}
	return &report, nil
}

// Update 覆盖已存在的报告，ID 列表不变。
func (r *redisFeedbackRepository) Update(ctx context.Context, report model.FeedbackReport) error {
	exists, err := r.redisClient.Exists(ctx, reportKey(report.ID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check feedback report: %w", err)
	}
	if exists == 0 {
		return ErrReportNotFound
	}
	jsonData, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback report: %w", err)
	}
	return r.redisClient.Set(ctx, reportKey(report.ID), jsonData, 0).Err()
}

// List 按提交顺序返回全部报告，已被淘汰的 ID 自动跳过。
func (r *redisFeedbackRepository) List(ctx context.Context) ([]model.FeedbackReport, error) {
	ids, err := r.redisClient.LRange(ctx, feedbackIDsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback report ids: %w", err)
	}
	reports := make([]model.FeedbackReport, 0, len(ids))
	for _, id := range ids {
		report, getErr := r.Get(ctx, id)
		if getErr != nil {
			continue
		}
		reports = append(reports, *report)
	}
	return reports, nil
}

// CountByStatus 统计各状态的报告数量，供管理端概览。
func (r *redisFeedbackRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	reports, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, report := range reports {
		counts[report.Status]++
	}
	return counts, nil
}
