package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campus-tutor-go/internal/model"
	"campus-tutor-go/internal/repository"
	"campus-tutor-go/pkg/log"

	"github.com/google/uuid"
)

// 反馈状态流转的错误。
var (
	ErrInvalidStatus     = errors.New("未知的反馈状态")
	ErrInvalidTransition = errors.New("不允许的状态流转")
)

// excerptTurns 是反馈附带的对话摘录轮数。
const excerptTurns = 10

// FeedbackService 定义了反馈报告的提交与处理操作。
type FeedbackService interface {
	Submit(ctx context.Context, identity, category, description string) (*model.FeedbackReport, error)
	List(ctx context.Context) ([]model.FeedbackReport, error)
	UpdateStatus(ctx context.Context, id, status string) (*model.FeedbackReport, error)
	Stats(ctx context.Context) (map[string]int, error)
}

type feedbackService struct {
	feedbackRepo     repository.FeedbackRepository
	conversationRepo repository.ConversationRepository
}

// NewFeedbackService 创建一个新的 FeedbackService 实例。
func NewFeedbackService(feedbackRepo repository.FeedbackRepository, conversationRepo repository.ConversationRepository) FeedbackService {
	return &feedbackService{
		feedbackRepo:     feedbackRepo,
		conversationRepo: conversationRepo,
	}
}

// Submit 创建一条新的反馈报告，附带提交时刻最近 10 轮对话摘录。
func (s *feedbackService) Submit(ctx context.Context, identity, category, description string) (*model.FeedbackReport, error) {
	history, err := s.conversationRepo.GetHistory(ctx, identity)
	if err != nil {
		// 摘录拿不到不阻塞提交
		log.Warnf("[FeedbackService] 获取对话摘录失败, identity: %s, err: %v", identity, err)
		history = []model.Turn{}
	}
	if len(history) > excerptTurns {
		history = history[len(history)-excerptTurns:]
	}

	report := model.FeedbackReport{
		ID:          uuid.NewString(),
		Timestamp:   time.Now(),
		Identity:    identity,
		Category:    category,
		Description: description,
		Excerpt:     history,
		Status:      model.FeedbackStatusPending,
		Priority:    priorityFor(category),
	}
	if err := s.feedbackRepo.Save(ctx, report); err != nil {
		return nil, fmt.Errorf("保存反馈报告失败: %w", err)
	}
	log.Infof("[FeedbackService] 收到新反馈, id: %s, identity: %s, category: %s", report.ID, identity, category)
	return &report, nil
}

// priorityFor 按类别给出初始优先级，管理员之后可以人工调整状态。
func priorityFor(category string) string {
	switch category {
	case "incorrect_answer", "safety":
		return "high"
	default:
		return "normal"
	}
}

func (s *feedbackService) List(ctx context.Context) ([]model.FeedbackReport, error) {
	return s.feedbackRepo.List(ctx)
}

// UpdateStatus 执行 pending → reviewed/resolved/dismissed 的单向流转。
func (s *feedbackService) UpdateStatus(ctx context.Context, id, status string) (*model.FeedbackReport, error) {
	switch status {
	case model.FeedbackStatusReviewed, model.FeedbackStatusResolved, model.FeedbackStatusDismissed:
	default:
		return nil, ErrInvalidStatus
	}

	report, err := s.feedbackRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.Status != model.FeedbackStatusPending {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, report.Status, status)
	}

	report.Status = status
	if err := s.feedbackRepo.Update(ctx, *report); err != nil {
		return nil, fmt.Errorf("更新反馈状态失败: %w", err)
	}
	return report, nil
}

func (s *feedbackService) Stats(ctx context.Context) (map[string]int, error) {
	return s.feedbackRepo.CountByStatus(ctx)
}
