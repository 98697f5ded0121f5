package service

import (
	"context"
	"time"

	"campus-tutor-go/internal/model"
	"campus-tutor-go/internal/repository"
	"campus-tutor-go/pkg/log"
)

// QuotaService 定义了每日配额的检查与记账操作。
//
// 两条失败策略是刻意不对称的：CheckLimit 在存储不可用时放行
// （可用性优先，一次依赖故障不应挡住所有用户），RecordQuery 的
// 失败只记日志不上抛（答案已经算出来了，事后记账失败不应拦截响应）。
type QuotaService interface {
	// CheckLimit 只读地检查当前身份今天是否还有配额，不产生任何写入。
	CheckLimit(ctx context.Context, identity string) (model.QuotaStatus, error)
	// RecordQuery 为一次已接受的查询记账，管理员不计数。
	RecordQuery(ctx context.Context, identity string)
	// Usage 返回某身份今天的已用次数，供管理端查询。
	Usage(ctx context.Context, identity string) (int, error)
}

type quotaService struct {
	quotaRepo      repository.QuotaRepository
	credentialRepo repository.CredentialRepository
	dailyLimit     int
}

// NewQuotaService 创建一个新的 QuotaService 实例。
func NewQuotaService(quotaRepo repository.QuotaRepository, credentialRepo repository.CredentialRepository, dailyLimit int) QuotaService {
	return &quotaService{
		quotaRepo:      quotaRepo,
		credentialRepo: credentialRepo,
		dailyLimit:     dailyLimit,
	}
}

// dayKey 统一使用 UTC 日历日，避免时区歧义；跨天翻转是隐式的。
func dayKey() string {
	return time.Now().UTC().Format("2006-01-02")
}

// CheckLimit 返回当前身份的配额使用情况。
func (s *quotaService) CheckLimit(ctx context.Context, identity string) (model.QuotaStatus, error) {
	isAdmin, err := s.credentialRepo.IsAdmin(ctx, identity)
	if err != nil {
		// fail-open：无法确认时按普通用户继续走计数分支
		log.Warnf("[QuotaService] 管理员集合查询失败, identity: %s, err: %v", identity, err)
	}
	if isAdmin {
		return model.QuotaStatus{Allowed: true, Unlimited: true, Limit: s.dailyLimit}, nil
	}

	used, err := s.quotaRepo.Count(ctx, identity, dayKey())
	if err != nil {
		// fail-open：存储不可用时放行本次查询
		log.Warnf("[QuotaService] 配额读取失败, 放行本次查询, identity: %s, err: %v", identity, err)
		return model.QuotaStatus{Allowed: true, Used: 0, Remaining: s.dailyLimit, Limit: s.dailyLimit}, nil
	}

	remaining := s.dailyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return model.QuotaStatus{
		Allowed:   used < s.dailyLimit,
		Used:      used,
		Remaining: remaining,
		Limit:     s.dailyLimit,
	}, nil
}

// RecordQuery 原子地累加当日计数。增量依赖存储侧的原子自增，
// 同一身份的并发请求都会被计入，不存在读改写竞态。
func (s *quotaService) RecordQuery(ctx context.Context, identity string) {
	isAdmin, err := s.credentialRepo.IsAdmin(ctx, identity)
	if err != nil {
		log.Warnf("[QuotaService] 管理员集合查询失败, identity: %s, err: %v", identity, err)
	}
	if isAdmin {
		// 管理员不计数，查询本身仍会被交互日志记录
		return
	}

	if _, err := s.quotaRepo.Increment(ctx, identity, dayKey()); err != nil {
		// 失败只记日志：响应已经计算完成，不因记账失败而拦截
		log.Errorf("[QuotaService] 配额记账失败, identity: %s, err: %v", identity, err)
	}
}

// Usage 返回某身份今天的已用次数。
func (s *quotaService) Usage(ctx context.Context, identity string) (int, error) {
	return s.quotaRepo.Count(ctx, identity, dayKey())
}
