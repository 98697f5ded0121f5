package service

import (
	"context"
	"fmt"
	"time"

	"campus-tutor-go/internal/model"
	"campus-tutor-go/internal/repository"
	"campus-tutor-go/pkg/log"
	"campus-tutor-go/pkg/queue"
	"campus-tutor-go/pkg/storage"
)

// 原件回查链接的有效期。
const sourceURLExpiry = 15 * time.Minute

// AdminService 定义了管理端的名单维护与督导查询操作。
type AdminService interface {
	AddToWhitelist(ctx context.Context, identity string) error
	RemoveFromWhitelist(ctx context.Context, identity string) error
	Whitelist(ctx context.Context) ([]string, error)

	GrantAdmin(ctx context.Context, identity string) error
	RevokeAdmin(ctx context.Context, identity string) error
	Admins(ctx context.Context) ([]string, error)

	ListInteractions(identity string, offset, limit int) ([]model.InteractionRecord, int64, error)
	TriggerReindex(sourceDir string, recursive bool, requester string) error
	SourceURL(ctx context.Context, objectName string) (string, error)
}

type adminService struct {
	credentialRepo  repository.CredentialRepository
	interactionRepo repository.InteractionRepository
	sourceBucket    string
}

// NewAdminService 创建一个新的 AdminService 实例。
func NewAdminService(credentialRepo repository.CredentialRepository, interactionRepo repository.InteractionRepository, sourceBucket string) AdminService {
	return &adminService{
		credentialRepo:  credentialRepo,
		interactionRepo: interactionRepo,
		sourceBucket:    sourceBucket,
	}
}

func (s *adminService) AddToWhitelist(ctx context.Context, identity string) error {
	return s.credentialRepo.AddToWhitelist(ctx, identity)
}

// RemoveFromWhitelist 将身份移出白名单，并级联移出管理员集合。
// 不级联的话，被移出白名单的管理员会保留管理权限。
func (s *adminService) RemoveFromWhitelist(ctx context.Context, identity string) error {
	if err := s.credentialRepo.RemoveFromWhitelist(ctx, identity); err != nil {
		return err
	}
	if err := s.credentialRepo.RemoveAdmin(ctx, identity); err != nil {
		return fmt.Errorf("级联移除管理员失败: %w", err)
	}
	return nil
}

func (s *adminService) Whitelist(ctx context.Context) ([]string, error) {
	return s.credentialRepo.Whitelist(ctx)
}

// GrantAdmin 授予管理员权限，同时写入白名单以维持
// Admin ⊆ Whitelist 的不变式。
func (s *adminService) GrantAdmin(ctx context.Context, identity string) error {
	if err := s.credentialRepo.AddToWhitelist(ctx, identity); err != nil {
		return err
	}
	return s.credentialRepo.AddAdmin(ctx, identity)
}

func (s *adminService) RevokeAdmin(ctx context.Context, identity string) error {
	return s.credentialRepo.RemoveAdmin(ctx, identity)
}

func (s *adminService) Admins(ctx context.Context) ([]string, error) {
	return s.credentialRepo.Admins(ctx)
}

// ListInteractions 分页返回交互审计记录，identity 为空时不过滤。
func (s *adminService) ListInteractions(identity string, offset, limit int) ([]model.InteractionRecord, int64, error) {
	if identity == "" {
		return s.interactionRepo.List(offset, limit)
	}
	return s.interactionRepo.ListByIdentity(identity, offset, limit)
}

// TriggerReindex 投递一个异步重建索引任务到 Kafka。
func (s *adminService) TriggerReindex(sourceDir string, recursive bool, requester string) error {
	task := queue.IngestTask{
		SourceDir: sourceDir,
		Recursive: recursive,
		Requester: requester,
	}
	if err := queue.ProduceIngestTask(task); err != nil {
		return fmt.Errorf("投递重建索引任务失败: %w", err)
	}
	log.Infof("[AdminService] 已投递重建索引任务, dir: %s, requester: %s", sourceDir, requester)
	return nil
}

// SourceURL 为一份已归档的课程资料原件生成限时下载链接，
// 供管理员按回答引用回查原文。objectName 即归档时的相对路径。
func (s *adminService) SourceURL(ctx context.Context, objectName string) (string, error) {
	url, err := storage.GetPresignedURL(ctx, s.sourceBucket, objectName, sourceURLExpiry)
	if err != nil {
		return "", fmt.Errorf("生成原件下载链接失败: %w", err)
	}
	return url, nil
}
