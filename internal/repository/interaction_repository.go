package repository

import (
	"campus-tutor-go/internal/model"

	"gorm.io/gorm"
)

// InteractionRepository 定义了问答交互审计记录的存储操作。
type InteractionRepository interface {
	Create(record *model.InteractionRecord) error
	List(offset, limit int) ([]model.InteractionRecord, int64, error)
	ListByIdentity(identity string, offset, limit int) ([]model.InteractionRecord, int64, error)
}

type gormInteractionRepository struct {
	db *gorm.DB
}

// NewInteractionRepository 创建一个新的 InteractionRepository 实例。
func NewInteractionRepository(db *gorm.DB) InteractionRepository {
	return &gormInteractionRepository{db: db}
}

func (r *gormInteractionRepository) Create(record *model.InteractionRecord) error {
	return r.db.Create(record).Error
}

// List 按时间倒序分页返回交互记录。
func (r *gormInteractionRepository) List(offset, limit int) ([]model.InteractionRecord, int64, error) {
	var records []model.InteractionRecord
	var total int64
	if err := r.db.Model(&model.InteractionRecord{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&records).Error
	return records, total, err
}

func (r *gormInteractionRepository) ListByIdentity(identity string, offset, limit int) ([]model.InteractionRecord, int64, error) {
	var records []model.InteractionRecord
	var total int64
	q := r.db.Model(&model.InteractionRecord{}).Where("identity = ?", identity)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&records).Error
	return records, total, err
}
