package repository

import (
	"context"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

// MessageRepository 生产订单消息流
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, m *entity.ProductionMessage) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MessageRepository) ListByProduction(ctx context.Context, productionID string) ([]entity.ProductionMessage, error) {
	var list []entity.ProductionMessage
	err := r.db.WithContext(ctx).
		Where("production_id = ?", productionID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}
