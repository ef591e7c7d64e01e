package repository

import (
	"context"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductionRepository struct {
	db *gorm.DB
}

func NewProductionRepository(db *gorm.DB) *ProductionRepository {
	return &ProductionRepository{db: db}
}

// Create 创建生产订单（连同消耗移动和明细）
func (r *ProductionRepository) Create(ctx context.Context, mo *entity.ManufacturingOrder) error {
	return r.db.WithContext(ctx).Create(mo).Error
}

func (r *ProductionRepository) GetByID(ctx context.Context, id string) (*entity.ManufacturingOrder, error) {
	var mo entity.ManufacturingOrder
	err := r.db.WithContext(ctx).
		Preload("RawMoves", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("RawMoves.Lines", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", id).First(&mo).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &mo, nil
}

// GetByIDs 按给定顺序加载多个生产订单
func (r *ProductionRepository) GetByIDs(ctx context.Context, ids []string) ([]*entity.ManufacturingOrder, error) {
	orders := make([]*entity.ManufacturingOrder, 0, len(ids))
	for _, id := range ids {
		mo, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		orders = append(orders, mo)
	}
	return orders, nil
}

// Update 只更新订单头
func (r *ProductionRepository) Update(ctx context.Context, mo *entity.ManufacturingOrder) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(mo).Error
}

func (r *ProductionRepository) UpdateMove(ctx context.Context, m *entity.StockMove) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(m).Error
}

func (r *ProductionRepository) UpdateLine(ctx context.Context, l *entity.StockMoveLine) error {
	return r.db.WithContext(ctx).Save(l).Error
}

func (r *ProductionRepository) GetMove(ctx context.Context, id string) (*entity.StockMove, error) {
	var m entity.StockMove
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *ProductionRepository) GetLine(ctx context.Context, id string) (*entity.StockMoveLine, error) {
	var l entity.StockMoveLine
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

func (r *ProductionRepository) SetState(ctx context.Context, id, state string) error {
	return r.db.WithContext(ctx).Model(&entity.ManufacturingOrder{}).
		Where("id = ?", id).UpdateColumn("state", state).Error
}
