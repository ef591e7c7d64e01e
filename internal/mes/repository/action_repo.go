package repository

import (
	"context"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActionRepository 界面动作注册表
type ActionRepository struct {
	db *gorm.DB
}

func NewActionRepository(db *gorm.DB) *ActionRepository {
	return &ActionRepository{db: db}
}

func (r *ActionRepository) FindByXMLID(ctx context.Context, xmlID string) (*entity.UIAction, error) {
	var a entity.UIAction
	if err := r.db.WithContext(ctx).Where("xml_id = ?", xmlID).First(&a).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// Upsert 按 XMLID 新增或覆盖
func (r *ActionRepository) Upsert(ctx context.Context, a *entity.UIAction) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "xml_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "type", "res_model", "view_mode", "target", "updated_at"}),
	}).Create(a).Error
}
