package repository

import (
	"context"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

type EmployeeRepository struct {
	db *gorm.DB
}

func NewEmployeeRepository(db *gorm.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

func (r *EmployeeRepository) Create(ctx context.Context, e *entity.Employee) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *EmployeeRepository) Update(ctx context.Context, e *entity.Employee) error {
	return r.db.WithContext(ctx).Save(e).Error
}

func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*entity.Employee, error) {
	var e entity.Employee
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

// FindByUserID 查找登录用户关联的员工
func (r *EmployeeRepository) FindByUserID(ctx context.Context, userID string) (*entity.Employee, error) {
	var e entity.Employee
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("created_at ASC").
		First(&e).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (r *EmployeeRepository) List(ctx context.Context) ([]entity.Employee, error) {
	var list []entity.Employee
	err := r.db.WithContext(ctx).Where("active = ?", true).Order("name ASC").Find(&list).Error
	return list, err
}
