package repository

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// Repositories MES 仓库集合
type Repositories struct {
	Employee   *EmployeeRepository
	Production *ProductionRepository
	WorkOrder  *WorkOrderRepository
	Message    *MessageRepository
	Action     *ActionRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Employee:   NewEmployeeRepository(db),
		Production: NewProductionRepository(db),
		WorkOrder:  NewWorkOrderRepository(db),
		Message:    NewMessageRepository(db),
		Action:     NewActionRepository(db),
	}
}

// WithTx 返回绑定到同一事务的仓库集合
func (r *Repositories) WithTx(tx *gorm.DB) *Repositories {
	return NewRepositories(tx)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
