package entity

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AutoMigrate 自动迁移所有MES表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// 人员
		&Employee{},

		// 生产订单
		&ManufacturingOrder{},
		&StockMove{},
		&StockMoveLine{},
		&ProductionMessage{},

		// 工单
		&WorkOrder{},
		&WorkOrderTimeLog{},

		// 界面动作
		&UIAction{},
	)
}

func newID() string {
	return uuid.New().String()
}
