package service

import (
	"github.com/bitfantasy/nimo-mes/internal/config"
	"github.com/bitfantasy/nimo-mes/internal/mes/events"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Employee   *EmployeeService
	Production *ProductionService
	WorkOrder  *WorkOrderService
	Worksheet  *WorksheetService
	Export     *ExportService
}

// NewServices 创建服务集合；rdb、store 可为 nil
func NewServices(db *gorm.DB, repos *repository.Repositories, rdb *redis.Client, store ObjectStore, notifier events.Notifier, cfg *config.Config, logger *zap.Logger) *Services {
	if logger == nil {
		logger = zap.NewNop()
	}
	employeeSvc := NewEmployeeService(repos.Employee, rdb, cfg.MES.EmployeeCacheTTL, logger)
	workOrderSvc := NewWorkOrderService(db, repos, employeeSvc, notifier, logger)

	return &Services{
		Employee:   employeeSvc,
		Production: NewProductionService(db, repos, notifier, logger),
		WorkOrder:  workOrderSvc,
		Worksheet:  NewWorksheetService(repos, store, cfg.MES.WorksheetActionID, cfg.MES.WorksheetPresignTTL, logger),
		Export:     NewExportService(workOrderSvc),
	}
}
