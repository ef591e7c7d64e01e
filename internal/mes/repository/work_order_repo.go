package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WorkOrder 列表范围
const (
	ScopeInProgress = "in_progress"
	ScopeAll        = "all"
)

// activeProductionStates 车间界面默认只展示这些生产订单状态下的工单
var activeProductionStates = []string{entity.MOStateConfirmed, entity.MOStateProgress, entity.MOStateToClose}

type WorkOrderRepository struct {
	db *gorm.DB
}

func NewWorkOrderRepository(db *gorm.DB) *WorkOrderRepository {
	return &WorkOrderRepository{db: db}
}

func (r *WorkOrderRepository) Create(ctx context.Context, wo *entity.WorkOrder) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(wo).Error
}

func (r *WorkOrderRepository) GetByID(ctx context.Context, id string) (*entity.WorkOrder, error) {
	var wo entity.WorkOrder
	err := r.db.WithContext(ctx).Preload("Production").Preload("Operator").
		Where("id = ? AND deleted_at IS NULL", id).First(&wo).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &wo, nil
}

// Update 保存工单自身字段，不级联关联对象
func (r *WorkOrderRepository) Update(ctx context.Context, wo *entity.WorkOrder) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(wo).Error
}

type WOListParams struct {
	OperatorID string
	Scope      string
	Query      string
}

// List 按操作工列出工单；Query 匹配 "<生产订单号>-<工单名>"
func (r *WorkOrderRepository) List(ctx context.Context, params WOListParams) ([]entity.WorkOrder, error) {
	query := r.db.WithContext(ctx).Model(&entity.WorkOrder{}).
		Select("mes_work_orders.*").
		Preload("Production").
		Preload("Operator").
		Where("mes_work_orders.deleted_at IS NULL")
	if params.OperatorID != "" {
		query = query.Where("mes_work_orders.operator_id = ?", params.OperatorID)
	}
	if params.Scope != ScopeAll {
		query = query.Joins("JOIN mes_productions ON mes_productions.id = mes_work_orders.production_id").
			Where("mes_productions.state IN ?", activeProductionStates)
	}
	var wos []entity.WorkOrder
	if err := query.Order("mes_work_orders.created_at ASC").Find(&wos).Error; err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(params.Query))
	if q == "" {
		return wos, nil
	}
	filtered := wos[:0]
	for _, wo := range wos {
		if strings.Contains(strings.ToLower(wo.ProductionName+"-"+wo.Name), q) {
			filtered = append(filtered, wo)
		}
	}
	return filtered, nil
}

func (r *WorkOrderRepository) ListByProduction(ctx context.Context, productionID string) ([]entity.WorkOrder, error) {
	var wos []entity.WorkOrder
	err := r.db.WithContext(ctx).
		Where("production_id = ? AND deleted_at IS NULL", productionID).
		Order("created_at ASC").Find(&wos).Error
	return wos, err
}

// OpenTimeLogs 未结束的工时记录
func (r *WorkOrderRepository) OpenTimeLogs(ctx context.Context, workOrderID string) ([]entity.WorkOrderTimeLog, error) {
	var logs []entity.WorkOrderTimeLog
	err := r.db.WithContext(ctx).
		Where("work_order_id = ? AND date_end IS NULL", workOrderID).
		Find(&logs).Error
	return logs, err
}

func (r *WorkOrderRepository) CreateTimeLog(ctx context.Context, l *entity.WorkOrderTimeLog) error {
	return r.db.WithContext(ctx).Create(l).Error
}

// CloseTimeLog 结束工时记录，返回本段时长（分钟）
func (r *WorkOrderRepository) CloseTimeLog(ctx context.Context, l *entity.WorkOrderTimeLog, end time.Time) (float64, error) {
	minutes := end.Sub(l.DateStart).Minutes()
	if minutes < 0 {
		minutes = 0
	}
	l.DateEnd = &end
	l.Duration = minutes
	return minutes, r.db.WithContext(ctx).Save(l).Error
}

// IsUserWorking 指定员工是否有进行中的计时
func (r *WorkOrderRepository) IsUserWorking(ctx context.Context, workOrderID, employeeID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.WorkOrderTimeLog{}).
		Where("work_order_id = ? AND employee_id = ? AND date_end IS NULL", workOrderID, employeeID).
		Count(&count).Error
	return count > 0, err
}
