package entity

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// WorkOrderState 工单状态
const (
	WOStatePending  = "pending"
	WOStateWaiting  = "waiting"
	WOStateReady    = "ready"
	WOStateProgress = "progress"
	WOStateDone     = "done"
	WOStateCancel   = "cancel"
)

// ErrOperatorRequired 工单必须指定操作工
var ErrOperatorRequired = errors.New("operator is required")

// WorkOrder 工序工单
type WorkOrder struct {
	ID               string     `json:"id" gorm:"primaryKey;size:36"`
	Name             string     `json:"name" gorm:"size:128;not null"`
	ProductionID     string     `json:"production_id" gorm:"size:36;not null;index"`
	State            string     `json:"state" gorm:"size:20;not null;default:pending"`
	OperatorID       string     `json:"operator_id" gorm:"size:36;not null;index"`
	WorkProgress     float64    `json:"work_progress" gorm:"default:0"`
	IssuesReported   string     `json:"issues_reported" gorm:"type:text"`
	ScrapCount       int        `json:"scrap_count" gorm:"default:0"`
	MaterialUsage    float64    `json:"material_usage" gorm:"default:0"`
	Duration         float64    `json:"duration" gorm:"default:0"` // 分钟
	DurationExpected float64    `json:"duration_expected" gorm:"default:0"`
	DateStart        *time.Time `json:"date_start"`
	DateFinished     *time.Time `json:"date_finished"`
	WorksheetObject  string     `json:"-" gorm:"size:255"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty" gorm:"index"`

	Production *ManufacturingOrder `json:"-" gorm:"foreignKey:ProductionID"`
	Operator   *Employee           `json:"operator,omitempty" gorm:"foreignKey:OperatorID"`

	// 派生字段，来自所属生产订单
	ProductionName  string `json:"production_name" gorm:"-"`
	ProductionState string `json:"production_state" gorm:"-"`
	HasWorksheet    bool   `json:"has_worksheet" gorm:"-"`
}

func (WorkOrder) TableName() string {
	return "mes_work_orders"
}

func (w *WorkOrder) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = newID()
	}
	return nil
}

// BeforeSave 必填校验
func (w *WorkOrder) BeforeSave(tx *gorm.DB) error {
	if w.OperatorID == "" {
		return ErrOperatorRequired
	}
	return nil
}

// AfterFind 回填派生字段
func (w *WorkOrder) AfterFind(tx *gorm.DB) error {
	if w.Production != nil {
		w.ProductionName = w.Production.Name
		w.ProductionState = w.Production.State
	}
	w.HasWorksheet = w.WorksheetObject != ""
	return nil
}

// WorkOrderTimeLog 工时记录
type WorkOrderTimeLog struct {
	ID          string     `json:"id" gorm:"primaryKey;size:36"`
	WorkOrderID string     `json:"work_order_id" gorm:"size:36;not null;index"`
	EmployeeID  string     `json:"employee_id" gorm:"size:36;index"`
	DateStart   time.Time  `json:"date_start"`
	DateEnd     *time.Time `json:"date_end"`
	Duration    float64    `json:"duration" gorm:"default:0"` // 分钟
	CreatedAt   time.Time  `json:"created_at"`
}

func (WorkOrderTimeLog) TableName() string {
	return "mes_work_order_time_logs"
}

func (l *WorkOrderTimeLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = newID()
	}
	return nil
}
