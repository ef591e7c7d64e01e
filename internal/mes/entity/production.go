package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductionState 生产订单状态
const (
	MOStateDraft     = "draft"
	MOStateConfirmed = "confirmed"
	MOStateProgress  = "progress"
	MOStateToClose   = "to_close"
	MOStateDone      = "done"
	MOStateCancel    = "cancel"
)

// MoveState 库存移动状态
const (
	MoveStateConfirmed = "confirmed"
	MoveStateAssigned  = "assigned"
	MoveStateDone      = "done"
	MoveStateCancel    = "cancel"
)

// ManufacturingOrder 生产订单
type ManufacturingOrder struct {
	ID           string     `json:"id" gorm:"primaryKey;size:36"`
	Name         string     `json:"name" gorm:"size:64;not null;uniqueIndex"`
	ProductName  string     `json:"product_name" gorm:"size:128"`
	ProductQty   float64    `json:"product_qty" gorm:"default:0"`
	QtyProducing float64    `json:"qty_producing" gorm:"default:0"`
	State        string     `json:"state" gorm:"size:20;not null;default:confirmed"`
	DateFinished *time.Time `json:"date_finished"`
	CreatedBy    string     `json:"created_by" gorm:"size:64"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	RawMoves []StockMove `json:"move_raw,omitempty" gorm:"foreignKey:ProductionID"`
}

func (ManufacturingOrder) TableName() string {
	return "mes_productions"
}

func (m *ManufacturingOrder) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = newID()
	}
	return nil
}

// StockMove 原材料消耗移动
type StockMove struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	ProductionID string    `json:"production_id" gorm:"size:36;not null;index"`
	ProductName  string    `json:"product_name" gorm:"size:128"`
	State        string    `json:"state" gorm:"size:20;not null;default:confirmed"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Lines []StockMoveLine `json:"move_lines,omitempty" gorm:"foreignKey:MoveID"`
}

func (StockMove) TableName() string {
	return "mes_stock_moves"
}

func (m *StockMove) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = newID()
	}
	return nil
}

// StockMoveLine 消耗明细：计划数量 / 已完成数量
type StockMoveLine struct {
	ID            string          `json:"id" gorm:"primaryKey;size:36"`
	MoveID        string          `json:"move_id" gorm:"size:36;not null;index"`
	ProductUomQty decimal.Decimal `json:"product_uom_qty" gorm:"type:decimal(12,4);not null"`
	QtyDone       decimal.Decimal `json:"qty_done" gorm:"type:decimal(12,4);not null;default:0"`
	LotName       string          `json:"lot_name" gorm:"size:64"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (StockMoveLine) TableName() string {
	return "mes_stock_move_lines"
}

func (l *StockMoveLine) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = newID()
	}
	return nil
}

// ProductionMessage 生产订单消息流
type ProductionMessage struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	ProductionID string    `json:"production_id" gorm:"size:36;not null;index"`
	AuthorID     string    `json:"author_id" gorm:"size:64"`
	Body         string    `json:"body" gorm:"type:text;not null"`
	MessageType  string    `json:"message_type" gorm:"size:20;not null;default:comment"`
	CreatedAt    time.Time `json:"created_at"`
}

func (ProductionMessage) TableName() string {
	return "mes_production_messages"
}

func (m *ProductionMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = newID()
	}
	return nil
}
