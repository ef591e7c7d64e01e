package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/events"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProductionService 生产订单服务
type ProductionService struct {
	db         *gorm.DB
	repos      *repository.Repositories
	completion Completion
	notifier   events.Notifier
	logger     *zap.Logger
}

func NewProductionService(db *gorm.DB, repos *repository.Repositories, notifier events.Notifier, logger *zap.Logger) *ProductionService {
	if notifier == nil {
		notifier = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductionService{
		db:         db,
		repos:      repos,
		completion: FillConsumedCompletion{Next: BaseCompletion{}},
		notifier:   notifier,
		logger:     logger,
	}
}

// MarkDone 完成生产订单；FillConsumed 时先补齐未填写的消耗数量
func (s *ProductionService) MarkDone(ctx context.Context, sess Session, ids []string, mctx MarkDoneContext) ([]*entity.ManufacturingOrder, error) {
	if err := ensureAny(ids); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		orders, err := repos.Production.GetByIDs(ctx, ids)
		if err != nil {
			return err
		}
		return s.completion.MarkDone(ctx, repos, orders, mctx)
	})
	if err != nil {
		return nil, err
	}

	orders, err := s.repos.Production.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, mo := range orders {
		s.notifier.Notify(ctx, events.Event{
			Type:           events.ProductionDone,
			ProductionID:   mo.ID,
			ProductionName: mo.Name,
			UserID:         sess.UserID,
			Payload:        map[string]interface{}{"fill_consumed": mctx.FillConsumed},
		})
	}
	s.logger.Info("productions marked done", zap.Strings("ids", ids), zap.Bool("fill_consumed", mctx.FillConsumed))
	return orders, nil
}

// CreateLineInput 消耗明细
type CreateLineInput struct {
	ProductUomQty decimal.Decimal `json:"product_uom_qty"`
	QtyDone       decimal.Decimal `json:"qty_done"`
	LotName       string          `json:"lot_name"`
}

// CreateMoveInput 消耗移动
type CreateMoveInput struct {
	ProductName string            `json:"product_name"`
	Lines       []CreateLineInput `json:"move_lines"`
}

// CreateProductionInput 创建生产订单输入
type CreateProductionInput struct {
	Name        string            `json:"name" binding:"required"`
	ProductName string            `json:"product_name"`
	ProductQty  float64           `json:"product_qty"`
	State       string            `json:"state"`
	Moves       []CreateMoveInput `json:"move_raw"`
}

func (s *ProductionService) Create(ctx context.Context, sess Session, input *CreateProductionInput) (*entity.ManufacturingOrder, error) {
	state := input.State
	if state == "" {
		state = entity.MOStateConfirmed
	}
	mo := &entity.ManufacturingOrder{
		Name:        input.Name,
		ProductName: input.ProductName,
		ProductQty:  input.ProductQty,
		State:       state,
		CreatedBy:   sess.UserID,
	}
	for _, m := range input.Moves {
		move := entity.StockMove{ProductName: m.ProductName, State: entity.MoveStateConfirmed}
		for _, l := range m.Lines {
			move.Lines = append(move.Lines, entity.StockMoveLine{
				ProductUomQty: l.ProductUomQty,
				QtyDone:       l.QtyDone,
				LotName:       l.LotName,
			})
		}
		mo.RawMoves = append(mo.RawMoves, move)
	}

	if err := s.repos.Production.Create(ctx, mo); err != nil {
		return nil, fmt.Errorf("创建生产订单失败: %w", err)
	}
	return s.repos.Production.GetByID(ctx, mo.ID)
}

func (s *ProductionService) Get(ctx context.Context, id string) (*entity.ManufacturingOrder, error) {
	return s.repos.Production.GetByID(ctx, id)
}

// ListMessages 生产订单消息流，最新在前
func (s *ProductionService) ListMessages(ctx context.Context, id string) ([]entity.ProductionMessage, error) {
	if _, err := s.repos.Production.GetByID(ctx, id); err != nil {
		return nil, err
	}
	list, err := s.repos.Message.ListByProduction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("查询消息失败: %w", err)
	}
	if list == nil {
		list = []entity.ProductionMessage{}
	}
	return list, nil
}

// SetLineQtyDone 修改消耗明细的完成数量，已完成的移动不可修改
func (s *ProductionService) SetLineQtyDone(ctx context.Context, productionID, lineID string, qty decimal.Decimal) (*entity.StockMoveLine, error) {
	line, err := s.repos.Production.GetLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	move, err := s.repos.Production.GetMove(ctx, line.MoveID)
	if err != nil {
		return nil, err
	}
	if move.ProductionID != productionID {
		return nil, ErrNotFound
	}
	if move.State == entity.MoveStateDone || move.State == entity.MoveStateCancel {
		return nil, ErrLineLocked
	}
	line.QtyDone = qty
	if err := s.repos.Production.UpdateLine(ctx, line); err != nil {
		return nil, fmt.Errorf("更新消耗明细失败: %w", err)
	}
	return line, nil
}
