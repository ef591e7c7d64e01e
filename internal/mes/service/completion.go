package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
)

// MarkDoneContext 完成动作的上下文开关
type MarkDoneContext struct {
	FillConsumed bool `json:"fill_consumed"`
}

// Completion 生产订单完成行为
type Completion interface {
	MarkDone(ctx context.Context, repos *repository.Repositories, orders []*entity.ManufacturingOrder, mctx MarkDoneContext) error
}

// BaseCompletion 标准完成逻辑
type BaseCompletion struct{}

var completableStates = map[string]bool{
	entity.MOStateConfirmed: true,
	entity.MOStateProgress:  true,
	entity.MOStateToClose:   true,
}

func (BaseCompletion) MarkDone(ctx context.Context, repos *repository.Repositories, orders []*entity.ManufacturingOrder, _ MarkDoneContext) error {
	now := time.Now()
	for _, mo := range orders {
		if !completableStates[mo.State] {
			return fmt.Errorf("%w: production %s is %s", ErrInvalidState, mo.Name, mo.State)
		}
		if mo.QtyProducing == 0 {
			mo.QtyProducing = mo.ProductQty
		}

		for i := range mo.RawMoves {
			move := &mo.RawMoves[i]
			if move.State == entity.MoveStateDone || move.State == entity.MoveStateCancel {
				continue
			}
			move.State = entity.MoveStateDone
			if err := repos.Production.UpdateMove(ctx, move); err != nil {
				return fmt.Errorf("更新库存移动失败: %w", err)
			}
		}

		wos, err := repos.WorkOrder.ListByProduction(ctx, mo.ID)
		if err != nil {
			return fmt.Errorf("查询工单失败: %w", err)
		}
		for i := range wos {
			wo := &wos[i]
			if wo.State == entity.WOStateDone || wo.State == entity.WOStateCancel {
				continue
			}
			if _, err := closeTimeLogs(ctx, repos, wo, now); err != nil {
				return err
			}
			wo.State = entity.WOStateDone
			wo.DateFinished = &now
			if err := repos.WorkOrder.Update(ctx, wo); err != nil {
				return fmt.Errorf("更新工单失败: %w", err)
			}
		}

		mo.State = entity.MOStateDone
		mo.DateFinished = &now
		if err := repos.Production.Update(ctx, mo); err != nil {
			return fmt.Errorf("更新生产订单失败: %w", err)
		}
	}
	return nil
}

// FillConsumedCompletion 完成前把未填写的消耗数量补齐为计划数量
type FillConsumedCompletion struct {
	Next Completion
}

func (c FillConsumedCompletion) MarkDone(ctx context.Context, repos *repository.Repositories, orders []*entity.ManufacturingOrder, mctx MarkDoneContext) error {
	if mctx.FillConsumed {
		for _, mo := range orders {
			for i := range mo.RawMoves {
				for j := range mo.RawMoves[i].Lines {
					line := &mo.RawMoves[i].Lines[j]
					if !line.QtyDone.IsZero() {
						continue
					}
					line.QtyDone = line.ProductUomQty
					if err := repos.Production.UpdateLine(ctx, line); err != nil {
						return fmt.Errorf("补齐消耗数量失败: %w", err)
					}
				}
			}
		}
	}
	return c.Next.MarkDone(ctx, repos, orders, mctx)
}

// closeTimeLogs 结束工单所有进行中的计时，累加到工单时长
func closeTimeLogs(ctx context.Context, repos *repository.Repositories, wo *entity.WorkOrder, end time.Time) (float64, error) {
	logs, err := repos.WorkOrder.OpenTimeLogs(ctx, wo.ID)
	if err != nil {
		return 0, fmt.Errorf("查询工时记录失败: %w", err)
	}
	var total float64
	for i := range logs {
		minutes, err := repos.WorkOrder.CloseTimeLog(ctx, &logs[i], end)
		if err != nil {
			return 0, fmt.Errorf("结束工时记录失败: %w", err)
		}
		total += minutes
	}
	wo.Duration += total
	return total, nil
}
