package service

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/events"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WorkOrderService 工单服务
type WorkOrderService struct {
	db        *gorm.DB
	repos     *repository.Repositories
	employees *EmployeeService
	notifier  events.Notifier
	logger    *zap.Logger
}

func NewWorkOrderService(db *gorm.DB, repos *repository.Repositories, employees *EmployeeService, notifier events.Notifier, logger *zap.Logger) *WorkOrderService {
	if notifier == nil {
		notifier = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkOrderService{db: db, repos: repos, employees: employees, notifier: notifier, logger: logger}
}

// baseDefaults 新建工单的字段默认值
func baseDefaults() map[string]interface{} {
	return map[string]interface{}{
		"state":             entity.WOStatePending,
		"work_progress":     0.0,
		"issues_reported":   "",
		"scrap_count":       0,
		"material_usage":    0.0,
		"duration":          0.0,
		"duration_expected": 0.0,
	}
}

// DefaultGet 计算新建工单的默认值；会话用户关联了员工时默认其为操作工
func (s *WorkOrderService) DefaultGet(ctx context.Context, sess Session, fields []string) (map[string]interface{}, error) {
	all := baseDefaults()
	res := all
	if len(fields) > 0 {
		res = make(map[string]interface{}, len(fields))
		for _, f := range fields {
			if v, ok := all[f]; ok {
				res[f] = v
			}
		}
	}

	emp, err := s.employees.CurrentEmployee(ctx, sess)
	if err != nil {
		return nil, err
	}
	if emp != nil {
		res["operator_id"] = emp.ID
	}
	return res, nil
}

// CreateWorkOrderInput 创建工单输入，未提供的字段取默认值
type CreateWorkOrderInput struct {
	Name             string  `json:"name" binding:"required"`
	ProductionID     string  `json:"production_id" binding:"required"`
	OperatorID       *string `json:"operator_id"`
	State            string  `json:"state"`
	DurationExpected float64 `json:"duration_expected"`
}

func (s *WorkOrderService) Create(ctx context.Context, sess Session, input *CreateWorkOrderInput) (*entity.WorkOrder, error) {
	if _, err := s.repos.Production.GetByID(ctx, input.ProductionID); err != nil {
		return nil, err
	}

	defaults, err := s.DefaultGet(ctx, sess, nil)
	if err != nil {
		return nil, err
	}
	wo := &entity.WorkOrder{
		Name:             input.Name,
		ProductionID:     input.ProductionID,
		State:            entity.WOStatePending,
		DurationExpected: input.DurationExpected,
	}
	if input.State != "" {
		wo.State = input.State
	}
	if input.OperatorID != nil {
		wo.OperatorID = *input.OperatorID
	} else if op, ok := defaults["operator_id"].(string); ok {
		wo.OperatorID = op
	}

	if err := s.repos.WorkOrder.Create(ctx, wo); err != nil {
		return nil, err
	}
	return s.repos.WorkOrder.GetByID(ctx, wo.ID)
}

func (s *WorkOrderService) Get(ctx context.Context, id string) (*entity.WorkOrder, error) {
	return s.repos.WorkOrder.GetByID(ctx, id)
}

// WorkOrderView 列表视图
type WorkOrderView struct {
	entity.WorkOrder
	FormattedDuration string `json:"formatted_duration"`
	IsUserWorking     bool   `json:"is_user_working"`
}

// ListWorkOrdersInput 列表查询；OperatorID 为空时取当前员工
type ListWorkOrdersInput struct {
	OperatorID string
	Scope      string
	Query      string
}

func (s *WorkOrderService) List(ctx context.Context, sess Session, input ListWorkOrdersInput) ([]WorkOrderView, error) {
	emp, err := s.employees.CurrentEmployee(ctx, sess)
	if err != nil {
		return nil, err
	}
	operatorID := input.OperatorID
	if operatorID == "" && emp != nil {
		operatorID = emp.ID
	}

	wos, err := s.repos.WorkOrder.List(ctx, repository.WOListParams{
		OperatorID: operatorID,
		Scope:      input.Scope,
		Query:      input.Query,
	})
	if err != nil {
		return nil, fmt.Errorf("查询工单列表失败: %w", err)
	}

	views := make([]WorkOrderView, 0, len(wos))
	for _, wo := range wos {
		v := WorkOrderView{WorkOrder: wo, FormattedDuration: FormatDuration(wo.Duration)}
		if emp != nil {
			working, err := s.repos.WorkOrder.IsUserWorking(ctx, wo.ID, emp.ID)
			if err != nil {
				return nil, fmt.Errorf("查询计时状态失败: %w", err)
			}
			v.IsUserWorking = working
		}
		views = append(views, v)
	}
	return views, nil
}

// ActionStartWorkOrder 操作工开始自己的工单
func (s *WorkOrderService) ActionStartWorkOrder(ctx context.Context, sess Session, ids []string) (*entity.WorkOrder, error) {
	id, err := ensureOne(ids)
	if err != nil {
		return nil, err
	}
	emp, err := s.employees.CurrentEmployee(ctx, sess)
	if err != nil {
		return nil, err
	}

	wo, err := s.update(ctx, id, func(_ *repository.Repositories, wo *entity.WorkOrder) error {
		if emp == nil || wo.OperatorID != emp.ID {
			return fmt.Errorf("%w: you are not assigned to this work order", ErrAccessDenied)
		}
		wo.State = entity.WOStateProgress
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, sess, events.WorkOrderStarted, wo, nil)
	return wo, nil
}

// LogProgress 记录进度，直接覆盖
func (s *WorkOrderService) LogProgress(ctx context.Context, sess Session, ids []string, progress float64) (*entity.WorkOrder, error) {
	id, err := ensureOne(ids)
	if err != nil {
		return nil, err
	}
	wo, err := s.update(ctx, id, func(_ *repository.Repositories, wo *entity.WorkOrder) error {
		wo.WorkProgress = progress
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, sess, events.WorkOrderProgressLogged, wo, map[string]interface{}{"progress": progress})
	return wo, nil
}

// ReportIssue 覆盖异常描述，并在所属生产订单上留言
func (s *WorkOrderService) ReportIssue(ctx context.Context, sess Session, ids []string, issue string) (*entity.WorkOrder, error) {
	id, err := ensureOne(ids)
	if err != nil {
		return nil, err
	}
	wo, err := s.update(ctx, id, func(repos *repository.Repositories, wo *entity.WorkOrder) error {
		wo.IssuesReported = issue
		msg := &entity.ProductionMessage{
			ProductionID: wo.ProductionID,
			AuthorID:     sess.UserID,
			Body:         IssueNoteBody(wo.Name, issue),
			MessageType:  "comment",
		}
		if err := repos.Message.Create(ctx, msg); err != nil {
			return fmt.Errorf("发布生产订单留言失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, sess, events.WorkOrderIssueReported, wo, map[string]interface{}{"issue": issue})
	return wo, nil
}

// IssueNoteBody 异常留言正文
func IssueNoteBody(workOrderName, issue string) string {
	return fmt.Sprintf("Issue reported from %s. <br/> Reported issue: %s",
		html.EscapeString(workOrderName), html.EscapeString(issue))
}

// RecordScrap 记录报废数量，直接覆盖
func (s *WorkOrderService) RecordScrap(ctx context.Context, sess Session, ids []string, scrapCount int) (*entity.WorkOrder, error) {
	id, err := ensureOne(ids)
	if err != nil {
		return nil, err
	}
	wo, err := s.update(ctx, id, func(_ *repository.Repositories, wo *entity.WorkOrder) error {
		wo.ScrapCount = scrapCount
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, sess, events.WorkOrderScrapRecorded, wo, map[string]interface{}{"scrap_count": scrapCount})
	return wo, nil
}

// RecordMaterialUsage 记录物料用量，直接覆盖
func (s *WorkOrderService) RecordMaterialUsage(ctx context.Context, sess Session, ids []string, materialUnits float64) (*entity.WorkOrder, error) {
	id, err := ensureOne(ids)
	if err != nil {
		return nil, err
	}
	wo, err := s.update(ctx, id, func(_ *repository.Repositories, wo *entity.WorkOrder) error {
		wo.MaterialUsage = materialUnits
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, sess, events.WorkOrderMaterialRecorded, wo, map[string]interface{}{"material_units": materialUnits})
	return wo, nil
}

// ButtonStart 开始计时：工单进入进行中，生产订单随之进入生产中
func (s *WorkOrderService) ButtonStart(ctx context.Context, sess Session, ids []string) (*entity.WorkOrder, error) {
	id, err := ensureOne(ids)
	if err != nil {
		return nil, err
	}
	emp, err := s.employees.CurrentEmployee(ctx, sess)
	if err != nil {
		return nil, err
	}

	wo, err := s.update(ctx, id, func(repos *repository.Repositories, wo *entity.WorkOrder) error {
		if wo.State == entity.WOStateDone || wo.State == entity.WOStateCancel {
			return fmt.Errorf("%w: work order %s is %s", ErrInvalidState, wo.Name, wo.State)
		}
		now := time.Now()
		l := &entity.WorkOrderTimeLog{WorkOrderID: wo.ID, DateStart: now}
		if emp != nil {
			working, err := repos.WorkOrder.IsUserWorking(ctx, wo.ID, emp.ID)
			if err != nil {
				return err
			}
			if working {
				return nil
			}
			l.EmployeeID = emp.ID
		}
		if err := repos.WorkOrder.CreateTimeLog(ctx, l); err != nil {
			return fmt.Errorf("创建工时记录失败: %w", err)
		}
		wo.State = entity.WOStateProgress
		if wo.DateStart == nil {
			wo.DateStart = &now
		}
		if wo.ProductionState == entity.MOStateConfirmed {
			if err := repos.Production.SetState(ctx, wo.ProductionID, entity.MOStateProgress); err != nil {
				return fmt.Errorf("更新生产订单状态失败: %w", err)
			}
			wo.ProductionState = entity.MOStateProgress
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, sess, events.WorkOrderTimerStarted, wo, nil)
	return wo, nil
}

// ButtonPending 暂停：结束进行中的计时并累加时长
func (s *WorkOrderService) ButtonPending(ctx context.Context, sess Session, ids []string) (*entity.WorkOrder, error) {
	id, err := ensureOne(ids)
	if err != nil {
		return nil, err
	}
	wo, err := s.update(ctx, id, func(repos *repository.Repositories, wo *entity.WorkOrder) error {
		_, err := closeTimeLogs(ctx, repos, wo, time.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, sess, events.WorkOrderPaused, wo, map[string]interface{}{"duration": wo.Duration})
	return wo, nil
}

// ButtonFinish 完成工单；同一生产订单的工单全部结束后订单进入待关闭
func (s *WorkOrderService) ButtonFinish(ctx context.Context, sess Session, ids []string) (*entity.WorkOrder, error) {
	id, err := ensureOne(ids)
	if err != nil {
		return nil, err
	}
	wo, err := s.update(ctx, id, func(repos *repository.Repositories, wo *entity.WorkOrder) error {
		if wo.State == entity.WOStateDone || wo.State == entity.WOStateCancel {
			return fmt.Errorf("%w: work order %s is %s", ErrInvalidState, wo.Name, wo.State)
		}
		now := time.Now()
		if _, err := closeTimeLogs(ctx, repos, wo, now); err != nil {
			return err
		}
		wo.State = entity.WOStateDone
		wo.DateFinished = &now
		if wo.DateStart == nil {
			wo.DateStart = &now
		}

		siblings, err := repos.WorkOrder.ListByProduction(ctx, wo.ProductionID)
		if err != nil {
			return fmt.Errorf("查询工单失败: %w", err)
		}
		for _, sib := range siblings {
			if sib.ID == wo.ID {
				continue
			}
			if sib.State != entity.WOStateDone && sib.State != entity.WOStateCancel {
				return nil
			}
		}
		switch wo.ProductionState {
		case entity.MOStateConfirmed, entity.MOStateProgress:
			if err := repos.Production.SetState(ctx, wo.ProductionID, entity.MOStateToClose); err != nil {
				return fmt.Errorf("更新生产订单状态失败: %w", err)
			}
			wo.ProductionState = entity.MOStateToClose
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, sess, events.WorkOrderFinished, wo, map[string]interface{}{"duration": wo.Duration})
	return wo, nil
}

// update 在事务内加载、修改并保存单个工单
func (s *WorkOrderService) update(ctx context.Context, id string, mutate func(repos *repository.Repositories, wo *entity.WorkOrder) error) (*entity.WorkOrder, error) {
	var wo *entity.WorkOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		var err error
		wo, err = repos.WorkOrder.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := mutate(repos, wo); err != nil {
			return err
		}
		return repos.WorkOrder.Update(ctx, wo)
	})
	if err != nil {
		return nil, err
	}
	return wo, nil
}

func (s *WorkOrderService) emit(ctx context.Context, sess Session, eventType string, wo *entity.WorkOrder, payload map[string]interface{}) {
	e := events.Event{
		Type:           eventType,
		WorkOrderID:    wo.ID,
		WorkOrderName:  wo.Name,
		ProductionID:   wo.ProductionID,
		ProductionName: wo.ProductionName,
		OperatorID:     wo.OperatorID,
		UserID:         sess.UserID,
		Payload:        payload,
	}
	if wo.Operator != nil {
		e.OperatorName = wo.Operator.Name
	}
	s.notifier.Notify(ctx, e)
}
