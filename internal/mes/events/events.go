package events

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// 事件类型
const (
	WorkOrderStarted          = "workorder.started"
	WorkOrderProgressLogged   = "workorder.progress_logged"
	WorkOrderIssueReported    = "workorder.issue_reported"
	WorkOrderScrapRecorded    = "workorder.scrap_recorded"
	WorkOrderMaterialRecorded = "workorder.material_recorded"
	WorkOrderTimerStarted     = "workorder.timer_started"
	WorkOrderPaused           = "workorder.paused"
	WorkOrderFinished         = "workorder.finished"
	ProductionDone            = "production.done"
)

// Event 车间动作事件
type Event struct {
	Type           string                 `json:"type"`
	WorkOrderID    string                 `json:"workorder_id,omitempty"`
	WorkOrderName  string                 `json:"workorder_name,omitempty"`
	ProductionID   string                 `json:"production_id,omitempty"`
	ProductionName string                 `json:"production_name,omitempty"`
	OperatorID     string                 `json:"operator_id,omitempty"`
	OperatorName   string                 `json:"operator_name,omitempty"`
	UserID         string                 `json:"user_id,omitempty"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
	OccurredAt     time.Time              `json:"occurred_at"`
}

// JSON 序列化，失败时返回空对象
func (e Event) JSON() []byte {
	b, err := json.Marshal(e)
	if err != nil {
		return []byte("{}")
	}
	return b
}

// Notifier 接收已提交的事件
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// Sink 单个投递通道
type Sink interface {
	Name() string
	Accepts(eventType string) bool
	Send(ctx context.Context, e Event) error
}

// Fanout 依次投递到所有通道，失败只记日志
type Fanout struct {
	sinks  []Sink
	logger *zap.Logger
}

func NewFanout(logger *zap.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{sinks: sinks, logger: logger}
}

// Add 追加通道
func (f *Fanout) Add(s Sink) {
	f.sinks = append(f.sinks, s)
}

// Notify 在事务提交后调用；请求结束或客户端断开不影响投递
func (f *Fanout) Notify(ctx context.Context, e Event) {
	ctx = context.WithoutCancel(ctx)
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	for _, s := range f.sinks {
		if !s.Accepts(e.Type) {
			continue
		}
		if err := s.Send(ctx, e); err != nil {
			f.logger.Warn("event delivery failed",
				zap.String("sink", s.Name()),
				zap.String("type", e.Type),
				zap.String("workorder_id", e.WorkOrderID),
				zap.Error(err))
		}
	}
}

// Nop 丢弃所有事件
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}
