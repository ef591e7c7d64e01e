package events

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/sse"
	"github.com/bitfantasy/nimo-mes/internal/shared/feishu"
)

// HubSink 推送到浏览器/终端的 SSE 连接
type HubSink struct {
	hub *sse.Hub
}

func NewHubSink(hub *sse.Hub) *HubSink {
	return &HubSink{hub: hub}
}

func (s *HubSink) Name() string { return "sse" }
func (s *HubSink) Accepts(string) bool { return true }
func (s *HubSink) Send(_ context.Context, e Event) error {
	s.hub.Broadcast(sse.Event{EventType: e.Type, Data: string(e.JSON())})
	return nil
}

// Publisher 消息总线发布接口
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// busConfirmTimeout 等待 broker 确认的上限
const busConfirmTimeout = 5 * time.Second

// BusSink 以事件类型为 routing key 发布到 topic exchange
type BusSink struct {
	pub     Publisher
	timeout time.Duration
}

func NewBusSink(pub Publisher) *BusSink {
	return &BusSink{pub: pub, timeout: busConfirmTimeout}
}

func (s *BusSink) Name() string { return "rabbitmq" }
func (s *BusSink) Accepts(string) bool { return true }
func (s *BusSink) Send(ctx context.Context, e Event) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.pub.Publish(ctx, "mes."+e.Type, e.JSON())
}

// CardSender 飞书卡片发送接口
type CardSender interface {
	SendCard(ctx context.Context, chatID string, card feishu.InteractiveCard) error
}

// FeishuSink 异常上报推送到飞书群
type FeishuSink struct {
	client CardSender
	chatID string
}

func NewFeishuSink(client CardSender, chatID string) *FeishuSink {
	return &FeishuSink{client: client, chatID: chatID}
}

func (s *FeishuSink) Name() string { return "feishu" }

func (s *FeishuSink) Accepts(eventType string) bool {
	return eventType == WorkOrderIssueReported
}

func (s *FeishuSink) Send(ctx context.Context, e Event) error {
	issue, _ := e.Payload["issue"].(string)
	card := feishu.NewIssueReportedCard(e.ProductionName, e.WorkOrderName, e.OperatorName, issue)
	return s.client.SendCard(ctx, s.chatID, card)
}
