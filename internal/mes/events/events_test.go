package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/sse"
	"github.com/bitfantasy/nimo-mes/internal/shared/feishu"
)

type recordingPublisher struct {
	keys      []string
	bodies    [][]byte
	ctxErrs   []error
	deadlines []bool
	err       error
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, body []byte) error {
	p.keys = append(p.keys, key)
	p.bodies = append(p.bodies, body)
	p.ctxErrs = append(p.ctxErrs, ctx.Err())
	_, ok := ctx.Deadline()
	p.deadlines = append(p.deadlines, ok)
	return p.err
}

type recordingCards struct {
	chats []string
	cards []feishu.InteractiveCard
}

func (r *recordingCards) SendCard(_ context.Context, chatID string, card feishu.InteractiveCard) error {
	r.chats = append(r.chats, chatID)
	r.cards = append(r.cards, card)
	return nil
}

func TestFanoutDeliversToAcceptingSinks(t *testing.T) {
	hub := sse.NewHub(nil)
	client := &sse.Client{ID: "c1", UserID: "u1", Events: make(chan sse.Event, 4)}
	hub.Register(client)

	pub := &recordingPublisher{}
	cards := &recordingCards{}
	f := NewFanout(nil, NewHubSink(hub), NewBusSink(pub), NewFeishuSink(cards, "oc_issue"))

	f.Notify(context.Background(), Event{Type: WorkOrderScrapRecorded, WorkOrderID: "wo-1"})
	f.Notify(context.Background(), Event{
		Type:           WorkOrderIssueReported,
		WorkOrderID:    "wo-1",
		WorkOrderName:  "Assembly",
		ProductionName: "MO/0001",
		Payload:        map[string]interface{}{"issue": "belt torn"},
	})

	if len(client.Events) != 2 {
		t.Errorf("Expected 2 SSE events, got %d", len(client.Events))
	}
	if len(pub.keys) != 2 || pub.keys[1] != "mes.workorder.issue_reported" {
		t.Errorf("Unexpected routing keys: %v", pub.keys)
	}
	if len(cards.cards) != 1 || cards.chats[0] != "oc_issue" {
		t.Fatalf("Expected exactly one feishu card for the issue, got %d", len(cards.cards))
	}

	var decoded Event
	if err := json.Unmarshal(pub.bodies[0], &decoded); err != nil {
		t.Fatalf("Bus body is not JSON: %v", err)
	}
	if decoded.OccurredAt.IsZero() || time.Since(decoded.OccurredAt) > time.Minute {
		t.Errorf("Expected occurred_at to be stamped, got %v", decoded.OccurredAt)
	}
}

func TestFanoutSwallowsSinkErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	f := NewFanout(nil, NewBusSink(pub))
	f.Notify(context.Background(), Event{Type: WorkOrderStarted})
	if len(pub.keys) != 1 {
		t.Fatalf("Expected publish attempt, got %d", len(pub.keys))
	}
}

func TestFanoutDetachesCallerCancellation(t *testing.T) {
	pub := &recordingPublisher{}
	f := NewFanout(nil, NewBusSink(pub))

	// 请求已结束（客户端断开）后才投递
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.Notify(ctx, Event{Type: WorkOrderIssueReported, WorkOrderID: "wo-1"})

	if len(pub.keys) != 1 {
		t.Fatalf("Expected one publish, got %d", len(pub.keys))
	}
	if pub.ctxErrs[0] != nil {
		t.Errorf("Expected live context in sink, got %v", pub.ctxErrs[0])
	}
	if !pub.deadlines[0] {
		t.Error("Expected bus publish to carry a confirm deadline")
	}
}
