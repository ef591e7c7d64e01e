package mq

import (
	"context"
	"errors"
	"net/url"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestConfigURL(t *testing.T) {
	cases := []struct {
		cfg  Config
		want string
	}{
		{Config{Host: "mq", Port: 5672, User: "guest", Password: "guest", VHost: "/"}, "amqp://guest:guest@mq:5672/"},
		{Config{Host: "mq", Port: 5673, User: "mes", Password: "pw", VHost: "shopfloor"}, "amqp://mes:pw@mq:5673/shopfloor"},
	}
	for _, tc := range cases {
		if got := tc.cfg.URL(); got != tc.want {
			t.Errorf("URL() = %q, want %q", got, tc.want)
		}
	}
}

func TestNilPublisherPing(t *testing.T) {
	var p *Publisher
	if err := p.Ping(); err == nil {
		t.Error("Expected error pinging nil publisher")
	}
	p.Close()
}

func TestConfigURLEscapesCredentials(t *testing.T) {
	cfg := Config{Host: "mq", Port: 5672, User: "mes@plant", Password: "p@ss/w:rd", VHost: "/"}
	raw := cfg.URL()

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}
	if u.Host != "mq:5672" {
		t.Errorf("Host = %q", u.Host)
	}
	if u.User.Username() != "mes@plant" {
		t.Errorf("Username = %q", u.User.Username())
	}
	if pw, _ := u.User.Password(); pw != "p@ss/w:rd" {
		t.Errorf("Password = %q", pw)
	}
	if _, err := amqp.ParseURI(raw); err != nil {
		t.Errorf("amqp.ParseURI(%q): %v", raw, err)
	}
}

// fakeConfirmation 模拟单条消息的 broker 确认
type fakeConfirmation struct {
	done  chan struct{}
	acked bool
}

func newFakeConfirmation() *fakeConfirmation {
	return &fakeConfirmation{done: make(chan struct{})}
}

func (f *fakeConfirmation) resolve(ack bool) {
	f.acked = ack
	close(f.done)
}

func (f *fakeConfirmation) WaitContext(ctx context.Context) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-f.done:
		return f.acked, nil
	}
}

func TestWaitConfirm(t *testing.T) {
	acked := newFakeConfirmation()
	acked.resolve(true)
	if err := waitConfirm(context.Background(), acked, "mes.a"); err != nil {
		t.Errorf("Expected ack, got %v", err)
	}

	nacked := newFakeConfirmation()
	nacked.resolve(false)
	if err := waitConfirm(context.Background(), nacked, "mes.b"); err == nil {
		t.Error("Expected NACK error")
	}
}

func TestWaitConfirmCancelledDoesNotLeakIntoNextPublish(t *testing.T) {
	// 第一条消息等待被取消，确认迟到且为 NACK
	first := newFakeConfirmation()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := waitConfirm(ctx, first, "mes.first"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	first.resolve(false)

	// 第二条只看自己的确认
	second := newFakeConfirmation()
	second.resolve(true)
	if err := waitConfirm(context.Background(), second, "mes.second"); err != nil {
		t.Fatalf("Expected second publish to see its own ack, got %v", err)
	}
}
