package mq

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Config RabbitMQ 连接参数
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string
	Exchange string
}

// URL 拼接 amqp 连接串，用户名和密码会被转义
func (c Config) URL() string {
	vhost := c.VHost
	if vhost == "/" {
		vhost = ""
	}
	u := url.URL{
		Scheme:  "amqp",
		User:    url.UserPassword(c.User, c.Password),
		Host:    net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:    "/" + vhost,
		RawPath: "/" + url.PathEscape(vhost),
	}
	return u.String()
}

// Publisher 带 publisher confirm 的 topic 发布者
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// Dial 建立连接并声明 topic exchange
func Dial(cfg Config) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: cfg.Exchange}, nil
}

// Ping 连接健康检查
func (p *Publisher) Ping() error {
	if p == nil || p.conn == nil || p.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

// Publish 发布持久化 JSON 消息并等待本条消息的 broker 确认。
// ctx 结束时放弃等待，迟到的确认只作用于这条消息本身。
func (p *Publisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	conf, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	if conf == nil {
		// channel 不在 confirm 模式
		return nil
	}
	return waitConfirm(ctx, conf, routingKey)
}

// confirmation 单条消息的确认结果
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

func waitConfirm(ctx context.Context, conf confirmation, routingKey string) error {
	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait confirm %s: %w", routingKey, err)
	}
	if !acked {
		return fmt.Errorf("publish %s: NACK from broker", routingKey)
	}
	return nil
}

// Close 关闭 channel 和连接
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
