package services

import (
	"context"
	"fmt"
	"time"

	"github.com/streadway/amqp"

	"matchsim-service/logger"
)

// AMQPNotifier 把域通知转发到外部 AMQP exchange，
// 供任务引擎、持久化镜像等外部消费者订阅。
// 连接断开时自动重连，转发失败只影响外部消费者，不影响模拟本身。
type AMQPNotifier struct {
	url      string
	exchange string

	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewAMQPNotifier 创建通知转发器
func NewAMQPNotifier(url, exchange string) *AMQPNotifier {
	return &AMQPNotifier{
		url:      url,
		exchange: exchange,
	}
}

// Connect 建立 AMQP 连接并声明 topic exchange
func (n *AMQPNotifier) Connect() error {
	conn, err := amqp.Dial(n.url)
	if err != nil {
		return fmt.Errorf("failed to connect to AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		n.exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	n.conn = conn
	n.channel = channel
	logger.Printf("[AMQPNotifier] ✅ Connected, exchange: %s", n.exchange)
	return nil
}

// Close 关闭连接
func (n *AMQPNotifier) Close() {
	if n.channel != nil {
		n.channel.Close()
	}
	if n.conn != nil {
		n.conn.Close()
	}
}

// Run 消费 Broker 上的全部域通知 Topic 并转发到 AMQP，
// routing key 形如 matchsim-session-finished.42。阻塞直到 ctx 取消。
func (n *AMQPNotifier) Run(ctx context.Context, broker NotificationBroker) error {
	kinds := []string{
		TopicSessionStarted,
		TopicSessionEvent,
		TopicSessionSnapshot,
		TopicSessionFinished,
		TopicSessionReset,
	}

	merged := make(chan Notification, 256)
	for _, kind := range kinds {
		ch, err := broker.Subscribe(TopicName(kind))
		if err != nil {
			return fmt.Errorf("failed to subscribe %s: %w", kind, err)
		}
		go func(ch <-chan Notification) {
			for notif := range ch {
				select {
				case merged <- notif:
				case <-ctx.Done():
					return
				}
			}
		}(ch)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case notif := <-merged:
			if err := n.forward(notif); err != nil {
				logger.Errorf("[AMQPNotifier] Failed to forward %s for match %d: %v", notif.Topic, notif.MatchID, err)
				n.reconnect()
			}
		}
	}
}

// forward 发布单条通知
func (n *AMQPNotifier) forward(notif Notification) error {
	if n.channel == nil {
		return fmt.Errorf("channel not open")
	}
	routingKey := fmt.Sprintf("%s.%d", notif.Topic, notif.MatchID)
	return n.channel.Publish(
		n.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        notif.Payload,
		},
	)
}

// reconnect 尽力重连，失败后等下一次转发再试
func (n *AMQPNotifier) reconnect() {
	n.Close()
	n.conn = nil
	n.channel = nil
	if err := n.Connect(); err != nil {
		logger.Errorf("[AMQPNotifier] Reconnect failed: %v", err)
	}
}
