package services

import (
	"sync"

	"matchsim-service/logger"
)

// InMemoryBroker 是 NotificationBroker 接口的内存实现，
// 没有配置外部消息中间件时作为默认通道使用
type InMemoryBroker struct {
	// 存储每个 Topic 对应的消费者通道列表
	consumers map[string][]chan Notification
	mu        sync.RWMutex
	closed    bool
}

// NewInMemoryBroker 创建 InMemoryBroker 实例
func NewInMemoryBroker() *InMemoryBroker {
	return &InMemoryBroker{
		consumers: make(map[string][]chan Notification),
	}
}

// Publish 实现 NotificationBroker 接口
func (b *InMemoryBroker) Publish(n Notification) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}

	consumerChans, ok := b.consumers[n.Topic]
	if !ok {
		// 没有消费者不算错误，通知直接丢弃
		return nil
	}

	for _, ch := range consumerChans {
		select {
		case ch <- n:
		default:
			// 消费者处理不过来时丢弃，不能阻塞 tick 路径
			logger.Printf("[InMemoryBroker] ⚠️ Consumer of topic %s is slow. Notification dropped.", n.Topic)
		}
	}

	return nil
}

// Subscribe 实现 NotificationBroker 接口
func (b *InMemoryBroker) Subscribe(topic string) (<-chan Notification, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Notification, 256)
	b.consumers[topic] = append(b.consumers[topic], ch)
	return ch, nil
}

// Close 实现 NotificationBroker 接口
func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, chans := range b.consumers {
		for _, ch := range chans {
			close(ch)
		}
	}
	b.consumers = make(map[string][]chan Notification)
	return nil
}
