package services

import (
	"fmt"
)

// 域通知 Topic
const (
	TopicSessionStarted  = "session-started"
	TopicSessionEvent    = "session-event"
	TopicSessionSnapshot = "session-snapshot"
	TopicSessionFinished = "session-finished"
	TopicSessionReset    = "session-reset"
)

// Notification 定义了在 Broker 中传输的域通知结构
type Notification struct {
	Topic   string
	MatchID int64
	Payload []byte // JSON 消息体
}

// NotificationBroker 定义了域通知通道的抽象接口，
// 外部消费者（任务引擎、持久化镜像、遥测）通过它订阅阶段切换和事件通知
type NotificationBroker interface {
	// Publish 发送通知到指定的 Topic
	Publish(n Notification) error
	// Subscribe 订阅指定的 Topic，返回一个通知通道
	Subscribe(topic string) (<-chan Notification, error)
	// Close 关闭 Broker
	Close() error
}

// TopicName 根据阶段通知类别生成 Topic 名称
func TopicName(kind string) string {
	return fmt.Sprintf("matchsim-%s", kind)
}
