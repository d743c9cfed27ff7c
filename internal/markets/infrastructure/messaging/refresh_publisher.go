// Package messaging 领域事件发布
package messaging

import (
	"context"

	"github.com/wyfcoding/coinboard/internal/markets/domain"
)

var _ domain.EventPublisher = (*RefreshPublisher)(nil)

// sender 消息发送能力，由 mq.KafkaProducer 实现
type sender interface {
	SendMessage(ctx context.Context, topic string, key string, value any) error
}

// RefreshPublisher 把刷新完成事件发布到 Kafka，以 run_id 作为消息 key
type RefreshPublisher struct {
	producer sender
	topic    string
}

// NewRefreshPublisher 创建事件发布者
func NewRefreshPublisher(producer sender, topic string) *RefreshPublisher {
	return &RefreshPublisher{producer: producer, topic: topic}
}

// PublishRefreshCompleted 发布刷新完成事件
func (p *RefreshPublisher) PublishRefreshCompleted(ctx context.Context, event *domain.RefreshCompletedEvent) error {
	return p.producer.SendMessage(ctx, p.topic, event.RunID, event)
}
