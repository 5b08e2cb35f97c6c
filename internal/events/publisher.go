package events

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
)

// Publisher 把计划事件发送到持久化队列，由 notifier 消费
type Publisher struct {
	ch      *amqp.Channel
	queue   string
	timeout time.Duration
}

func NewPublisher(ch *amqp.Channel, queue string, timeout time.Duration) *Publisher {
	return &Publisher{
		ch:      ch,
		queue:   queue,
		timeout: timeout,
	}
}

// DeclareQueue 声明事件队列，api 和 notifier 启动时都会调用
func DeclareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,  // 队列名称
		true,  // 是否持久化
		false, // 是否自动删除
		false, // 是否独占
		false, // 是否不等待
		nil,   // 额外参数
	)
}

func (p *Publisher) PublishPlanEvent(ctx context.Context, event domain.PlanEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.ch.PublishWithContext(
		ctx,
		"",
		p.queue,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.CommittedAt,
			Type:         event.Type,
			Body:         body,
		},
	)
}

// DecodePlanEvent 解析队列中的消息体
func DecodePlanEvent(body []byte) (domain.PlanEvent, error) {
	var event domain.PlanEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return event, err
	}
	return event, nil
}

// NewPlanEvent 从确认的计划构建事件，只携带延期风险工单
func NewPlanEvent(run *domain.ScheduleRun) domain.PlanEvent {
	return domain.PlanEvent{
		Type:         domain.EventPlanCommitted,
		RunID:        run.ID,
		CommittedBy:  run.CommittedBy,
		CommittedAt:  run.CreatedAt,
		AtRiskOrders: run.Plan.AtRiskOrders(),
	}
}
