package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/events"
	"github.com/wneessen/go-mail"
)

// ErrMalformedEvent 表示消息无法处理，重新入队也不会成功
var ErrMalformedEvent = errors.New("无法处理的计划事件")

type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Notifier 在计划确认后把延期风险工单通过邮件发给计划员
type Notifier struct {
	from       string
	recipients []string
	tmpl       *template.Template
	sender     Sender
	logger     *slog.Logger
}

func New(from string, recipients []string, templatePath string, sender Sender, logger *slog.Logger) (*Notifier, error) {
	tmpl, err := template.ParseFiles(templatePath)
	if err != nil {
		return nil, err
	}

	return &Notifier{
		from:       from,
		recipients: recipients,
		tmpl:       tmpl,
		sender:     sender,
		logger:     logger,
	}, nil
}

func (n *Notifier) render(event domain.PlanEvent) (string, error) {
	data := domain.AtRiskMailData{
		RunID:       event.RunID,
		CommittedAt: event.CommittedAt.Format("2006-01-02 15:04"),
		Orders:      event.AtRiskOrders,
	}

	var buf bytes.Buffer
	if err := n.tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (n *Notifier) buildMessage(event domain.PlanEvent) (*mail.Msg, error) {
	body, err := n.render(event)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return nil, err
	}
	if err := msg.To(n.recipients...); err != nil {
		return nil, err
	}
	msg.Subject(fmt.Sprintf("排产计划 - %d 个工单存在延期风险", len(event.AtRiskOrders)))
	msg.SetBodyString(mail.TypeTextHTML, body)

	return msg, nil
}

// Handle 处理一条队列消息。返回 ErrMalformedEvent 时消息应当丢弃，其他错误可以重新入队
func (n *Notifier) Handle(ctx context.Context, body []byte) error {
	event, err := events.DecodePlanEvent(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.Type != domain.EventPlanCommitted {
		return fmt.Errorf("%w: 不支持的事件类型 %q", ErrMalformedEvent, event.Type)
	}

	if len(event.AtRiskOrders) == 0 {
		n.logger.Info("计划中没有延期风险工单，不发送邮件", "runID", event.RunID)
		return nil
	}

	msg, err := n.buildMessage(event)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	if err := n.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return err
	}

	n.logger.Info("延期预警邮件已发送", "runID", event.RunID, "orders", len(event.AtRiskOrders))
	return nil
}
