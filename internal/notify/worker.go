package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/domain"
	"github.com/wneessen/go-mail"
)

// ErrMalformed 表示消息本身有问题，重新入队也无法处理
var ErrMalformed = errors.New("无法处理的消息")

type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type Worker struct {
	renderer *Renderer
	sender   Sender
	from     string
}

func NewWorker(renderer *Renderer, sender Sender, from string) *Worker {
	return &Worker{
		renderer: renderer,
		sender:   sender,
		from:     from,
	}
}

// Handle 处理一条队列消息。返回的错误包装了 ErrMalformed 时不应重新入队。
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var event domain.AssignmentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if event.UserEmail == "" {
		slog.Warn("员工没有邮箱，跳过通知", "user", event.UserID, "type", event.Type)
		return nil
	}

	msg, err := w.renderer.Message(w.from, event)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if err := w.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return err
	}

	slog.Info("已发送班次通知", "user", event.UserID, "template", event.TemplateID, "type", event.Type)
	return nil
}
