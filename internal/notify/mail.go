package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/scheduler"
	"github.com/wneessen/go-mail"
)

//go:embed templates/*.html
var templateFS embed.FS

const subjectPrefix = "排班系统"

var recurrenceLabels = map[domain.Recurrence]string{
	domain.RecurrenceAll:      "每天",
	domain.RecurrenceWeekdays: "工作日（周一至周五）",
	domain.RecurrenceWeekends: "周末（周六、周日）",
}

var headings = map[domain.AssignmentEventType]string{
	domain.AssignmentCreated: "您有一个新的班次安排",
	domain.AssignmentUpdated: "您的班次安排已变更",
	domain.AssignmentRemoved: "您的班次安排已取消",
}

type MailData struct {
	Heading    string
	FullName   string
	Title      string
	StartTime  string
	EndTime    string
	Overnight  bool
	Timezone   string
	TotalHours float64
	Recurrence string
}

// Renderer 把分配事件渲染成发给员工的邮件，时间按 timezone 显示
type Renderer struct {
	tmpl       *template.Template
	normalizer *scheduler.Normalizer
	timezone   string
}

func NewRenderer(timezone string) (*Renderer, error) {
	normalizer := scheduler.NewNormalizer()
	if _, err := normalizer.Location(timezone); err != nil {
		return nil, err
	}

	tmpl, err := template.ParseFS(templateFS, "templates/assignment.html")
	if err != nil {
		return nil, err
	}

	return &Renderer{
		tmpl:       tmpl,
		normalizer: normalizer,
		timezone:   timezone,
	}, nil
}

func (r *Renderer) Render(event domain.AssignmentEvent) (string, string, error) {
	heading, ok := headings[event.Type]
	if !ok {
		return "", "", fmt.Errorf("不支持的事件类型 %q", event.Type)
	}

	start, err := r.normalizer.ToLocal(event.StartTime, r.timezone)
	if err != nil {
		return "", "", err
	}
	end, err := r.normalizer.ToLocal(event.EndTime, r.timezone)
	if err != nil {
		return "", "", err
	}

	data := MailData{
		Heading:    heading,
		FullName:   event.UserFullName,
		Title:      event.TemplateTitle,
		StartTime:  start.Format("15:04"),
		EndTime:    end.Format("15:04"),
		Timezone:   r.timezone,
		TotalHours: scheduler.TotalHours(event.StartTime, event.EndTime),
	}
	data.Overnight = end.Hour()*60+end.Minute() < start.Hour()*60+start.Minute()
	if event.Type != domain.AssignmentRemoved {
		data.Recurrence = recurrenceLabels[event.Recurrence]
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", "", err
	}

	subject := fmt.Sprintf("%s - %s", subjectPrefix, heading)
	return subject, buf.String(), nil
}

// Message 构建发给事件中员工的邮件
func (r *Renderer) Message(from string, event domain.AssignmentEvent) (*mail.Msg, error) {
	subject, body, err := r.Render(event)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("无法设置邮件发件人: %w", err)
	}
	if err := msg.To(event.UserEmail); err != nil {
		return nil, fmt.Errorf("无法设置邮件收件人: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body)

	return msg, nil
}
