package notify

import (
	"mime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/domain"
	"github.com/wneessen/go-mail"
)

func nightShiftEvent(eventType domain.AssignmentEventType) domain.AssignmentEvent {
	return domain.AssignmentEvent{
		Type:          eventType,
		CompanyID:     1,
		TemplateID:    7,
		TemplateTitle: "夜班",
		StartTime:     time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC),
		EndTime:       time.Date(2024, 1, 1, 22, 30, 0, 0, time.UTC),
		UserID:        3,
		UserEmail:     "zhangsan@example.com",
		UserFullName:  "张三",
		Recurrence:    domain.RecurrenceWeekdays,
		ActorID:       1,
		OccurredAt:    time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestRenderInLocalTimezone(t *testing.T) {
	r, err := NewRenderer("Asia/Shanghai")
	require.NoError(t, err)

	subject, body, err := r.Render(nightShiftEvent(domain.AssignmentCreated))
	require.NoError(t, err)

	assert.Equal(t, "排班系统 - 您有一个新的班次安排", subject)
	assert.Contains(t, body, "张三")
	assert.Contains(t, body, "夜班")
	// 14:00Z - 22:30Z 在东八区是 22:00 - 次日 06:30
	assert.Contains(t, body, "22:00 - 06:30（次日）")
	assert.Contains(t, body, "8.50 小时")
	assert.Contains(t, body, "工作日")
}

func TestRenderRemovedOmitsRecurrence(t *testing.T) {
	r, err := NewRenderer("UTC")
	require.NoError(t, err)

	subject, body, err := r.Render(nightShiftEvent(domain.AssignmentRemoved))
	require.NoError(t, err)

	assert.Equal(t, "排班系统 - 您的班次安排已取消", subject)
	assert.Contains(t, body, "14:00 - 22:30")
	assert.NotContains(t, body, "次日")
	assert.NotContains(t, body, "工作日")
}

func TestRenderUnknownType(t *testing.T) {
	r, err := NewRenderer("UTC")
	require.NoError(t, err)

	_, _, err = r.Render(nightShiftEvent("assignment.archived"))
	assert.Error(t, err)
}

func TestNewRendererInvalidTimezone(t *testing.T) {
	_, err := NewRenderer("Mars/Olympus")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestMessage(t *testing.T) {
	r, err := NewRenderer("UTC")
	require.NoError(t, err)

	msg, err := r.Message("noreply@example.com", nightShiftEvent(domain.AssignmentUpdated))
	require.NoError(t, err)

	assert.Equal(t, []string{"<zhangsan@example.com>"}, msg.GetToString())

	// 非 ASCII 的主题会被编码为 RFC 2047 encoded-word
	raw := msg.GetGenHeader(mail.HeaderSubject)
	require.Len(t, raw, 1)

	subject, err := new(mime.WordDecoder).DecodeHeader(raw[0])
	require.NoError(t, err)
	assert.Equal(t, subjectPrefix+" - "+headings[domain.AssignmentUpdated], subject)
	assert.Equal(t, "排班系统 - 您的班次安排已变更", subject)
}
