package domain

import "time"

type AssignmentEventType string

const (
	AssignmentCreated AssignmentEventType = "assignment.created"
	AssignmentUpdated AssignmentEventType = "assignment.updated"
	AssignmentRemoved AssignmentEventType = "assignment.removed"
)

// AssignmentEvent 通过消息队列发送给外部的通知服务
type AssignmentEvent struct {
	Type          AssignmentEventType `json:"type"`
	CompanyID     int64               `json:"companyId"`
	TemplateID    int64               `json:"templateId"`
	TemplateTitle string              `json:"templateTitle"`
	StartTime     time.Time           `json:"startTime"`
	EndTime       time.Time           `json:"endTime"`
	UserID        int64               `json:"userId"`
	UserEmail     string              `json:"userEmail"`
	UserFullName  string              `json:"userFullName"`
	Recurrence    Recurrence          `json:"recurrence,omitempty"`
	ActorID       int64               `json:"actorId"`
	OccurredAt    time.Time           `json:"occurredAt"`
}
