package domain

import (
	"fmt"
	"time"
)

type Recurrence string

const (
	RecurrenceAll      Recurrence = "all"
	RecurrenceWeekdays Recurrence = "weekdays"
	RecurrenceWeekends Recurrence = "weekends"
)

func ParseRecurrence(s string) (Recurrence, error) {
	switch r := Recurrence(s); r {
	case RecurrenceAll, RecurrenceWeekdays, RecurrenceWeekends:
		return r, nil
	default:
		return "", fmt.Errorf("%w: 重复规则必须是 all、weekdays 或 weekends 之一", ErrValidation)
	}
}

type Assignment struct {
	ID              int64      `json:"id"`
	ShiftTemplateID int64      `json:"shiftTemplateId"`
	UserID          int64      `json:"userId"`
	AssignedBy      int64      `json:"assignedBy"`
	Recurrence      Recurrence `json:"recurrence"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	Version         int32      `json:"-"`
}

type AssignedUser struct {
	AssignmentID    int64      `json:"assignmentId"`
	ShiftTemplateID int64      `json:"-"`
	User            *User      `json:"user"`
	Recurrence      Recurrence `json:"recurrence"`
	AssignedBy      int64      `json:"assignedBy"`
}

// ScheduledShift 是某个用户在某一天实际需要上的班
type ScheduledShift struct {
	Date       string         `json:"date"`
	Template   *ShiftTemplate `json:"template"`
	Recurrence Recurrence     `json:"recurrence"`
	TotalHours float64        `json:"totalHours"`
}

type BulkItemStatus string

const (
	BulkItemCreated BulkItemStatus = "created"
	BulkItemUpdated BulkItemStatus = "updated"
	BulkItemFailed  BulkItemStatus = "failed"
	BulkItemSkipped BulkItemStatus = "skipped"
)

type BulkAssignItem struct {
	UserID     int64          `json:"userId"`
	Status     BulkItemStatus `json:"status"`
	Assignment *Assignment    `json:"assignment,omitempty"`
	Error      string         `json:"error,omitempty"`
}

type BulkAssignResult struct {
	ID         string           `json:"id"`
	TemplateID int64            `json:"templateId"`
	Recurrence Recurrence       `json:"recurrence"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
	Skipped    int              `json:"skipped"`
	Items      []BulkAssignItem `json:"items"`
}

// Complete 表示所有用户都已成功分配
func (r *BulkAssignResult) Complete() bool {
	return r.Failed == 0 && r.Skipped == 0
}
