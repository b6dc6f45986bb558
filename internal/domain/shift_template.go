package domain

import (
	"time"
)

// ShiftTemplate 描述一个每天重复的工作时间段，StartTime 和 EndTime 只有时分秒有意义。
// EndTime 早于 StartTime 表示跨夜班次。
type ShiftTemplate struct {
	ID            int64          `json:"id"`
	CompanyID     int64          `json:"companyId"`
	Title         string         `json:"title"`
	StartTime     time.Time      `json:"startTime"`
	EndTime       time.Time      `json:"endTime"`
	TotalHours    float64        `json:"totalHours"`
	AssignedUsers []AssignedUser `json:"assignedUsers"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	Version       int32          `json:"-"`
}
