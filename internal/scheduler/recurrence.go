package scheduler

import (
	"time"

	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/domain"
)

// Applies 判断重复规则在 date 这一天是否生效。
// date 需要已经是员工所在时区的日期，这里不做时区转换。
func Applies(r domain.Recurrence, date time.Time) bool {
	switch r {
	case domain.RecurrenceAll:
		return true
	case domain.RecurrenceWeekdays:
		return !isWeekend(date.Weekday())
	case domain.RecurrenceWeekends:
		return isWeekend(date.Weekday())
	default:
		return false
	}
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}
