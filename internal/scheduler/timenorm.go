package scheduler

import (
	"fmt"
	"time"

	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/domain"
)

const DateLayout = "2006-01-02"

var (
	wallClockLayouts      = []string{"15:04:05", "15:04"}
	zonedWallClockLayouts = []string{"15:04:05Z07:00", "15:04Z07:00"}
)

// Normalizer 负责调用方本地时间和 UTC 之间的转换，不保存任何状态
type Normalizer struct {
	Now func() time.Time
}

func NewNormalizer() *Normalizer {
	return &Normalizer{Now: time.Now}
}

// Location 解析 IANA 时区名，空字符串视为 UTC
func (n *Normalizer) Location(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: 无效的时区 %q", domain.ErrValidation, tz)
	}

	return loc, nil
}

// ToUTC 将时间转换为 UTC。
// RFC 3339 格式的时刻直接转换；"15:04" 或 "15:04:05" 格式的墙上时间按 tz 时区的当天解释，
// 带偏移量的墙上时间（如 "22:00Z"、"08:30+08:00"）按自身偏移量解释。
func (n *Normalizer) ToUTC(value string, tz string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}

	for _, layout := range zonedWallClockLayouts {
		clock, err := time.Parse(layout, value)
		if err != nil {
			continue
		}

		return n.onToday(clock, clock.Location()), nil
	}

	loc, err := n.Location(tz)
	if err != nil {
		return time.Time{}, err
	}

	for _, layout := range wallClockLayouts {
		clock, err := time.Parse(layout, value)
		if err != nil {
			continue
		}

		return n.onToday(clock, loc), nil
	}

	return time.Time{}, fmt.Errorf("%w: 时间 %q 格式错误，应为 ISO-8601 时刻或 HH:MM", domain.ErrValidation, value)
}

func (n *Normalizer) onToday(clock time.Time, loc *time.Location) time.Time {
	today := n.Now().In(loc)
	return time.Date(today.Year(), today.Month(), today.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, loc).UTC()
}

// ToLocal 将 UTC 时刻转换为 tz 时区的本地时间
func (n *Normalizer) ToLocal(t time.Time, tz string) (time.Time, error) {
	loc, err := n.Location(tz)
	if err != nil {
		return time.Time{}, err
	}

	return t.In(loc), nil
}

// Date 将 "2006-01-02" 解析为 tz 时区中的日历日期。date 为空时取该时区的今天。
func (n *Normalizer) Date(date string, tz string) (time.Time, error) {
	loc, err := n.Location(tz)
	if err != nil {
		return time.Time{}, err
	}

	if date == "" {
		now := n.Now().In(loc)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc), nil
	}

	d, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: 日期 %q 格式错误，应为 YYYY-MM-DD", domain.ErrValidation, date)
	}

	return d, nil
}
