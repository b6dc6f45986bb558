package scheduler

import "time"

const millisecondsPerHour = float64(time.Hour / time.Millisecond)

// TotalHours 计算班次时长（小时）。只取两个时刻在 UTC 下的时分秒，结束早于开始时视为跨夜，补上 24 小时。
// 开始和结束相同时返回 0。
func TotalHours(start, end time.Time) float64 {
	d := timeOfDay(end) - timeOfDay(start)
	if d < 0 {
		d += 24 * time.Hour
	}

	return float64(d.Milliseconds()) / millisecondsPerHour
}

func timeOfDay(t time.Time) time.Duration {
	t = t.UTC()
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}
