package task

import (
	"fmt"
	"time"
)

// FormatDuration renders d rounded to seconds as "HH:MM:SS", prefixed
// with "DD:" when it spans at least a day. Negative durations render as zero.
func FormatDuration(d time.Duration) string {
	secs := int64(d.Round(time.Second) / time.Second)
	if secs < 0 {
		secs = 0
	}
	days := secs / 86400
	secs %= 86400
	h, m, s := secs/3600, secs%3600/60, secs%60
	if days > 0 {
		return fmt.Sprintf("%02d:%02d:%02d:%02d", days, h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
