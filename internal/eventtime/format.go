package eventtime

import (
	"fmt"
	"time"
)

// FormatAgo renders an age for display: "just now", "12m ago", "3h 05m ago",
// "1d 4h ago". Non-positive durations render as "just now".
func FormatAgo(d time.Duration) string {
	if d < time.Minute {
		return "just now"
	}
	mins := int(d / time.Minute)
	switch {
	case mins < 60:
		return fmt.Sprintf("%dm ago", mins)
	case mins < 24*60:
		return fmt.Sprintf("%dh %02dm ago", mins/60, mins%60)
	default:
		return fmt.Sprintf("%dd %dh ago", mins/(24*60), (mins%(24*60))/60)
	}
}

// FormatElapsed renders an elapsed riding time as "H:MM" (hours may exceed 24).
func FormatElapsed(minutes float64) string {
	if minutes <= 0 {
		return "0:00"
	}
	m := int(minutes + 0.5)
	return fmt.Sprintf("%d:%02d", m/60, m%60)
}
