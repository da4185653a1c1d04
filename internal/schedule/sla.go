package schedule

import (
	"fmt"
	"time"
)

// SLALabel renders the time remaining until a ticket deadline, in the
// largest whole unit: "3d left", "2h left", "45m left". A passed deadline
// renders as "2h overdue".
func SLALabel(deadline, now time.Time) string {
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return compactDuration(-remaining) + " overdue"
	}
	return compactDuration(remaining) + " left"
}

func compactDuration(d time.Duration) string {
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd", int(d/(24*time.Hour)))
	case d >= time.Hour:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	}
}
