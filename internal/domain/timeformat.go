package domain

import (
	"fmt"
	"time"
)

// RelativeTime renders a message timestamp the way the conversation view
// labels it: "Just now" under a minute, then minutes, then hours, then an
// absolute date once a full day has passed.
func RelativeTime(at, now time.Time) string {
	diff := now.Sub(at)

	switch {
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		m := int(diff / time.Minute)
		return fmt.Sprintf("%d minute%s ago", m, plural(m))
	case diff < 24*time.Hour:
		h := int(diff / time.Hour)
		return fmt.Sprintf("%d hour%s ago", h, plural(h))
	default:
		return at.Format("Jan 2, 3:04 PM")
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
