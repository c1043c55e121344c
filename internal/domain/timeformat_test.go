package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		ago  time.Duration
		want string
	}{
		{"seconds old", 30 * time.Second, "Just now"},
		{"just under a minute", 59 * time.Second, "Just now"},
		{"one minute", 90 * time.Second, "1 minute ago"},
		{"several minutes", 45 * time.Minute, "45 minutes ago"},
		{"one hour", 60 * time.Minute, "1 hour ago"},
		{"several hours", 2 * time.Hour, "2 hours ago"},
		{"just under a day", 23*time.Hour + 59*time.Minute, "23 hours ago"},
		{"older than a day", 48 * time.Hour, "Mar 8, 3:00 PM"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := RelativeTime(now.Add(-tc.ago), now)
			assert.Equalf(t, tc.want, got, "expected %q for a message %s old", tc.want, tc.ago)
		})
	}
}

func TestRelativeTimeFutureTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	// Clock skew can put a server timestamp slightly ahead of local time.
	got := RelativeTime(now.Add(5*time.Second), now)
	assert.Equal(t, "Just now", got, "expected slightly-future timestamp treated as just now")
}
