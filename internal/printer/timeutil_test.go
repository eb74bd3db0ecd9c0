package printer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slok/missionctl/internal/printer"
)

func TestTimeAgo(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		time     time.Time
		expected string
	}{
		"Zero time should be unknown.": {
			time:     time.Time{},
			expected: "-",
		},
		"Future times should be marked.": {
			time:     now.Add(time.Minute),
			expected: "in the future",
		},
		"Seconds.": {
			time:     now.Add(-30 * time.Second),
			expected: "30s ago",
		},
		"Minutes.": {
			time:     now.Add(-45 * time.Minute),
			expected: "45m ago",
		},
		"Hours.": {
			time:     now.Add(-5 * time.Hour),
			expected: "5h ago",
		},
		"Days.": {
			time:     now.Add(-72 * time.Hour),
			expected: "3d ago",
		},
		"Other timezones should be compared as instants.": {
			time:     now.Add(-2 * time.Hour).In(time.FixedZone("CET", 3600)),
			expected: "2h ago",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expected, printer.TimeAgo(test.time, now))
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2026, 1, 30, 11, 0, 0, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, "2026-01-30 10:00:00 UTC", printer.FormatTimestamp(ts))
}
