package utils

import "time"

// FormatTimestamp renders t in UTC RFC3339 form for API responses
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
