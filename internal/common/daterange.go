package common

import (
	"net/http"
	"strings"
	"time"
)

// ParseDateRange reads from/to query parameters (YYYY-MM-DD or RFC3339). A missing
// bound falls back to the trailing window ending now. The returned to is exclusive.
func ParseDateRange(r *http.Request, now time.Time, window time.Duration) (time.Time, time.Time, error) {
	to := now
	from := now.Add(-window)
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			return time.Time{}, time.Time{}, NewAppError("INVALID_RANGE", "from must be a date", http.StatusBadRequest, err)
		}
		from = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			return time.Time{}, time.Time{}, NewAppError("INVALID_RANGE", "to must be a date", http.StatusBadRequest, err)
		}
		if len(raw) == len("2006-01-02") {
			parsed = parsed.Add(24 * time.Hour)
		}
		to = parsed
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, NewAppError("INVALID_RANGE", "from must be before to", http.StatusBadRequest, nil)
	}
	return from, to, nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
