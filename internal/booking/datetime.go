package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// isoLayout matches the millisecond UTC form browsers produce for instants.
const isoLayout = "2006-01-02T15:04:05.000Z"

// NormalizeLocalDatetime reads a "YYYY-MM-DDTHH:mm:ss" wall-clock string in
// loc and returns the UTC instant. Missing or unreadable month and day fall
// back to 1; missing or unreadable time fields fall back to 0. Only an
// unreadable year is an error. The offset applied is the one loc has at that
// wall-clock moment, so DST is honored.
func NormalizeLocalDatetime(local string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	local = strings.TrimSpace(local)
	datePart, timePart, _ := strings.Cut(local, "T")
	if timePart == "" {
		timePart = "00:00:00"
	}

	dateFields := strings.Split(datePart, "-")
	year, err := strconv.Atoi(strings.TrimSpace(dateFields[0]))
	if err != nil || year <= 0 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDatetime, local)
	}
	month := fieldOr(dateFields, 1, 1)
	day := fieldOr(dateFields, 2, 1)

	timeFields := strings.Split(timePart, ":")
	hour := fieldOr(timeFields, 0, 0)
	minute := fieldOr(timeFields, 1, 0)
	second := fieldOr(timeFields, 2, 0)

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, loc).UTC(), nil
}

// ISOString formats an instant the way the scheduling backend expects.
func ISOString(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

// fieldOr parses fields[i] as an integer, returning def when absent, zero or
// unreadable. Fractional seconds are truncated.
func fieldOr(fields []string, i, def int) int {
	if i >= len(fields) {
		return def
	}
	raw := strings.TrimSpace(fields[i])
	if whole, _, ok := strings.Cut(raw, "."); ok {
		raw = whole
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n == 0 {
		return def
	}
	return n
}
