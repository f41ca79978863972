package util

import (
    "strconv"
    "strings"
    "time"
)

// Layouts accepted by ParseTime besides unix seconds, tried in order.
var timeLayouts = []string{
    time.RFC3339Nano,
    "2006-01-02 15:04:05",
    "2006-01-02 15:04",
    "2006.01.02 15:04",
    "2006.01.02",
    "2006-01-02",
}

// ParseTime parses s as unix seconds or one of timeLayouts. Zone-less layouts
// are read as UTC and the result is always UTC.
func ParseTime(s string) (time.Time, bool) {
    s = strings.TrimSpace(s)
    if s == "" {
        return time.Time{}, false
    }
    if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
        return time.Unix(ts, 0).UTC(), true
    }
    for _, layout := range timeLayouts {
        if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
            return t.UTC(), true
        }
    }
    return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
    if t, ok := ParseTime(s); ok {
        return t
    }
    return def
}

// AlignToInterval truncates t to a multiple of d. d <= 0 returns t unchanged.
func AlignToInterval(t time.Time, d time.Duration) time.Time {
    if d <= 0 {
        return t
    }
    return t.Truncate(d)
}
