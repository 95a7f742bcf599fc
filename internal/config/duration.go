package config

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
)

var phrasePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([a-z]+)$`)

var phraseUnits = map[string]time.Duration{
	"ms": time.Millisecond, "msec": time.Millisecond, "msecs": time.Millisecond,
	"millisecond": time.Millisecond, "milliseconds": time.Millisecond,
	"s": time.Second, "sec": time.Second, "secs": time.Second,
	"second": time.Second, "seconds": time.Second,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute,
	"minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour,
	"hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
	"w": 7 * 24 * time.Hour, "week": 7 * 24 * time.Hour, "weeks": 7 * 24 * time.Hour,
	"y": 8766 * time.Hour, "yr": 8766 * time.Hour, "yrs": 8766 * time.Hour,
	"year": 8766 * time.Hour, "years": 8766 * time.Hour,
}

// ParseDuration accepts bare integers (seconds), Go durations extended with
// days and weeks ("7d", "1w2d", "1h30m") and single-unit phrases such as
// "2 days", "1.5 hours" or "1y" (365.25 days).
func ParseDuration(value string) (time.Duration, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds > math.MaxInt64/int64(time.Second) {
			return 0, fmt.Errorf("duration %q overflows", value)
		}
		return positive(time.Duration(seconds) * time.Second)
	}

	if parsed, err := str2duration.ParseDuration(value); err == nil {
		return positive(parsed)
	}

	match := phrasePattern.FindStringSubmatch(value)
	if match == nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	unit, ok := phraseUnits[match[2]]
	if !ok {
		return 0, fmt.Errorf("invalid duration unit in %q", value)
	}
	n, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	total := n * float64(unit)
	if total >= math.MaxInt64 {
		return 0, fmt.Errorf("duration %q overflows", value)
	}
	return positive(time.Duration(total))
}

func positive(d time.Duration) (time.Duration, error) {
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive")
	}
	return d, nil
}
