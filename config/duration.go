// config/duration.go
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseDurationFlexible accepts strings like "90s"/"2m", bare numbers in
// unit (e.g. "120" with unit=time.Second), or time.Duration.
// Returns def on empty/unknown types; returns def + error on invalid or
// out-of-range values. Zero is accepted only when allowZero is set.
func parseDurationFlexible(raw interface{}, def, unit time.Duration, allowZero bool) (time.Duration, error) {
	check := func(d time.Duration) (time.Duration, error) {
		if d < 0 || (d == 0 && !allowZero) {
			if allowZero {
				return def, fmt.Errorf("duration must be >=0")
			}
			return def, fmt.Errorf("duration must be >0")
		}
		return d, nil
	}

	switch t := raw.(type) {
	case time.Duration:
		return check(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return def, nil
		}
		if d, err := time.ParseDuration(s); err == nil {
			return check(d)
		}
		// Allow plain numbers in string form, e.g. "120"
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return check(time.Duration(n) * unit)
		}
		return def, fmt.Errorf("cannot parse duration %q", s)
	case int:
		return check(time.Duration(t) * unit)
	case int32:
		return check(time.Duration(int64(t)) * unit)
	case int64:
		return check(time.Duration(t) * unit)
	case float64:
		return check(time.Duration(t * float64(unit)))
	default:
		// Unknown type (nil, bool, etc.) – use default, no error
		return def, nil
	}
}
