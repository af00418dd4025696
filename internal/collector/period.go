package collector

import (
	"strconv"
	"strings"
	"time"
)

// periodDays converts a relative lookback period ("730d", "3mo", "1y",
// "ytd", "max") to an approximate day count. ok is false when the
// format is unrecognized.
func periodDays(period string) (days int, ok bool) {
	p := strings.ToLower(strings.TrimSpace(period))
	switch p {
	case "":
		return 0, false
	case "max":
		return 100 * 365, true
	case "ytd":
		now := time.Now()
		return int(now.Sub(time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())).Hours()/24) + 1, true
	}

	for _, suffix := range []struct {
		unit string
		mult int
	}{
		{"mo", 30},
		{"wk", 7},
		{"d", 1},
		{"y", 365},
	} {
		if strings.HasSuffix(p, suffix.unit) {
			n, err := strconv.Atoi(strings.TrimSuffix(p, suffix.unit))
			if err != nil || n <= 0 {
				return 0, false
			}
			return n * suffix.mult, true
		}
	}
	return 0, false
}

// intradayRetentionDays is how far back the upstream providers keep
// hourly bars. Requests beyond it only warn; the provider returns what
// it has.
const intradayRetentionDays = 730

// hourlyOrCoarser reports whether the interval is an hour or longer.
func hourlyOrCoarser(interval string) bool {
	switch strings.ToLower(interval) {
	case "1h", "60m", "90m", "1d", "5d", "1wk", "1mo", "3mo":
		return true
	}
	return false
}
