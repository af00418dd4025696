package validate

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrInvalidDateFormat marks a date string that is not YYYY-MM-DD.
	ErrInvalidDateFormat = errors.New("invalid date format, use YYYY-MM-DD")
	// ErrRangeOrder marks a range whose start is after its end.
	ErrRangeOrder = errors.New("start date must not be after end date")
)

const dateLayout = "2006-01-02"

// DateRange parses an optional (start, end) pair of ISO dates. Empty
// strings leave that bound open and come back as zero times. An end
// date in the future is clamped to today with a warning, not an error.
func DateRange(start, end string, log zerolog.Logger) (time.Time, time.Time, error) {
	var startT, endT time.Time

	if start != "" {
		t, err := time.Parse(dateLayout, start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("start date %q: %w", start, ErrInvalidDateFormat)
		}
		startT = t.UTC()
	}
	if end != "" {
		t, err := time.Parse(dateLayout, end)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("end date %q: %w", end, ErrInvalidDateFormat)
		}
		endT = t.UTC()
	}

	if !startT.IsZero() && !endT.IsZero() && startT.After(endT) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s, end %s: %w", start, end, ErrRangeOrder)
	}

	if now := time.Now().UTC(); !endT.IsZero() && endT.After(now) {
		log.Warn().Str("end", end).Msg("end date is in the future, using today instead")
		endT = now
	}

	return startT, endT, nil
}
