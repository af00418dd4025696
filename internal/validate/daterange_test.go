package validate

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateRange_BothBounds(t *testing.T) {
	start, end, err := DateRange("2023-01-01", "2023-06-01", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestDateRange_OpenEnded(t *testing.T) {
	start, end, err := DateRange("", "", zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, start.IsZero())
	assert.True(t, end.IsZero())
}

func TestDateRange_InvalidFormat(t *testing.T) {
	_, _, err := DateRange("01/02/2023", "", zerolog.Nop())
	assert.ErrorIs(t, err, ErrInvalidDateFormat)

	_, _, err = DateRange("2023-01-01", "not-a-date", zerolog.Nop())
	assert.ErrorIs(t, err, ErrInvalidDateFormat)
}

func TestDateRange_InvertedOrder(t *testing.T) {
	_, _, err := DateRange("2023-06-01", "2023-01-01", zerolog.Nop())
	assert.ErrorIs(t, err, ErrRangeOrder)
}

func TestDateRange_FutureEndClamped(t *testing.T) {
	start, end, err := DateRange("2023-01-01", "2100-01-01", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.False(t, end.After(time.Now().UTC()))
	assert.False(t, end.IsZero())
}
