package timekeeping

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestTimesheetResponseMarksPayPeriodEnding(t *testing.T) {
	clock := testWeekClock(t)
	ts := Timesheet{
		ID:         uuid.New(),
		UID:        "worker1",
		WeekEnding: time.Date(2019, time.January, 12, 23, 59, 59, 999000000, clock.Location()),
	}

	out := NewTimesheetResponse(ts, clock)
	require.True(t, out.PayPeriodEnding)

	ts.WeekEnding = time.Date(2019, time.January, 5, 23, 59, 59, 999000000, clock.Location())
	out = NewTimesheetResponse(ts, clock)
	require.False(t, out.PayPeriodEnding)
}
