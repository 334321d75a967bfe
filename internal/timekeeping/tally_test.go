package timekeeping

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/crewdesk/crewdesk/internal/shared"
)

func day(dayOffset int) time.Time {
	// Week ending Saturday 2026-01-10; offset 0 is the Sunday before.
	return time.Date(2026, time.January, 4+dayOffset, 0, 0, 0, 0, time.UTC)
}

func workDay(offset int, hours float64) TimeEntry {
	return TimeEntry{Date: day(offset), TimeType: "R", Division: "OPS", Hours: hours}
}

func jobDay(offset int, job string, hours float64) TimeEntry {
	return TimeEntry{Date: day(offset), TimeType: "R", Division: "OPS", Job: job, JobHours: hours}
}

func salariedProfile() Profile {
	return Profile{UID: "u1", ManagerUID: "mgr1", PayrollID: "28", Salary: true}
}

func hourlyProfile() Profile {
	return Profile{UID: "u2", ManagerUID: "mgr1", PayrollID: "CMS4", Salary: false}
}

func TestTallySalariedFortyHourWeek(t *testing.T) {
	entries := []TimeEntry{
		workDay(1, 8), workDay(2, 8), jobDay(3, "26-101", 8), workDay(4, 8), workDay(5, 8),
	}
	summary, err := Tally(salariedProfile(), entries)
	require.NoError(t, err)
	require.Equal(t, 40.0, summary.WorkHoursTally.Hours+summary.WorkHoursTally.JobHours)
	require.Equal(t, 32.0, summary.WorkHoursTally.Hours)
	require.Equal(t, 8.0, summary.WorkHoursTally.JobHours)
	require.Equal(t, []string{"26-101"}, summary.JobNumbers)
	require.Equal(t, []string{"R"}, summary.TimeTypes)
	require.Equal(t, []string{"OPS"}, summary.Divisions)
}

func TestTallyIsDeterministic(t *testing.T) {
	entries := []TimeEntry{workDay(1, 8), workDay(2, 8), workDay(3, 8), workDay(4, 8), workDay(5, 8)}
	first, err := Tally(salariedProfile(), entries)
	require.NoError(t, err)
	second, err := Tally(salariedProfile(), entries)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestTallyProfilePreconditions(t *testing.T) {
	p := salariedProfile()
	p.PayrollID = ""
	_, err := Tally(p, []TimeEntry{workDay(1, 8)})
	require.EqualError(t, err, "Profile is missing a payrollId")

	p = salariedProfile()
	p.PayrollID = "CMS123"
	_, err = Tally(p, []TimeEntry{workDay(1, 8)})
	require.EqualError(t, err, "Profile payrollId must be numeric or CMS followed by 1 or 2 digits")

	p = salariedProfile()
	p.ManagerUID = ""
	_, err = Tally(p, []TimeEntry{workDay(1, 8)})
	require.EqualError(t, err, "Profile is missing a managerUid")
}

func TestTallyMissingHours(t *testing.T) {
	entries := []TimeEntry{{Date: day(1), TimeType: "R", Division: "OPS"}}
	_, err := Tally(hourlyProfile(), entries)
	require.EqualError(t, err, "TimeEntry is missing an hours field")
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindFailedPrecondition})
}

func TestTallyDuplicateOffRotation(t *testing.T) {
	entries := []TimeEntry{
		{Date: day(1), TimeType: "OR", Division: "OPS"},
		{Date: day(1), TimeType: "OR", Division: "OPS"},
	}
	_, err := Tally(hourlyProfile(), entries)
	require.EqualError(t, err, "More than one Off-Rotation entry exists for 2026 Jan 5")
}

func TestTallyOffRotationDaysCounted(t *testing.T) {
	entries := []TimeEntry{
		{Date: day(1), TimeType: "OR", Division: "OPS"},
		{Date: day(2), TimeType: "OR", Division: "OPS"},
		workDay(3, 8), workDay(4, 8), workDay(5, 8),
	}
	summary, err := Tally(salariedProfile(), entries)
	require.NoError(t, err)
	require.Equal(t, 2, summary.OffRotationDaysTally)
	require.Equal(t, 24.0, summary.WorkedHours())
}

func TestTallySalariedForbiddenTimeTypes(t *testing.T) {
	cases := []struct {
		name  string
		entry TimeEntry
		want  string
	}{
		{"sick", TimeEntry{Date: day(1), TimeType: "OS", Division: "OPS", Hours: 8}, "Salaried staff cannot claim Sick time"},
		{"bank", TimeEntry{Date: day(1), TimeType: "RB", Division: "OPS", Hours: 4}, "Salaried staff cannot bank overtime hours"},
		{"payout", TimeEntry{Date: day(1), TimeType: "OTO", Division: "OPS", PayoutRequestAmount: decimal.NewFromInt(500)}, "Salaried staff cannot request an overtime payout"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Tally(salariedProfile(), []TimeEntry{tc.entry})
			require.EqualError(t, err, tc.want)
		})
	}
}

func TestTallySalariedMustRecordForty(t *testing.T) {
	_, err := Tally(salariedProfile(), []TimeEntry{workDay(1, 8), workDay(2, 8)})
	require.EqualError(t, err, "Salaried staff must record exactly 40 hours per week")
}

func TestTallySalariedLeaveCountsTowardForty(t *testing.T) {
	entries := []TimeEntry{
		workDay(1, 8), workDay(2, 8), workDay(3, 8), workDay(4, 8),
		{Date: day(5), TimeType: "OV", Division: "OPS", Hours: 8},
	}
	summary, err := Tally(salariedProfile(), entries)
	require.NoError(t, err)
	require.Equal(t, 8.0, summary.NonWorkHoursTally["OV"])
}

func TestTallySalariedLeaveOverForty(t *testing.T) {
	entries := []TimeEntry{
		workDay(1, 8), workDay(2, 8), workDay(3, 8), workDay(4, 8), workDay(5, 8),
		{Date: day(5), TimeType: "OP", Division: "OPS", Hours: 4},
	}
	_, err := Tally(salariedProfile(), entries)
	require.EqualError(t, err, "Salaried staff cannot claim Vacation or PPTO that pushes the timesheet over 40 hours")
}

func TestTallySalariedOffWeek(t *testing.T) {
	summary, err := Tally(salariedProfile(), []TimeEntry{{Date: day(1), TimeType: "OW", Division: "OPS"}})
	require.NoError(t, err)
	require.Equal(t, 1, summary.OffWeekTally)
}

func TestTallyBankedHoursFloor(t *testing.T) {
	week := []TimeEntry{
		workDay(1, 10), workDay(2, 10), workDay(3, 10), workDay(4, 10), workDay(5, 10),
	}
	bank := func(h float64) []TimeEntry {
		return append(append([]TimeEntry{}, week...), TimeEntry{Date: day(6), TimeType: "RB", Division: "OPS", Hours: h})
	}

	summary, err := Tally(hourlyProfile(), bank(6))
	require.NoError(t, err)
	require.Equal(t, 6.0, summary.BankedHours)

	_, err = Tally(hourlyProfile(), bank(7))
	require.EqualError(t, err, "Banked hours cannot bring your total worked hours below 44 hours")
}

func TestTallySingleBankAndPayoutEntries(t *testing.T) {
	entries := []TimeEntry{
		workDay(1, 10),
		{Date: day(2), TimeType: "RB", Division: "OPS", Hours: 1},
		{Date: day(3), TimeType: "RB", Division: "OPS", Hours: 1},
	}
	_, err := Tally(hourlyProfile(), entries)
	require.EqualError(t, err, "Only one overtime banking entry can exist on a timesheet")

	entries = []TimeEntry{
		workDay(1, 10),
		{Date: day(2), TimeType: "OTO", Division: "OPS", PayoutRequestAmount: decimal.NewFromInt(100)},
		{Date: day(3), TimeType: "OTO", Division: "OPS", PayoutRequestAmount: decimal.NewFromInt(200)},
	}
	_, err = Tally(hourlyProfile(), entries)
	require.EqualError(t, err, "Only one payout request entry can exist on a timesheet")
}

func TestTallyPayoutRequestAmount(t *testing.T) {
	entries := []TimeEntry{
		workDay(1, 9), workDay(2, 9), workDay(3, 9), workDay(4, 9), workDay(5, 9),
		{Date: day(6), TimeType: "OTO", Division: "OPS", PayoutRequestAmount: decimal.NewFromFloat(412.50)},
	}
	summary, err := Tally(hourlyProfile(), entries)
	require.NoError(t, err)
	require.True(t, summary.PayoutRequest.Equal(decimal.NewFromFloat(412.50)))
}

func TestTallyDivisionAndJobBuckets(t *testing.T) {
	entries := []TimeEntry{
		workDay(1, 8),
		jobDay(2, "26-040", 8),
		jobDay(3, "26-040", 4),
		{Date: day(3), TimeType: "R", Division: "ENG", Hours: 4},
		workDay(4, 8), workDay(5, 8),
	}
	summary, err := Tally(hourlyProfile(), entries)
	require.NoError(t, err)
	require.Equal(t, 12.0, summary.JobsTally["26-040"].JobHours)
	require.Equal(t, 4.0, summary.DivisionsTally["ENG"])
	require.Equal(t, 36.0, summary.DivisionsTally["OPS"])
	require.Equal(t, 28.0, summary.WorkHoursTally.NoJobNumber)
	require.Equal(t, []string{"ENG", "OPS"}, summary.Divisions)
}
