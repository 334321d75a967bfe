package timekeeping

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/crewdesk/crewdesk/internal/schema"
	"github.com/crewdesk/crewdesk/internal/shared"
)

// offRotationHoursEquivalent is how many regular hours one off-rotation day
// counts for in the salaried 40-hour check.
const offRotationHoursEquivalent = 8

// salariedWeekHours is the exact weekly total salaried staff must record.
const salariedWeekHours = 40

// minWorkedHoursBeforeBanking is the floor that overtime banking cannot
// bring a week's worked hours below.
const minWorkedHoursBeforeBanking = 44

// WorkHoursTally splits a week's worked hours by whether they were charged
// to a job.
type WorkHoursTally struct {
	Hours       float64 `json:"hours"`
	JobHours    float64 `json:"jobHours"`
	MealsHours  float64 `json:"mealsHours"`
	NoJobNumber float64 `json:"noJobNumber"`
}

// JobTally accumulates the hours charged against one job number.
type JobTally struct {
	Hours      float64 `json:"hours"`
	JobHours   float64 `json:"jobHours"`
	MealsHours float64 `json:"mealsHours"`
}

// TallySummary is the payroll-ready aggregation of one week's time entries.
type TallySummary struct {
	WorkHoursTally       WorkHoursTally      `json:"workHoursTally"`
	NonWorkHoursTally    map[string]float64  `json:"nonWorkHoursTally"`
	DivisionsTally       map[string]float64  `json:"divisionsTally"`
	JobsTally            map[string]JobTally `json:"jobsTally"`
	TimeTypes            []string            `json:"timetypes"`
	Divisions            []string            `json:"divisions"`
	JobNumbers           []string            `json:"jobNumbers"`
	BankedHours          float64             `json:"bankedHours"`
	PayoutRequest        decimal.Decimal     `json:"payoutRequest"`
	OffRotationDaysTally int                 `json:"offRotationDaysTally"`
	OffWeekTally         int                 `json:"offWeekTally"`
}

// WorkedHours returns the week's total worked hours (job and non-job).
func (t *TallySummary) WorkedHours() float64 {
	return t.WorkHoursTally.Hours + t.WorkHoursTally.JobHours
}

// Tally aggregates a week's ordered time entries into a payroll summary or
// rejects the week with the specific business rule it violates. It is a pure
// function: same profile and entries always produce the same summary, and it
// never touches storage.
func Tally(profile Profile, entries []TimeEntry) (*TallySummary, error) {
	if profile.PayrollID == "" {
		return nil, shared.FailedPreconditionf("Profile is missing a payrollId")
	}
	if !schema.ValidPayrollID(profile.PayrollID) {
		return nil, shared.FailedPreconditionf("Profile payrollId must be numeric or CMS followed by 1 or 2 digits")
	}
	if profile.ManagerUID == "" {
		return nil, shared.FailedPreconditionf("Profile is missing a managerUid")
	}

	summary := &TallySummary{
		NonWorkHoursTally: map[string]float64{},
		DivisionsTally:    map[string]float64{},
		JobsTally:         map[string]JobTally{},
		PayoutRequest:     decimal.Zero,
	}

	timeTypes := map[string]struct{}{}
	divisions := map[string]struct{}{}
	offRotationDates := map[string]struct{}{}
	bankEntries := 0
	payoutEntries := 0

	for _, entry := range entries {
		timeTypes[entry.TimeType] = struct{}{}
		if entry.Division != "" {
			divisions[entry.Division] = struct{}{}
		}

		switch entry.TimeType {
		case schema.TimeTypeRegular, schema.TimeTypeTraining:
			if entry.Hours == 0 && entry.JobHours == 0 {
				return nil, shared.FailedPreconditionf("TimeEntry is missing an hours field")
			}
			summary.WorkHoursTally.Hours += entry.Hours
			summary.WorkHoursTally.JobHours += entry.JobHours
			summary.WorkHoursTally.MealsHours += entry.MealsHours
			if entry.Division != "" {
				summary.DivisionsTally[entry.Division] += entry.Hours + entry.JobHours
			}
			if entry.Job != "" {
				jt := summary.JobsTally[entry.Job]
				jt.Hours += entry.Hours
				jt.JobHours += entry.JobHours
				jt.MealsHours += entry.MealsHours
				summary.JobsTally[entry.Job] = jt
			} else {
				summary.WorkHoursTally.NoJobNumber += entry.Hours
			}

		case schema.TimeTypeOffRotation:
			key := entry.Date.Format("2006-01-02")
			if _, dup := offRotationDates[key]; dup {
				return nil, shared.FailedPreconditionf("More than one Off-Rotation entry exists for %s", entry.Date.Format("2006 Jan 2"))
			}
			offRotationDates[key] = struct{}{}
			summary.OffRotationDaysTally++

		case schema.TimeTypeOffWeek:
			summary.OffWeekTally++

		case schema.TimeTypeBank:
			bankEntries++
			if bankEntries > 1 {
				return nil, shared.FailedPreconditionf("Only one overtime banking entry can exist on a timesheet")
			}
			if profile.Salary {
				return nil, shared.FailedPreconditionf("Salaried staff cannot bank overtime hours")
			}
			summary.BankedHours += entry.Hours

		case schema.TimeTypePayoutRequest:
			payoutEntries++
			if payoutEntries > 1 {
				return nil, shared.FailedPreconditionf("Only one payout request entry can exist on a timesheet")
			}
			if profile.Salary {
				return nil, shared.FailedPreconditionf("Salaried staff cannot request an overtime payout")
			}
			summary.PayoutRequest = summary.PayoutRequest.Add(entry.PayoutRequestAmount)

		case schema.TimeTypeSick:
			if profile.Salary {
				return nil, shared.FailedPreconditionf("Salaried staff cannot claim Sick time")
			}
			summary.NonWorkHoursTally[entry.TimeType] += entry.Hours

		default:
			summary.NonWorkHoursTally[entry.TimeType] += entry.Hours
		}
	}

	if profile.Salary {
		if err := checkSalariedWeek(summary); err != nil {
			return nil, err
		}
	} else if summary.BankedHours > 0 {
		if summary.WorkedHours()-summary.BankedHours < minWorkedHoursBeforeBanking {
			return nil, shared.FailedPreconditionf("Banked hours cannot bring your total worked hours below 44 hours")
		}
	}

	summary.TimeTypes = sortedKeys(timeTypes)
	summary.Divisions = sortedKeys(divisions)
	for job := range summary.JobsTally {
		summary.JobNumbers = append(summary.JobNumbers, job)
	}
	sort.Strings(summary.JobNumbers)

	return summary, nil
}

// checkSalariedWeek enforces the exact-40-hour rule. Off-rotation days count
// as 8 regular-hour equivalents; PPTO and vacation count toward the total and
// must not push it past 40.
func checkSalariedWeek(summary *TallySummary) error {
	workedEquivalent := summary.WorkedHours() + float64(summary.OffRotationDaysTally)*offRotationHoursEquivalent
	// A full-week-off entry stands in for the whole 40-hour week.
	workedEquivalent += float64(summary.OffWeekTally) * salariedWeekHours
	leave := 0.0
	for _, hours := range summary.NonWorkHoursTally {
		leave += hours
	}
	total := workedEquivalent + leave
	if total > salariedWeekHours && leave > 0 {
		return shared.FailedPreconditionf("Salaried staff cannot claim Vacation or PPTO that pushes the timesheet over 40 hours")
	}
	if total != salariedWeekHours {
		return shared.FailedPreconditionf("Salaried staff must record exactly 40 hours per week")
	}
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
