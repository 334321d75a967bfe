package timekeeping

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crewdesk/crewdesk/internal/workflow"
)

// DocKind is the document kind name used in guard messages and audit logs.
const DocKind = "Timesheet"

// MaxViewers caps how many extra reviewers a manager can share a timesheet with.
const MaxViewers = 4

// TimeEntry is one day's record for one user. Entries are free-standing until
// a timesheet bundles them; from then on they are immutable.
type TimeEntry struct {
	ID                  int64
	UID                 string
	Date                time.Time
	WeekEnding          time.Time
	TimeType            string
	Division            string
	Job                 string
	WorkDescription     string
	Hours               float64
	JobHours            float64
	MealsHours          float64
	PayoutRequestAmount decimal.Decimal
	TimesheetID         *uuid.UUID
}

// Bundled reports whether the entry belongs to a timesheet.
func (e TimeEntry) Bundled() bool { return e.TimesheetID != nil }

// Profile carries the payroll attributes consulted by the tally engine.
type Profile struct {
	UID             string
	DisplayName     string
	ManagerUID      string
	ManagerName     string
	PayrollID       string
	Salary          bool
	DefaultDivision string
}

// Timesheet is one user's payroll week: the bundle of that week's entries,
// the tally computed from them, and the submission state machine flags.
type Timesheet struct {
	ID              uuid.UUID
	UID             string
	DisplayName     string
	ManagerUID      string
	ManagerName     string
	WeekEnding      time.Time
	Salary          bool
	PayrollID       string
	State           workflow.State
	RejectionReason string
	RejectorUID     string
	RejectorName    string
	ViewerUIDs      []string
	ReviewedUIDs    []string
	Tally           *TallySummary
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SharedWith reports whether uid is one of the timesheet's extra viewers.
func (t Timesheet) SharedWith(uid string) bool {
	for _, v := range t.ViewerUIDs {
		if v == uid {
			return true
		}
	}
	return false
}

// ReviewedBy reports whether uid has marked the timesheet reviewed.
func (t Timesheet) ReviewedBy(uid string) bool {
	for _, v := range t.ReviewedUIDs {
		if v == uid {
			return true
		}
	}
	return false
}
