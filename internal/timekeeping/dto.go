package timekeeping

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryRequest is the JSON payload for creating or updating a time entry.
type EntryRequest struct {
	Date                string          `json:"date" validate:"required,datetime=2006-01-02"`
	TimeType            string          `json:"timetype" validate:"required"`
	Division            string          `json:"division"`
	Job                 string          `json:"job,omitempty"`
	WorkDescription     string          `json:"workDescription,omitempty"`
	Hours               float64         `json:"hours"`
	JobHours            float64         `json:"jobHours"`
	MealsHours          float64         `json:"mealsHours"`
	PayoutRequestAmount decimal.Decimal `json:"payoutRequestAmount"`
}

// SubmitRequest names the week to bundle and submit.
type SubmitRequest struct {
	WeekEnding string `json:"weekEnding" validate:"required,datetime=2006-01-02"`
}

// RejectRequest carries the rejection reason.
type RejectRequest struct {
	RejectionReason string `json:"rejectionReason" validate:"required"`
}

// ShareRequest names the extra reviewer.
type ShareRequest struct {
	ViewerUID string `json:"viewerUid" validate:"required"`
}

// EntryResponse mirrors a time entry on the wire.
type EntryResponse struct {
	ID                  int64           `json:"id"`
	UID                 string          `json:"uid"`
	Date                string          `json:"date"`
	WeekEnding          time.Time       `json:"weekEnding"`
	TimeType            string          `json:"timetype"`
	Division            string          `json:"division,omitempty"`
	Job                 string          `json:"job,omitempty"`
	WorkDescription     string          `json:"workDescription,omitempty"`
	Hours               float64         `json:"hours,omitempty"`
	JobHours            float64         `json:"jobHours,omitempty"`
	MealsHours          float64         `json:"mealsHours,omitempty"`
	PayoutRequestAmount decimal.Decimal `json:"payoutRequestAmount,omitempty"`
	Bundled             bool            `json:"bundled"`
}

// NewEntryResponse converts a domain entry to its wire form.
func NewEntryResponse(e TimeEntry) EntryResponse {
	return EntryResponse{
		ID:                  e.ID,
		UID:                 e.UID,
		Date:                e.Date.Format("2006-01-02"),
		WeekEnding:          e.WeekEnding,
		TimeType:            e.TimeType,
		Division:            e.Division,
		Job:                 e.Job,
		WorkDescription:     e.WorkDescription,
		Hours:               e.Hours,
		JobHours:            e.JobHours,
		MealsHours:          e.MealsHours,
		PayoutRequestAmount: e.PayoutRequestAmount,
		Bundled:             e.Bundled(),
	}
}

// TimesheetResponse mirrors a timesheet on the wire.
type TimesheetResponse struct {
	ID              string        `json:"id"`
	UID             string        `json:"uid"`
	DisplayName     string        `json:"displayName"`
	ManagerUID      string        `json:"managerUid"`
	ManagerName     string        `json:"managerName"`
	WeekEnding      time.Time     `json:"weekEnding"`
	Salary          bool          `json:"salary"`
	PayrollID       string        `json:"payrollId"`
	Submitted       bool          `json:"submitted"`
	Approved        bool          `json:"approved"`
	Rejected        bool          `json:"rejected"`
	Locked          bool          `json:"locked"`
	RejectionReason string        `json:"rejectionReason,omitempty"`
	RejectorUID     string        `json:"rejectorId,omitempty"`
	RejectorName    string        `json:"rejectorName,omitempty"`
	ViewerUIDs      []string      `json:"viewerIds,omitempty"`
	ReviewedUIDs    []string      `json:"reviewedIds,omitempty"`
	PayPeriodEnding bool          `json:"payPeriodEnding"`
	Tally           *TallySummary `json:"tally,omitempty"`
}

// NewTimesheetResponse converts a domain timesheet to its wire form. Payroll
// consumers watch payPeriodEnding to know which weeks close a biweekly period.
func NewTimesheetResponse(ts Timesheet, weeks *WeekClock) TimesheetResponse {
	return TimesheetResponse{
		ID:              ts.ID.String(),
		UID:             ts.UID,
		DisplayName:     ts.DisplayName,
		ManagerUID:      ts.ManagerUID,
		ManagerName:     ts.ManagerName,
		WeekEnding:      ts.WeekEnding,
		Salary:          ts.Salary,
		PayrollID:       ts.PayrollID,
		Submitted:       ts.State.Submitted,
		Approved:        ts.State.Approved,
		Rejected:        ts.State.Rejected,
		Locked:          ts.State.Locked,
		RejectionReason: ts.RejectionReason,
		RejectorUID:     ts.RejectorUID,
		RejectorName:    ts.RejectorName,
		ViewerUIDs:      ts.ViewerUIDs,
		ReviewedUIDs:    ts.ReviewedUIDs,
		PayPeriodEnding: weeks.IsPayPeriodEnding(ts.WeekEnding),
		Tally:           ts.Tally,
	}
}
