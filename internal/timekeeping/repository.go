package timekeeping

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilters narrows timesheet listings.
type ListFilters struct {
	UID        string
	ManagerUID string
	Submitted  *bool
	Approved   *bool
	Locked     *bool
	WeekEnding *time.Time
}

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProfile(ctx context.Context, uid string) (Profile, error)
	GetTimesheet(ctx context.Context, id uuid.UUID) (Timesheet, error)
	GetTimeEntry(ctx context.Context, id int64) (TimeEntry, error)
	ListWeekEntries(ctx context.Context, uid string, weekEnding time.Time) ([]TimeEntry, error)
	ListTimesheets(ctx context.Context, filters ListFilters, limit, offset int) ([]Timesheet, int, error)
	IsManager(ctx context.Context, uid string) (bool, error)
}

// TxRepository exposes the transactional operations each state transition is
// built from. Every transition re-reads inside its own transaction.
type TxRepository interface {
	GetTimesheet(ctx context.Context, id uuid.UUID) (Timesheet, error)
	FindTimesheetForWeek(ctx context.Context, uid string, weekEnding time.Time) (*Timesheet, error)
	CreateTimesheet(ctx context.Context, ts Timesheet) error
	SaveTimesheet(ctx context.Context, ts Timesheet) error
	AttachWeekEntries(ctx context.Context, timesheetID uuid.UUID, uid string, weekEnding time.Time) (int, error)
	DetachEntries(ctx context.Context, timesheetID uuid.UUID) error
	CreateTimeEntry(ctx context.Context, entry TimeEntry) (int64, error)
	UpdateTimeEntry(ctx context.Context, entry TimeEntry) error
	DeleteTimeEntry(ctx context.Context, id int64) error
}
