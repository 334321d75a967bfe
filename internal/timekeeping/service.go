package timekeeping

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crewdesk/crewdesk/internal/capabilities"
	"github.com/crewdesk/crewdesk/internal/schema"
	"github.com/crewdesk/crewdesk/internal/shared"
	"github.com/crewdesk/crewdesk/internal/workflow"
)

// AuditPort records state transitions for later review.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service drives the timesheet workflow: entry CRUD, bundling with tally
// validation, and the submit/approve/reject/lock state machine.
type Service struct {
	repo   RepositoryPort
	shapes *schema.Validator
	weeks  *WeekClock
	audit  AuditPort
	logger *slog.Logger
	clock  shared.Clock
}

// NewService constructs the timekeeping service.
func NewService(repo RepositoryPort, shapes *schema.Validator, weeks *WeekClock, audit AuditPort, logger *slog.Logger, clock shared.Clock) *Service {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &Service{repo: repo, shapes: shapes, weeks: weeks, audit: audit, logger: logger, clock: clock}
}

// EntryInput carries the caller-editable fields of a time entry.
type EntryInput struct {
	Date                time.Time
	TimeType            string
	Division            string
	Job                 string
	WorkDescription     string
	Hours               float64
	JobHours            float64
	MealsHours          float64
	PayoutRequestAmount decimal.Decimal
}

// CreateEntry records a new time entry for the caller's own week.
func (s *Service) CreateEntry(ctx context.Context, caller capabilities.Caller, input EntryInput) (TimeEntry, error) {
	if !caller.Caps.Has(capabilities.CapTime) {
		return TimeEntry{}, shared.PermissionDeniedf("caller cannot record time")
	}
	if err := s.checkEntryShape(input); err != nil {
		return TimeEntry{}, err
	}
	entry := TimeEntry{
		UID:                 caller.UID,
		Date:                input.Date,
		WeekEnding:          s.weeks.WeekEnding(input.Date),
		TimeType:            input.TimeType,
		Division:            input.Division,
		Job:                 input.Job,
		WorkDescription:     input.WorkDescription,
		Hours:               input.Hours,
		JobHours:            input.JobHours,
		MealsHours:          input.MealsHours,
		PayoutRequestAmount: input.PayoutRequestAmount,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateTimeEntry(ctx, entry)
		if err != nil {
			return err
		}
		entry.ID = id
		return nil
	})
	if err != nil {
		return TimeEntry{}, err
	}
	return entry, nil
}

// UpdateEntry rewrites an unbundled entry owned by the caller.
func (s *Service) UpdateEntry(ctx context.Context, caller capabilities.Caller, id int64, input EntryInput) error {
	existing, err := s.repo.GetTimeEntry(ctx, id)
	if err != nil {
		return err
	}
	if existing.UID != caller.UID {
		return shared.PermissionDeniedf("a TimeEntry can only be changed by its owner")
	}
	if existing.Bundled() {
		return shared.FailedPreconditionf("TimeEntry is bundled into a timesheet and cannot be changed")
	}
	if err := s.checkEntryShape(input); err != nil {
		return err
	}
	entry := existing
	entry.Date = input.Date
	entry.WeekEnding = s.weeks.WeekEnding(input.Date)
	entry.TimeType = input.TimeType
	entry.Division = input.Division
	entry.Job = input.Job
	entry.WorkDescription = input.WorkDescription
	entry.Hours = input.Hours
	entry.JobHours = input.JobHours
	entry.MealsHours = input.MealsHours
	entry.PayoutRequestAmount = input.PayoutRequestAmount
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateTimeEntry(ctx, entry)
	})
}

// DeleteEntry removes an unbundled entry owned by the caller.
func (s *Service) DeleteEntry(ctx context.Context, caller capabilities.Caller, id int64) error {
	existing, err := s.repo.GetTimeEntry(ctx, id)
	if err != nil {
		return err
	}
	if existing.UID != caller.UID {
		return shared.PermissionDeniedf("a TimeEntry can only be deleted by its owner")
	}
	if existing.Bundled() {
		return shared.FailedPreconditionf("TimeEntry is bundled into a timesheet and cannot be changed")
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteTimeEntry(ctx, id)
	})
}

// ListWeekEntries returns the caller's entries for the week containing day.
func (s *Service) ListWeekEntries(ctx context.Context, caller capabilities.Caller, day time.Time) ([]TimeEntry, error) {
	return s.repo.ListWeekEntries(ctx, caller.UID, s.weeks.WeekEnding(day))
}

// Submit bundles the caller's week of entries into a timesheet and submits
// it: the tally engine validates the week, the entries are attached, and the
// state machine flips to submitted, all in one transaction. Submitting a
// rejected timesheet is the resubmission path and clears the rejection.
func (s *Service) Submit(ctx context.Context, caller capabilities.Caller, weekEnding time.Time) (Timesheet, error) {
	if !caller.Caps.Has(capabilities.CapTime) {
		return Timesheet{}, shared.PermissionDeniedf("caller cannot record time")
	}
	weekEnding = s.weeks.WeekEnding(weekEnding)

	profile, err := s.repo.GetProfile(ctx, caller.UID)
	if err != nil {
		return Timesheet{}, err
	}
	entries, err := s.repo.ListWeekEntries(ctx, caller.UID, weekEnding)
	if err != nil {
		return Timesheet{}, err
	}
	if len(entries) == 0 {
		return Timesheet{}, shared.FailedPreconditionf("no TimeEntries exist for the week ending %s", weekEnding.Format("2006 Jan 2"))
	}
	summary, err := Tally(profile, entries)
	if err != nil {
		return Timesheet{}, err
	}

	var result Timesheet
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.FindTimesheetForWeek(ctx, caller.UID, weekEnding)
		if err != nil {
			return err
		}
		ts := Timesheet{}
		if existing != nil {
			ts = *existing
		} else {
			ts.ID = uuid.New()
			ts.UID = caller.UID
			ts.WeekEnding = weekEnding
		}
		if err := workflow.CanSubmit(DocKind, ts.State); err != nil {
			return err
		}
		ts.DisplayName = profile.DisplayName
		ts.ManagerUID = profile.ManagerUID
		ts.ManagerName = profile.ManagerName
		ts.Salary = profile.Salary
		ts.PayrollID = profile.PayrollID
		ts.State = workflow.ApplySubmit(ts.State)
		ts.RejectionReason = ""
		ts.RejectorUID = ""
		ts.RejectorName = ""
		ts.Tally = summary

		if existing == nil {
			if err := tx.CreateTimesheet(ctx, ts); err != nil {
				return err
			}
		} else if err := tx.SaveTimesheet(ctx, ts); err != nil {
			return err
		}
		if _, err := tx.AttachWeekEntries(ctx, ts.ID, caller.UID, weekEnding); err != nil {
			return err
		}
		result = ts
		return nil
	})
	if err != nil {
		return Timesheet{}, err
	}
	s.recordAudit(ctx, caller, "TIMESHEET_SUBMIT", result.ID.String(), map[string]any{"weekEnding": weekEnding})
	return result, nil
}

// Recall returns a submitted, unapproved timesheet to the owner and frees
// its entries for editing.
func (s *Service) Recall(ctx context.Context, caller capabilities.Caller, id uuid.UUID) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ts, err := tx.GetTimesheet(ctx, id)
		if err != nil {
			return err
		}
		if ts.UID != caller.UID {
			return shared.PermissionDeniedf("a Timesheet can only be recalled by its owner")
		}
		if err := workflow.CanRecall(DocKind, ts.State); err != nil {
			return err
		}
		ts.State = workflow.ApplyRecall(ts.State)
		if err := tx.SaveTimesheet(ctx, ts); err != nil {
			return err
		}
		return tx.DetachEntries(ctx, ts.ID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, caller, "TIMESHEET_RECALL", id.String(), nil)
	return nil
}

// Approve marks a submitted timesheet approved. The caller must hold the
// time-approver capability and be the timesheet's designated manager.
func (s *Service) Approve(ctx context.Context, caller capabilities.Caller, id uuid.UUID) error {
	if !caller.Caps.Has(capabilities.CapTimeApprover) {
		return shared.PermissionDeniedf("caller cannot approve timesheets")
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ts, err := tx.GetTimesheet(ctx, id)
		if err != nil {
			return err
		}
		if ts.ManagerUID != caller.UID {
			return shared.PermissionDeniedf("only the assigned manager can approve this Timesheet")
		}
		if err := workflow.CanApprove(DocKind, ts.State); err != nil {
			return err
		}
		ts.State = workflow.ApplyApprove(ts.State)
		return tx.SaveTimesheet(ctx, ts)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, caller, "TIMESHEET_APPROVE", id.String(), nil)
	return nil
}

// Reject rejects a submitted or approved timesheet with a reason. The
// elevated timesheet-rejecter capability may reject regardless of manager
// assignment; everyone else must be the assigned manager.
func (s *Service) Reject(ctx context.Context, caller capabilities.Caller, id uuid.UUID, reason string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ts, err := tx.GetTimesheet(ctx, id)
		if err != nil {
			return err
		}
		if !caller.Caps.Has(capabilities.CapTimesheetRejecter) {
			if !caller.Caps.Has(capabilities.CapTimeApprover) || ts.ManagerUID != caller.UID {
				return shared.PermissionDeniedf("only the assigned manager can reject this Timesheet")
			}
		}
		if err := workflow.CanReject(DocKind, ts.State, reason); err != nil {
			return err
		}
		if caller.DisplayName == "" {
			return shared.InvalidArgumentf("rejector name is required")
		}
		ts.State = workflow.ApplyReject(ts.State)
		ts.RejectionReason = reason
		ts.RejectorUID = caller.UID
		ts.RejectorName = caller.DisplayName
		return tx.SaveTimesheet(ctx, ts)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, caller, "TIMESHEET_REJECT", id.String(), map[string]any{"reason": reason})
	return nil
}

// Share lets the assigned manager add an extra reviewer drawn from the
// known-manager directory, up to the viewer cap, while submitted.
func (s *Service) Share(ctx context.Context, caller capabilities.Caller, id uuid.UUID, viewerUID string) error {
	isManager, err := s.repo.IsManager(ctx, viewerUID)
	if err != nil {
		return err
	}
	if !isManager {
		return shared.InvalidArgumentf("a Timesheet can only be shared with a known manager")
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ts, err := tx.GetTimesheet(ctx, id)
		if err != nil {
			return err
		}
		if ts.ManagerUID != caller.UID {
			return shared.PermissionDeniedf("only the assigned manager can share this Timesheet")
		}
		if !ts.State.Submitted {
			return shared.FailedPreconditionf("Timesheet is not submitted")
		}
		if ts.SharedWith(viewerUID) {
			return shared.AlreadyExistsf("Timesheet is already shared with %s", viewerUID)
		}
		if len(ts.ViewerUIDs) >= MaxViewers {
			return shared.FailedPreconditionf("a Timesheet can be shared with at most %d viewers", MaxViewers)
		}
		ts.ViewerUIDs = append(ts.ViewerUIDs, viewerUID)
		return tx.SaveTimesheet(ctx, ts)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, caller, "TIMESHEET_SHARE", id.String(), map[string]any{"viewer": viewerUID})
	return nil
}

// MarkReviewed records that a shared viewer has reviewed the timesheet. A
// viewer can only mark themselves.
func (s *Service) MarkReviewed(ctx context.Context, caller capabilities.Caller, id uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ts, err := tx.GetTimesheet(ctx, id)
		if err != nil {
			return err
		}
		if !ts.SharedWith(caller.UID) {
			return shared.PermissionDeniedf("Timesheet has not been shared with the caller")
		}
		if ts.ReviewedBy(caller.UID) {
			return nil
		}
		ts.ReviewedUIDs = append(ts.ReviewedUIDs, caller.UID)
		return tx.SaveTimesheet(ctx, ts)
	})
}

// Lock freezes an approved timesheet for export. Locked timesheets are
// terminal for approval mutation but stay auditable.
func (s *Service) Lock(ctx context.Context, caller capabilities.Caller, id uuid.UUID) error {
	if !caller.Caps.Has(capabilities.CapAdmin) {
		return shared.PermissionDeniedf("caller cannot lock timesheets")
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ts, err := tx.GetTimesheet(ctx, id)
		if err != nil {
			return err
		}
		if err := workflow.CanLock(DocKind, ts.State); err != nil {
			return err
		}
		ts.State = workflow.ApplyLock(ts.State)
		return tx.SaveTimesheet(ctx, ts)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, caller, "TIMESHEET_LOCK", id.String(), nil)
	return nil
}

// Get returns one timesheet, restricted to its owner, manager, shared
// viewers and report holders.
func (s *Service) Get(ctx context.Context, caller capabilities.Caller, id uuid.UUID) (Timesheet, error) {
	ts, err := s.repo.GetTimesheet(ctx, id)
	if err != nil {
		return Timesheet{}, err
	}
	if ts.UID != caller.UID && ts.ManagerUID != caller.UID && !ts.SharedWith(caller.UID) &&
		!caller.Caps.HasAny(capabilities.CapReport, capabilities.CapAdmin) {
		return Timesheet{}, shared.PermissionDeniedf("caller cannot view this Timesheet")
	}
	return ts, nil
}

// List returns timesheets visible to the caller.
func (s *Service) List(ctx context.Context, caller capabilities.Caller, filters ListFilters, limit, offset int) ([]Timesheet, int, error) {
	if !caller.Caps.HasAny(capabilities.CapReport, capabilities.CapAdmin) {
		// Without report access a caller sees their own sheets or, as a
		// manager, their reports' sheets.
		if filters.ManagerUID == caller.UID && caller.Caps.Has(capabilities.CapTimeApprover) {
			filters.UID = ""
		} else {
			filters.UID = caller.UID
			filters.ManagerUID = ""
		}
	}
	return s.repo.ListTimesheets(ctx, filters, limit, offset)
}

func (s *Service) checkEntryShape(input EntryInput) error {
	return s.shapes.TimeEntry(schema.TimeEntryShape{
		TimeType:            input.TimeType,
		Date:                input.Date,
		Hours:               input.Hours,
		JobHours:            input.JobHours,
		MealsHours:          input.MealsHours,
		Job:                 input.Job,
		Division:            input.Division,
		WorkDescription:     input.WorkDescription,
		PayoutRequestAmount: input.PayoutRequestAmount,
	})
}

func (s *Service) recordAudit(ctx context.Context, caller capabilities.Caller, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{ActorUID: caller.UID, Action: action, Entity: "timesheet", EntityID: entityID, Meta: meta, At: s.clock()}
	if err := s.audit.Record(ctx, log); err != nil && s.logger != nil {
		s.logger.Error("record audit", slog.String("action", action), slog.Any("error", err))
	}
}
