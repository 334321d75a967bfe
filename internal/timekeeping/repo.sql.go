package timekeeping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewdesk/crewdesk/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return shared.Internalf(err, "timekeeping: begin tx")
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return shared.Internalf(err, "timekeeping: commit tx")
	}
	return nil
}

const profileColumns = `uid, display_name, manager_uid, manager_name, payroll_id, salary, default_division`

// GetProfile loads the payroll profile for uid.
func (r *Repository) GetProfile(ctx context.Context, uid string) (Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE uid=$1`, uid).
		Scan(&p.UID, &p.DisplayName, &p.ManagerUID, &p.ManagerName, &p.PayrollID, &p.Salary, &p.DefaultDivision)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, shared.NotFoundf("profile %s not found", uid)
		}
		return Profile{}, shared.Internalf(err, "timekeeping: get profile")
	}
	return p, nil
}

// IsManager reports whether uid appears in the known-manager directory.
func (r *Repository) IsManager(ctx context.Context, uid string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE uid=$1 AND 'tapr' = ANY(caps))`, uid).Scan(&ok)
	if err != nil {
		return false, shared.Internalf(err, "timekeeping: is manager")
	}
	return ok, nil
}

const timesheetColumns = `id, uid, display_name, manager_uid, manager_name, week_ending, salary, payroll_id,
submitted, approved, rejected, locked, rejection_reason, rejector_uid, rejector_name,
viewer_uids, reviewed_uids, tally, created_at, updated_at`

func scanTimesheet(row pgx.Row) (Timesheet, error) {
	var ts Timesheet
	var tallyJSON []byte
	err := row.Scan(&ts.ID, &ts.UID, &ts.DisplayName, &ts.ManagerUID, &ts.ManagerName, &ts.WeekEnding,
		&ts.Salary, &ts.PayrollID, &ts.State.Submitted, &ts.State.Approved, &ts.State.Rejected, &ts.State.Locked,
		&ts.RejectionReason, &ts.RejectorUID, &ts.RejectorName, &ts.ViewerUIDs, &ts.ReviewedUIDs,
		&tallyJSON, &ts.CreatedAt, &ts.UpdatedAt)
	if err != nil {
		return Timesheet{}, err
	}
	if len(tallyJSON) > 0 {
		var summary TallySummary
		if err := json.Unmarshal(tallyJSON, &summary); err != nil {
			return Timesheet{}, err
		}
		ts.Tally = &summary
	}
	return ts, nil
}

// GetTimesheet loads one timesheet outside a transaction.
func (r *Repository) GetTimesheet(ctx context.Context, id uuid.UUID) (Timesheet, error) {
	return getTimesheet(ctx, r.pool, id)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getTimesheet(ctx context.Context, q queryRower, id uuid.UUID) (Timesheet, error) {
	ts, err := scanTimesheet(q.QueryRow(ctx, `SELECT `+timesheetColumns+` FROM timesheets WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Timesheet{}, shared.NotFoundf("timesheet %s not found", id)
		}
		return Timesheet{}, shared.Internalf(err, "timekeeping: get timesheet")
	}
	return ts, nil
}

const timeEntryColumns = `id, uid, date, week_ending, timetype, division, job, work_description,
hours, job_hours, meals_hours, payout_request_amount, timesheet_id`

func scanTimeEntry(row pgx.Row) (TimeEntry, error) {
	var e TimeEntry
	err := row.Scan(&e.ID, &e.UID, &e.Date, &e.WeekEnding, &e.TimeType, &e.Division, &e.Job,
		&e.WorkDescription, &e.Hours, &e.JobHours, &e.MealsHours, &e.PayoutRequestAmount, &e.TimesheetID)
	return e, err
}

// GetTimeEntry loads one time entry.
func (r *Repository) GetTimeEntry(ctx context.Context, id int64) (TimeEntry, error) {
	e, err := scanTimeEntry(r.pool.QueryRow(ctx, `SELECT `+timeEntryColumns+` FROM time_entries WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TimeEntry{}, shared.NotFoundf("time entry %d not found", id)
		}
		return TimeEntry{}, shared.Internalf(err, "timekeeping: get time entry")
	}
	return e, nil
}

// ListWeekEntries returns a user's entries for one week ordered by date.
func (r *Repository) ListWeekEntries(ctx context.Context, uid string, weekEnding time.Time) ([]TimeEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+timeEntryColumns+` FROM time_entries WHERE uid=$1 AND week_ending=$2 ORDER BY date, id`, uid, weekEnding)
	if err != nil {
		return nil, shared.Internalf(err, "timekeeping: list week entries")
	}
	defer rows.Close()
	var entries []TimeEntry
	for rows.Next() {
		e, err := scanTimeEntry(rows)
		if err != nil {
			return nil, shared.Internalf(err, "timekeeping: scan time entry")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Internalf(err, "timekeeping: list week entries")
	}
	return entries, nil
}

// ListTimesheets returns timesheets matching filters, newest week first.
func (r *Repository) ListTimesheets(ctx context.Context, filters ListFilters, limit, offset int) ([]Timesheet, int, error) {
	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filters.UID != "" {
		where = append(where, "uid="+arg(filters.UID))
	}
	if filters.ManagerUID != "" {
		where = append(where, "manager_uid="+arg(filters.ManagerUID))
	}
	if filters.Submitted != nil {
		where = append(where, "submitted="+arg(*filters.Submitted))
	}
	if filters.Approved != nil {
		where = append(where, "approved="+arg(*filters.Approved))
	}
	if filters.Locked != nil {
		where = append(where, "locked="+arg(*filters.Locked))
	}
	if filters.WeekEnding != nil {
		where = append(where, "week_ending="+arg(*filters.WeekEnding))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM timesheets WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, shared.Internalf(err, "timekeeping: count timesheets")
	}

	query := `SELECT ` + timesheetColumns + ` FROM timesheets WHERE ` + clause +
		` ORDER BY week_ending DESC, uid` + ` LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, shared.Internalf(err, "timekeeping: list timesheets")
	}
	defer rows.Close()
	var sheets []Timesheet
	for rows.Next() {
		ts, err := scanTimesheet(rows)
		if err != nil {
			return nil, 0, shared.Internalf(err, "timekeeping: scan timesheet")
		}
		sheets = append(sheets, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, shared.Internalf(err, "timekeeping: list timesheets")
	}
	return sheets, total, nil
}

// Transactional operations.

func (t *txRepo) GetTimesheet(ctx context.Context, id uuid.UUID) (Timesheet, error) {
	return getTimesheet(ctx, t.tx, id)
}

func (t *txRepo) FindTimesheetForWeek(ctx context.Context, uid string, weekEnding time.Time) (*Timesheet, error) {
	ts, err := scanTimesheet(t.tx.QueryRow(ctx, `SELECT `+timesheetColumns+` FROM timesheets WHERE uid=$1 AND week_ending=$2`, uid, weekEnding))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, shared.Internalf(err, "timekeeping: find timesheet for week")
	}
	return &ts, nil
}

func (t *txRepo) CreateTimesheet(ctx context.Context, ts Timesheet) error {
	tallyJSON, err := marshalTally(ts.Tally)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO timesheets
(id, uid, display_name, manager_uid, manager_name, week_ending, salary, payroll_id,
 submitted, approved, rejected, locked, rejection_reason, rejector_uid, rejector_name,
 viewer_uids, reviewed_uids, tally, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,NOW(),NOW())`,
		ts.ID, ts.UID, ts.DisplayName, ts.ManagerUID, ts.ManagerName, ts.WeekEnding, ts.Salary, ts.PayrollID,
		ts.State.Submitted, ts.State.Approved, ts.State.Rejected, ts.State.Locked,
		ts.RejectionReason, ts.RejectorUID, ts.RejectorName, ts.ViewerUIDs, ts.ReviewedUIDs, tallyJSON)
	if err != nil {
		return shared.Internalf(err, "timekeeping: create timesheet")
	}
	return nil
}

func (t *txRepo) SaveTimesheet(ctx context.Context, ts Timesheet) error {
	tallyJSON, err := marshalTally(ts.Tally)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `UPDATE timesheets SET
manager_uid=$2, manager_name=$3, salary=$4, payroll_id=$5,
submitted=$6, approved=$7, rejected=$8, locked=$9,
rejection_reason=$10, rejector_uid=$11, rejector_name=$12,
viewer_uids=$13, reviewed_uids=$14, tally=$15, updated_at=NOW()
WHERE id=$1`,
		ts.ID, ts.ManagerUID, ts.ManagerName, ts.Salary, ts.PayrollID,
		ts.State.Submitted, ts.State.Approved, ts.State.Rejected, ts.State.Locked,
		ts.RejectionReason, ts.RejectorUID, ts.RejectorName, ts.ViewerUIDs, ts.ReviewedUIDs, tallyJSON)
	if err != nil {
		return shared.Internalf(err, "timekeeping: save timesheet")
	}
	if tag.RowsAffected() != 1 {
		return shared.NotFoundf("timesheet %s not found", ts.ID)
	}
	return nil
}

func (t *txRepo) AttachWeekEntries(ctx context.Context, timesheetID uuid.UUID, uid string, weekEnding time.Time) (int, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE time_entries SET timesheet_id=$1 WHERE uid=$2 AND week_ending=$3 AND timesheet_id IS NULL`, timesheetID, uid, weekEnding)
	if err != nil {
		return 0, shared.Internalf(err, "timekeeping: attach entries")
	}
	return int(tag.RowsAffected()), nil
}

func (t *txRepo) DetachEntries(ctx context.Context, timesheetID uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `UPDATE time_entries SET timesheet_id=NULL WHERE timesheet_id=$1`, timesheetID)
	if err != nil {
		return shared.Internalf(err, "timekeeping: detach entries")
	}
	return nil
}

func (t *txRepo) CreateTimeEntry(ctx context.Context, entry TimeEntry) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO time_entries
(uid, date, week_ending, timetype, division, job, work_description, hours, job_hours, meals_hours, payout_request_amount)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		entry.UID, entry.Date, entry.WeekEnding, entry.TimeType, entry.Division, entry.Job,
		entry.WorkDescription, entry.Hours, entry.JobHours, entry.MealsHours, entry.PayoutRequestAmount).Scan(&id)
	if err != nil {
		return 0, shared.Internalf(err, "timekeeping: create time entry")
	}
	return id, nil
}

func (t *txRepo) UpdateTimeEntry(ctx context.Context, entry TimeEntry) error {
	tag, err := t.tx.Exec(ctx, `UPDATE time_entries SET
date=$2, week_ending=$3, timetype=$4, division=$5, job=$6, work_description=$7,
hours=$8, job_hours=$9, meals_hours=$10, payout_request_amount=$11
WHERE id=$1 AND timesheet_id IS NULL`,
		entry.ID, entry.Date, entry.WeekEnding, entry.TimeType, entry.Division, entry.Job,
		entry.WorkDescription, entry.Hours, entry.JobHours, entry.MealsHours, entry.PayoutRequestAmount)
	if err != nil {
		return shared.Internalf(err, "timekeeping: update time entry")
	}
	if tag.RowsAffected() != 1 {
		return shared.FailedPreconditionf("TimeEntry is bundled into a timesheet and cannot be changed")
	}
	return nil
}

func (t *txRepo) DeleteTimeEntry(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM time_entries WHERE id=$1 AND timesheet_id IS NULL`, id)
	if err != nil {
		return shared.Internalf(err, "timekeeping: delete time entry")
	}
	if tag.RowsAffected() != 1 {
		return shared.FailedPreconditionf("TimeEntry is bundled into a timesheet and cannot be changed")
	}
	return nil
}

func marshalTally(t *TallySummary) ([]byte, error) {
	if t == nil {
		return nil, nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, shared.Internalf(err, "timekeeping: marshal tally")
	}
	return data, nil
}
