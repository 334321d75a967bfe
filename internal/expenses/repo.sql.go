package expenses

import (
	"context"
	"errors"
	"fmt"
	"strings"

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
		return shared.Internalf(err, "expenses: begin tx")
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return shared.Internalf(err, "expenses: commit tx")
	}
	return nil
}

// GetOwner resolves a claim owner's manager assignment from the profile
// directory.
func (r *Repository) GetOwner(ctx context.Context, uid string) (Owner, error) {
	var o Owner
	err := r.pool.QueryRow(ctx, `SELECT uid, display_name, manager_uid, manager_name FROM profiles WHERE uid=$1`, uid).
		Scan(&o.UID, &o.DisplayName, &o.ManagerUID, &o.ManagerName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Owner{}, shared.NotFoundf("profile %s not found", uid)
		}
		return Owner{}, shared.Internalf(err, "expenses: get owner")
	}
	return o, nil
}

const expenseColumns = `id, uid, display_name, manager_uid, manager_name, date, payment_type, total,
distance, description, vendor, job, division, submitted, approved, rejected, committed, exported,
rejection_reason, rejector_uid, rejector_name, commit_uid, commit_name, committed_at, created_at, updated_at`

func scanExpense(row pgx.Row) (Expense, error) {
	var e Expense
	err := row.Scan(&e.ID, &e.UID, &e.DisplayName, &e.ManagerUID, &e.ManagerName, &e.Date, &e.PaymentType,
		&e.Total, &e.Distance, &e.Description, &e.Vendor, &e.Job, &e.Division,
		&e.State.Submitted, &e.State.Approved, &e.State.Rejected, &e.State.Committed, &e.Exported,
		&e.RejectionReason, &e.RejectorUID, &e.RejectorName, &e.CommitUID, &e.CommitName, &e.CommittedAt,
		&e.CreatedAt, &e.UpdatedAt)
	return e, err
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getExpense(ctx context.Context, q queryRower, id uuid.UUID) (Expense, error) {
	e, err := scanExpense(q.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Expense{}, shared.NotFoundf("expense %s not found", id)
		}
		return Expense{}, shared.Internalf(err, "expenses: get expense")
	}
	return e, nil
}

// GetExpense loads one claim outside a transaction.
func (r *Repository) GetExpense(ctx context.Context, id uuid.UUID) (Expense, error) {
	return getExpense(ctx, r.pool, id)
}

// ListExpenses returns claims matching filters, newest date first.
func (r *Repository) ListExpenses(ctx context.Context, filters ListFilters, limit, offset int) ([]Expense, int, error) {
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
	if filters.PaymentType != "" {
		where = append(where, "payment_type="+arg(filters.PaymentType))
	}
	if filters.Submitted != nil {
		where = append(where, "submitted="+arg(*filters.Submitted))
	}
	if filters.Approved != nil {
		where = append(where, "approved="+arg(*filters.Approved))
	}
	if filters.Committed != nil {
		where = append(where, "committed="+arg(*filters.Committed))
	}
	if filters.From != nil {
		where = append(where, "date >= "+arg(*filters.From))
	}
	if filters.To != nil {
		where = append(where, "date <= "+arg(*filters.To))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM expenses WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, shared.Internalf(err, "expenses: count expenses")
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE ` + clause +
		` ORDER BY date DESC, id` + ` LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, shared.Internalf(err, "expenses: list expenses")
	}
	defer rows.Close()
	var claims []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, 0, shared.Internalf(err, "expenses: scan expense")
		}
		claims = append(claims, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, shared.Internalf(err, "expenses: list expenses")
	}
	return claims, total, nil
}

// Transactional operations.

func (t *txRepo) GetExpense(ctx context.Context, id uuid.UUID) (Expense, error) {
	return getExpense(ctx, t.tx, id)
}

func (t *txRepo) CreateExpense(ctx context.Context, e Expense) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO expenses
(id, uid, display_name, manager_uid, manager_name, date, payment_type, total, distance, description,
 vendor, job, division, submitted, approved, rejected, committed, exported,
 rejection_reason, rejector_uid, rejector_name, commit_uid, commit_name, committed_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,NOW(),NOW())`,
		e.ID, e.UID, e.DisplayName, e.ManagerUID, e.ManagerName, e.Date, e.PaymentType, e.Total, e.Distance,
		e.Description, e.Vendor, e.Job, e.Division,
		e.State.Submitted, e.State.Approved, e.State.Rejected, e.State.Committed, e.Exported,
		e.RejectionReason, e.RejectorUID, e.RejectorName, e.CommitUID, e.CommitName, e.CommittedAt)
	if err != nil {
		return shared.Internalf(err, "expenses: create expense")
	}
	return nil
}

func (t *txRepo) SaveExpense(ctx context.Context, e Expense) error {
	tag, err := t.tx.Exec(ctx, `UPDATE expenses SET
manager_uid=$2, manager_name=$3, display_name=$4, date=$5, payment_type=$6, total=$7, distance=$8,
description=$9, vendor=$10, job=$11, division=$12,
submitted=$13, approved=$14, rejected=$15, committed=$16, exported=$17,
rejection_reason=$18, rejector_uid=$19, rejector_name=$20,
commit_uid=$21, commit_name=$22, committed_at=$23, updated_at=NOW()
WHERE id=$1`,
		e.ID, e.ManagerUID, e.ManagerName, e.DisplayName, e.Date, e.PaymentType, e.Total, e.Distance,
		e.Description, e.Vendor, e.Job, e.Division,
		e.State.Submitted, e.State.Approved, e.State.Rejected, e.State.Committed, e.Exported,
		e.RejectionReason, e.RejectorUID, e.RejectorName, e.CommitUID, e.CommitName, e.CommittedAt)
	if err != nil {
		return shared.Internalf(err, "expenses: save expense")
	}
	if tag.RowsAffected() != 1 {
		return shared.NotFoundf("expense %s not found", e.ID)
	}
	return nil
}

func (t *txRepo) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM expenses WHERE id=$1 AND submitted=false AND approved=false AND committed=false`, id)
	if err != nil {
		return shared.Internalf(err, "expenses: delete expense")
	}
	if tag.RowsAffected() != 1 {
		return shared.FailedPreconditionf("Expense has been submitted; recall it before deleting")
	}
	return nil
}
