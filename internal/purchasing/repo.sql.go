package purchasing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewdesk/crewdesk/internal/capabilities"
	"github.com/crewdesk/crewdesk/internal/platform/db"
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
		return shared.Internalf(err, "purchasing: begin tx")
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return shared.Internalf(err, "purchasing: commit tx")
	}
	return nil
}

// GetOwner resolves a request owner's manager assignment from the profile
// directory.
func (r *Repository) GetOwner(ctx context.Context, uid string) (Owner, error) {
	var o Owner
	err := r.pool.QueryRow(ctx, `SELECT uid, display_name, manager_uid, manager_name FROM profiles WHERE uid=$1`, uid).
		Scan(&o.UID, &o.DisplayName, &o.ManagerUID, &o.ManagerName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Owner{}, shared.NotFoundf("profile %s not found", uid)
		}
		return Owner{}, shared.Internalf(err, "purchasing: get owner")
	}
	return o, nil
}

const requestColumns = `id, uid, display_name, manager_uid, manager_name, description, vendor_name, total,
type, job, division, submitted, approved, rejected, next_approver_claim, fully_approved,
rejection_reason, rejector_uid, rejector_name, created_at, updated_at`

func scanRequest(row pgx.Row) (PurchaseOrderRequest, error) {
	var req PurchaseOrderRequest
	var claim *string
	err := row.Scan(&req.ID, &req.UID, &req.DisplayName, &req.ManagerUID, &req.ManagerName,
		&req.Description, &req.VendorName, &req.Total, &req.Type, &req.Job, &req.Division,
		&req.State.Submitted, &req.State.Approved, &req.State.Rejected, &claim, &req.FullyApproved,
		&req.RejectionReason, &req.RejectorUID, &req.RejectorName, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return PurchaseOrderRequest{}, err
	}
	if claim != nil {
		if c, err := capabilities.Parse(*claim); err == nil {
			req.NextApproverClaim = &c
		}
	}
	return req, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getRequest(ctx context.Context, q queryRower, id uuid.UUID) (PurchaseOrderRequest, error) {
	req, err := scanRequest(q.QueryRow(ctx, `SELECT `+requestColumns+` FROM purchase_order_requests WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrderRequest{}, shared.NotFoundf("purchase order request %s not found", id)
		}
		return PurchaseOrderRequest{}, shared.Internalf(err, "purchasing: get request")
	}
	return req, nil
}

// GetRequest loads one request outside a transaction.
func (r *Repository) GetRequest(ctx context.Context, id uuid.UUID) (PurchaseOrderRequest, error) {
	return getRequest(ctx, r.pool, id)
}

// ListRequests returns requests matching filters, newest first.
func (r *Repository) ListRequests(ctx context.Context, filters RequestFilters, limit, offset int) ([]PurchaseOrderRequest, int, error) {
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
	if filters.Type != "" {
		where = append(where, "type="+arg(filters.Type))
	}
	if filters.Submitted != nil {
		where = append(where, "submitted="+arg(*filters.Submitted))
	}
	if filters.FullyApproved != nil {
		where = append(where, "fully_approved="+arg(*filters.FullyApproved))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_order_requests WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, shared.Internalf(err, "purchasing: count requests")
	}
	query := `SELECT ` + requestColumns + ` FROM purchase_order_requests WHERE ` + clause +
		` ORDER BY created_at DESC, id` + ` LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, shared.Internalf(err, "purchasing: list requests")
	}
	defer rows.Close()
	var requests []PurchaseOrderRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, shared.Internalf(err, "purchasing: scan request")
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, shared.Internalf(err, "purchasing: list requests")
	}
	return requests, total, nil
}

const orderColumns = `number, request_id, uid, display_name, manager_uid, manager_name, description,
vendor_name, total, type, job, division, status, issued_at, cancelled_at, cancelled_uid, cancelled_name`

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.Number, &po.RequestID, &po.UID, &po.DisplayName, &po.ManagerUID, &po.ManagerName,
		&po.Description, &po.VendorName, &po.Total, &po.Type, &po.Job, &po.Division,
		&po.Status, &po.IssuedAt, &po.CancelledAt, &po.CancelledUID, &po.CancelledName)
	return po, err
}

// GetOrder loads one issued purchase order by number.
func (r *Repository) GetOrder(ctx context.Context, number string) (PurchaseOrder, error) {
	po, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE number=$1`, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, shared.NotFoundf("purchase order %s not found", number)
		}
		return PurchaseOrder{}, shared.Internalf(err, "purchasing: get order")
	}
	return po, nil
}

// ListOrders returns issued purchase orders matching filters, newest number
// first.
func (r *Repository) ListOrders(ctx context.Context, filters OrderFilters, limit, offset int) ([]PurchaseOrder, int, error) {
	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filters.UID != "" {
		where = append(where, "uid="+arg(filters.UID))
	}
	if filters.Status != "" {
		where = append(where, "status="+arg(filters.Status))
	}
	if filters.Prefix != "" {
		where = append(where, "number LIKE "+arg(filters.Prefix+"%"))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, shared.Internalf(err, "purchasing: count orders")
	}
	query := `SELECT ` + orderColumns + ` FROM purchase_orders WHERE ` + clause +
		` ORDER BY number DESC` + ` LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, shared.Internalf(err, "purchasing: list orders")
	}
	defer rows.Close()
	var orders []PurchaseOrder
	for rows.Next() {
		po, err := scanOrder(rows)
		if err != nil {
			return nil, 0, shared.Internalf(err, "purchasing: scan order")
		}
		orders = append(orders, po)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, shared.Internalf(err, "purchasing: list orders")
	}
	return orders, total, nil
}

// Allocator storage surface.

// CountUnnumbered counts fully-approved requests still waiting for a number.
func (r *Repository) CountUnnumbered(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_order_requests WHERE fully_approved=true`).Scan(&n); err != nil {
		return 0, shared.Internalf(err, "purchasing: count unnumbered")
	}
	return n, nil
}

// MaxNumberForPrefix returns the highest number issued in the period, or ""
// when the period has none yet.
func (r *Repository) MaxNumberForPrefix(ctx context.Context, prefix, nextPrefix string) (string, error) {
	var number string
	err := r.pool.QueryRow(ctx, `SELECT number FROM purchase_orders WHERE number >= $1 AND number < $2 ORDER BY number DESC LIMIT 1`, prefix, nextPrefix).Scan(&number)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", shared.Internalf(err, "purchasing: max number for prefix")
	}
	return number, nil
}

// AssignNext claims number for the fully-approved unnumbered request with the
// oldest creation time: insert the numbered order and delete the source
// request in one serializable transaction. Ordering by created_at keeps
// numbers in request order even when a second-tier approval lands late. A
// unique-violation or serialization failure on the number surfaces as
// ErrNumberTaken so the allocator can skip the candidate.
func (r *Repository) AssignNext(ctx context.Context, number string, stamp time.Time) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return shared.Internalf(err, "purchasing: begin allocation tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM purchase_orders WHERE number=$1)`, number).Scan(&exists); err != nil {
		return shared.Internalf(err, "purchasing: check number")
	}
	if exists {
		return ErrNumberTaken
	}

	req, err := scanRequest(tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM purchase_order_requests
WHERE fully_approved=true ORDER BY created_at, id LIMIT 1 FOR UPDATE SKIP LOCKED`))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoUnnumbered
		}
		return shared.Internalf(err, "purchasing: pick unnumbered request")
	}

	_, err = tx.Exec(ctx, `INSERT INTO purchase_orders
(number, request_id, uid, display_name, manager_uid, manager_name, description, vendor_name, total,
 type, job, division, status, issued_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		number, req.ID, req.UID, req.DisplayName, req.ManagerUID, req.ManagerName,
		req.Description, req.VendorName, req.Total, req.Type, req.Job, req.Division,
		StatusActive, stamp)
	if err != nil {
		if db.IsUniqueViolation(err) || db.IsSerializationFailure(err) {
			return ErrNumberTaken
		}
		return shared.Internalf(err, "purchasing: insert order")
	}

	tag, err := tx.Exec(ctx, `DELETE FROM purchase_order_requests WHERE id=$1`, req.ID)
	if err != nil {
		return shared.Internalf(err, "purchasing: delete numbered request")
	}
	if tag.RowsAffected() != 1 {
		return shared.Internalf(nil, "purchasing: numbered request vanished mid-allocation")
	}

	if err := tx.Commit(ctx); err != nil {
		if db.IsSerializationFailure(err) {
			return ErrNumberTaken
		}
		return shared.Internalf(err, "purchasing: commit allocation")
	}
	return nil
}

// Transactional operations.

func (t *txRepo) GetRequest(ctx context.Context, id uuid.UUID) (PurchaseOrderRequest, error) {
	return getRequest(ctx, t.tx, id)
}

func (t *txRepo) CreateRequest(ctx context.Context, req PurchaseOrderRequest) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO purchase_order_requests
(id, uid, display_name, manager_uid, manager_name, description, vendor_name, total, type, job, division,
 submitted, approved, rejected, next_approver_claim, fully_approved,
 rejection_reason, rejector_uid, rejector_name, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,NOW(),NOW())`,
		req.ID, req.UID, req.DisplayName, req.ManagerUID, req.ManagerName, req.Description, req.VendorName,
		req.Total, req.Type, req.Job, req.Division,
		req.State.Submitted, req.State.Approved, req.State.Rejected, claimValue(req.NextApproverClaim), req.FullyApproved,
		req.RejectionReason, req.RejectorUID, req.RejectorName)
	if err != nil {
		return shared.Internalf(err, "purchasing: create request")
	}
	return nil
}

func (t *txRepo) SaveRequest(ctx context.Context, req PurchaseOrderRequest) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_order_requests SET
manager_uid=$2, manager_name=$3, display_name=$4, description=$5, vendor_name=$6, total=$7, type=$8,
job=$9, division=$10, submitted=$11, approved=$12, rejected=$13,
next_approver_claim=$14, fully_approved=$15,
rejection_reason=$16, rejector_uid=$17, rejector_name=$18, updated_at=NOW()
WHERE id=$1`,
		req.ID, req.ManagerUID, req.ManagerName, req.DisplayName, req.Description, req.VendorName,
		req.Total, req.Type, req.Job, req.Division,
		req.State.Submitted, req.State.Approved, req.State.Rejected,
		claimValue(req.NextApproverClaim), req.FullyApproved,
		req.RejectionReason, req.RejectorUID, req.RejectorName)
	if err != nil {
		return shared.Internalf(err, "purchasing: save request")
	}
	if tag.RowsAffected() != 1 {
		return shared.NotFoundf("purchase order request %s not found", req.ID)
	}
	return nil
}

func (t *txRepo) DeleteRequest(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM purchase_order_requests WHERE id=$1 AND submitted=false AND approved=false`, id)
	if err != nil {
		return shared.Internalf(err, "purchasing: delete request")
	}
	if tag.RowsAffected() != 1 {
		return shared.FailedPreconditionf("PurchaseOrderRequest has been submitted; recall it before deleting")
	}
	return nil
}

func (t *txRepo) GetOrderForUpdate(ctx context.Context, number string) (PurchaseOrder, error) {
	po, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE number=$1 FOR UPDATE`, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, shared.NotFoundf("purchase order %s not found", number)
		}
		return PurchaseOrder{}, shared.Internalf(err, "purchasing: get order for update")
	}
	return po, nil
}

func (t *txRepo) SaveOrder(ctx context.Context, po PurchaseOrder) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET
status=$2, cancelled_at=$3, cancelled_uid=$4, cancelled_name=$5
WHERE number=$1`,
		po.Number, po.Status, po.CancelledAt, po.CancelledUID, po.CancelledName)
	if err != nil {
		return shared.Internalf(err, "purchasing: save order")
	}
	if tag.RowsAffected() != 1 {
		return shared.NotFoundf("purchase order %s not found", po.Number)
	}
	return nil
}

func claimValue(c *capabilities.Capability) *string {
	if c == nil {
		return nil
	}
	s := string(*c)
	return &s
}
