package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewdesk/crewdesk/internal/shared"
)

// AuditCountsJob snapshots weekly document counts into the audit trail so
// payroll can spot weeks where submissions went missing.
type AuditCountsJob struct {
	pool   *pgxpool.Pool
	audit  *shared.AuditLogger
	logger *slog.Logger
	clock  shared.Clock
}

// NewAuditCountsJob initialises the weekly count handler.
func NewAuditCountsJob(pool *pgxpool.Pool, audit *shared.AuditLogger, logger *slog.Logger) *AuditCountsJob {
	return &AuditCountsJob{pool: pool, audit: audit, logger: logger, clock: shared.SystemClock}
}

// Handle counts documents by state for the trailing week.
func (j *AuditCountsJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.pool == nil {
		return errors.New("audit counts: handler not configured")
	}

	since := j.clock().Add(-7 * 24 * time.Hour)
	const query = `SELECT
  (SELECT COUNT(*) FROM timesheets WHERE submitted=true AND updated_at >= $1),
  (SELECT COUNT(*) FROM expenses WHERE submitted=true AND updated_at >= $1),
  (SELECT COUNT(*) FROM purchase_order_requests WHERE submitted=true AND updated_at >= $1),
  (SELECT COUNT(*) FROM purchase_orders WHERE issued_at >= $1)`

	var timesheets, expenses, requests, orders int64
	if err := j.pool.QueryRow(ctx, query, since).Scan(&timesheets, &expenses, &requests, &orders); err != nil {
		j.logger.Error("audit weekly counts", slog.Any("error", err))
		return err
	}

	err := j.audit.Record(ctx, shared.AuditLog{
		ActorUID: "system",
		Action:   "weekly-counts",
		Entity:   "audit",
		EntityID: j.clock().Format("2006-01-02"),
		Meta: map[string]any{
			"timesheets":            timesheets,
			"expenses":              expenses,
			"purchaseOrderRequests": requests,
			"purchaseOrders":        orders,
		},
		At: j.clock(),
	})
	if err != nil {
		j.logger.Error("record weekly counts", slog.Any("error", err))
		return err
	}
	j.logger.Info("recorded weekly document counts",
		slog.Int64("timesheets", timesheets),
		slog.Int64("expenses", expenses),
		slog.Int64("requests", requests),
		slog.Int64("orders", orders),
	)
	return nil
}
