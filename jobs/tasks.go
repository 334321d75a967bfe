package jobs

import "github.com/hibiken/asynq"

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskPOAssignNumbers sweeps fully-approved purchase-order requests and
	// assigns sequential numbers.
	TaskPOAssignNumbers = "po:assign_numbers"
	// TaskAuditWeeklyCounts snapshots document counts into the audit trail.
	TaskAuditWeeklyCounts = "audit:weekly_counts"
	// TaskIdempotencyCleanup expires old idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// NewPOAssignNumbersTask constructs the allocation sweep task.
func NewPOAssignNumbersTask() *asynq.Task {
	return asynq.NewTask(TaskPOAssignNumbers, nil)
}

// NewAuditWeeklyCountsTask constructs the weekly count snapshot task.
func NewAuditWeeklyCountsTask() *asynq.Task {
	return asynq.NewTask(TaskAuditWeeklyCounts, nil)
}

// NewIdempotencyCleanupTask constructs the key expiry task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}
