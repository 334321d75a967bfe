package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/crewdesk/crewdesk/internal/purchasing"
)

// PONumberJob runs the sequential number allocator on a schedule. Requests
// left unnumbered by a collision are picked up on the next tick.
type PONumberJob struct {
	allocator *purchasing.Allocator
	logger    *slog.Logger
}

// NewPONumberJob initialises the allocation sweep handler.
func NewPONumberJob(allocator *purchasing.Allocator, logger *slog.Logger) *PONumberJob {
	return &PONumberJob{allocator: allocator, logger: logger}
}

// Handle executes one allocation sweep.
func (j *PONumberJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.allocator == nil {
		return errors.New("po numbers: handler not configured")
	}
	assigned, err := j.allocator.Run(ctx)
	if err != nil {
		j.logger.Error("purchase order number sweep", slog.Any("error", err), slog.Int("assigned", assigned))
		return err
	}
	if assigned > 0 {
		j.logger.Info("assigned purchase order numbers", slog.Int("assigned", assigned))
	}
	return nil
}
