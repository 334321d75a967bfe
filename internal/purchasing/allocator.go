package purchasing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/crewdesk/crewdesk/internal/shared"
)

// Allocator hands out period-scoped purchase order numbers ("YYMM-NNNN") to
// fully-approved requests, exactly once each. It is run out-of-band on a
// schedule; concurrent runs are safe because every claim is a single
// transaction keyed on the number's uniqueness. A candidate number that loses
// a race is skipped for good, so the sequence is monotonic but gap-tolerant.
type Allocator struct {
	store  AllocatorPort
	logger *slog.Logger
	clock  shared.Clock
}

// NewAllocator constructs the allocator.
func NewAllocator(store AllocatorPort, logger *slog.Logger, clock shared.Clock) *Allocator {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &Allocator{store: store, logger: logger, clock: clock}
}

// PeriodPrefix formats the number prefix for the month containing t.
func PeriodPrefix(t time.Time) string {
	return fmt.Sprintf("%02d%02d-", t.Year()%100, int(t.Month()))
}

// nextPeriodPrefix bounds the max-number scan to one month.
func nextPeriodPrefix(t time.Time) string {
	return PeriodPrefix(t.AddDate(0, 1, 0))
}

// sequenceOf extracts the numeric tail of a purchase order number. A missing
// or malformed number seeds the sequence at zero.
func sequenceOf(number string) int {
	_, tail, ok := strings.Cut(number, "-")
	if !ok {
		return 0
	}
	seq, err := strconv.Atoi(tail)
	if err != nil {
		return 0
	}
	return seq
}

// Run performs one allocation sweep: count the fully-approved unnumbered
// requests, seed the sequence from the highest number already issued this
// period, then claim one number per request. With nothing to do it is a
// no-op and writes nothing.
func (a *Allocator) Run(ctx context.Context) (int, error) {
	pending, err := a.store.CountUnnumbered(ctx)
	if err != nil {
		return 0, err
	}
	if pending == 0 {
		return 0, nil
	}

	now := a.clock()
	prefix := PeriodPrefix(now)
	maxNumber, err := a.store.MaxNumberForPrefix(ctx, prefix, nextPeriodPrefix(now))
	if err != nil {
		return 0, err
	}
	seq := sequenceOf(maxNumber)

	assigned := 0
	for i := 0; i < pending; i++ {
		seq++
		number := fmt.Sprintf("%s%04d", prefix, seq)
		err := a.store.AssignNext(ctx, number, now)
		switch {
		case err == nil:
			assigned++
		case errors.Is(err, ErrNoUnnumbered):
			// Another run drained the queue first.
			return assigned, nil
		case errors.Is(err, ErrNumberTaken):
			// Lost the race for this number; leave the hole and move on.
			if a.logger != nil {
				a.logger.Info("purchase order number taken, skipping", slog.String("number", number))
			}
		default:
			return assigned, err
		}
	}
	return assigned, nil
}
