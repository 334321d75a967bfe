package purchasing

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// memoryAllocStore is a mutex-guarded AllocatorPort: AssignNext is atomic the
// way the real single-transaction claim is. Numbers in taken conflict on
// insert but are not yet visible to the max-number scan, like a competing
// transaction that has the number but has not committed.
type memoryAllocStore struct {
	mu          sync.Mutex
	pending     []pendingRequest
	orders      map[string]uuid.UUID
	taken       map[string]struct{}
	assignCalls int
}

// pendingRequest keeps the creation time separate from the order requests
// reached full approval in, so claims can be checked against creation order.
type pendingRequest struct {
	id      uuid.UUID
	created time.Time
}

func newMemoryAllocStore(pending int) *memoryAllocStore {
	s := &memoryAllocStore{orders: map[string]uuid.UUID{}, taken: map[string]struct{}{}}
	base := time.Date(2026, time.April, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < pending; i++ {
		s.pending = append(s.pending, pendingRequest{id: uuid.New(), created: base.Add(time.Duration(i) * time.Hour)})
	}
	return s
}

func (s *memoryAllocStore) CountUnnumbered(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending), nil
}

func (s *memoryAllocStore) MaxNumberForPrefix(_ context.Context, prefix, nextPrefix string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := ""
	for number := range s.orders {
		if number >= prefix && number < nextPrefix && number > max {
			max = number
		}
	}
	return max, nil
}

func (s *memoryAllocStore) AssignNext(_ context.Context, number string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignCalls++
	if _, dup := s.orders[number]; dup {
		return ErrNumberTaken
	}
	if _, dup := s.taken[number]; dup {
		return ErrNumberTaken
	}
	if len(s.pending) == 0 {
		return ErrNoUnnumbered
	}
	oldest := 0
	for i, p := range s.pending {
		if p.created.Before(s.pending[oldest].created) {
			oldest = i
		}
	}
	s.orders[number] = s.pending[oldest].id
	s.pending = append(s.pending[:oldest], s.pending[oldest+1:]...)
	return nil
}

func (s *memoryAllocStore) numbers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.orders))
	for number := range s.orders {
		out = append(out, number)
	}
	sort.Strings(out)
	return out
}

func newTestAllocator(store AllocatorPort) *Allocator {
	clock := func() time.Time { return time.Date(2026, time.April, 14, 3, 0, 0, 0, time.UTC) }
	return NewAllocator(store, slog.New(slog.DiscardHandler), clock)
}

func TestPeriodPrefix(t *testing.T) {
	require.Equal(t, "2604-", PeriodPrefix(time.Date(2026, time.April, 14, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, "2612-", PeriodPrefix(time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, "2701-", nextPeriodPrefix(time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC)))
}

func TestSequenceOf(t *testing.T) {
	require.Equal(t, 17, sequenceOf("2604-0017"))
	require.Equal(t, 0, sequenceOf(""))
	require.Equal(t, 0, sequenceOf("2604-xyz"))
}

func TestRunWithNothingPendingIsNoOp(t *testing.T) {
	store := newMemoryAllocStore(0)
	assigned, err := newTestAllocator(store).Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, assigned)
	require.Zero(t, store.assignCalls)
}

func TestRunNumbersEveryPendingRequest(t *testing.T) {
	store := newMemoryAllocStore(3)
	assigned, err := newTestAllocator(store).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, assigned)
	require.Equal(t, []string{"2604-0001", "2604-0002", "2604-0003"}, store.numbers())

	// A second sweep finds nothing and writes nothing.
	calls := store.assignCalls
	assigned, err = newTestAllocator(store).Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, assigned)
	require.Equal(t, calls, store.assignCalls)
}

func TestRunClaimsInCreationOrderNotApprovalOrder(t *testing.T) {
	store := newMemoryAllocStore(0)
	earlier := pendingRequest{id: uuid.New(), created: time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC)}
	later := pendingRequest{id: uuid.New(), created: time.Date(2026, time.April, 9, 8, 0, 0, 0, time.UTC)}

	// The later request cleared its approvals first, so it sits ahead of
	// the earlier one in the queue. Numbers still follow creation time.
	store.pending = []pendingRequest{later, earlier}

	assigned, err := newTestAllocator(store).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, assigned)
	require.Equal(t, earlier.id, store.orders["2604-0001"])
	require.Equal(t, later.id, store.orders["2604-0002"])
}

func TestRunSeedsFromExistingNumbers(t *testing.T) {
	store := newMemoryAllocStore(1)
	store.orders["2604-0041"] = uuid.New()
	assigned, err := newTestAllocator(store).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, assigned)
	require.Contains(t, store.numbers(), "2604-0042")
}

func TestRunIgnoresOtherPeriods(t *testing.T) {
	store := newMemoryAllocStore(1)
	store.orders["2603-0099"] = uuid.New()
	store.orders["2605-0009"] = uuid.New()
	_, err := newTestAllocator(store).Run(context.Background())
	require.NoError(t, err)
	require.Contains(t, store.numbers(), "2604-0001")
}

func TestRunSkipsTakenNumbersAndWaitsForNextTick(t *testing.T) {
	store := newMemoryAllocStore(2)
	store.taken["2604-0002"] = struct{}{}

	// The run claims 0001, loses the race for 0002 and stops without it:
	// the remaining request waits for the next scheduled sweep.
	alloc := newTestAllocator(store)
	assigned, err := alloc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, assigned)
	require.Equal(t, []string{"2604-0001"}, store.numbers())

	// The competing transaction commits; the next sweep seeds past its
	// number and 0002 is never handed out again.
	store.mu.Lock()
	store.orders["2604-0002"] = uuid.New()
	delete(store.taken, "2604-0002")
	store.mu.Unlock()

	assigned, err = alloc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, assigned)
	require.Equal(t, []string{"2604-0001", "2604-0002", "2604-0003"}, store.numbers())
}

func TestConcurrentRunsAssignExactlyOnce(t *testing.T) {
	const pending = 20
	const runners = 5

	store := newMemoryAllocStore(pending)
	alloc := newTestAllocator(store)

	var wg sync.WaitGroup
	for i := 0; i < runners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := alloc.Run(context.Background())
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	// Races over candidate numbers can leave requests for the next tick;
	// sweep until quiescent the way the scheduler would.
	for {
		assigned, err := alloc.Run(context.Background())
		require.NoError(t, err)
		if assigned == 0 {
			break
		}
	}

	numbers := store.numbers()
	require.Len(t, numbers, pending)
	seen := map[string]struct{}{}
	for _, n := range numbers {
		_, dup := seen[n]
		require.False(t, dup, "number %s assigned twice", n)
		seen[n] = struct{}{}
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	require.Empty(t, store.pending)
}
