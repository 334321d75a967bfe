package expenses

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/crewdesk/crewdesk/internal/capabilities"
	"github.com/crewdesk/crewdesk/internal/schema"
	"github.com/crewdesk/crewdesk/internal/shared"
)

type memoryExpenseRepo struct {
	owners map[string]Owner
	claims map[uuid.UUID]Expense
}

func newMemoryExpenseRepo() *memoryExpenseRepo {
	return &memoryExpenseRepo{owners: map[string]Owner{}, claims: map[uuid.UUID]Expense{}}
}

func (m *memoryExpenseRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryExpenseRepo) GetOwner(_ context.Context, uid string) (Owner, error) {
	o, ok := m.owners[uid]
	if !ok {
		return Owner{}, shared.NotFoundf("profile %s not found", uid)
	}
	return o, nil
}

func (m *memoryExpenseRepo) GetExpense(_ context.Context, id uuid.UUID) (Expense, error) {
	e, ok := m.claims[id]
	if !ok {
		return Expense{}, shared.NotFoundf("expense %s not found", id)
	}
	return e, nil
}

func (m *memoryExpenseRepo) ListExpenses(_ context.Context, filters ListFilters, limit, offset int) ([]Expense, int, error) {
	var out []Expense
	for _, e := range m.claims {
		if filters.UID != "" && e.UID != filters.UID {
			continue
		}
		if filters.ManagerUID != "" && e.ManagerUID != filters.ManagerUID {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (m *memoryExpenseRepo) CreateExpense(_ context.Context, e Expense) error {
	m.claims[e.ID] = e
	return nil
}

func (m *memoryExpenseRepo) SaveExpense(_ context.Context, e Expense) error {
	if _, ok := m.claims[e.ID]; !ok {
		return shared.NotFoundf("expense %s not found", e.ID)
	}
	m.claims[e.ID] = e
	return nil
}

func (m *memoryExpenseRepo) DeleteExpense(_ context.Context, id uuid.UUID) error {
	delete(m.claims, id)
	return nil
}

type memoryIdemStore struct {
	seen map[string]struct{}
}

func (m *memoryIdemStore) CheckAndInsert(_ context.Context, key, scope string) error {
	if m.seen == nil {
		m.seen = map[string]struct{}{}
	}
	full := scope + ":" + key
	if _, dup := m.seen[full]; dup {
		return shared.ErrIdempotencyConflict
	}
	m.seen[full] = struct{}{}
	return nil
}

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestExpenseService(repo *memoryExpenseRepo, idem IdempotencyPort) *Service {
	logger := slog.New(slog.DiscardHandler)
	clock := func() time.Time { return testNow }
	return NewService(repo, repo, schema.New(), nil, idem, logger, clock)
}

func expCaller(uid string, caps ...capabilities.Capability) capabilities.Caller {
	return capabilities.Caller{UID: uid, DisplayName: "Test " + uid, Caps: capabilities.NewSet(caps...)}
}

func fuelClaim() ClaimInput {
	return ClaimInput{
		Date:        testNow.AddDate(0, 0, -3),
		PaymentType: schema.PaymentFuelCard,
		Total:       decimal.NewFromFloat(82.40),
		Description: "diesel for unit 12",
		Vendor:      "Husky",
	}
}

func seedSubmitted(t *testing.T, svc *Service, repo *memoryExpenseRepo, uid string) Expense {
	t.Helper()
	repo.owners[uid] = Owner{UID: uid, DisplayName: "U " + uid, ManagerUID: "mgr", ManagerName: "M"}
	claim, err := svc.Create(context.Background(), expCaller(uid), fuelClaim(), "")
	require.NoError(t, err)
	claim, err = svc.Submit(context.Background(), expCaller(uid), claim.ID)
	require.NoError(t, err)
	return claim
}

func TestCreateValidatesShape(t *testing.T) {
	svc := newTestExpenseService(newMemoryExpenseRepo(), nil)

	input := fuelClaim()
	input.Total = decimal.Zero
	_, err := svc.Create(context.Background(), expCaller("u1"), input, "")
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindInvalidArgument})

	// Mileage carries a distance and no money fields.
	mileage := ClaimInput{
		Date:        testNow.AddDate(0, 0, -1),
		PaymentType: schema.PaymentMileage,
		Distance:    5,
		Description: "site run to the yard",
	}
	claim, err := svc.Create(context.Background(), expCaller("u1"), mileage, "")
	require.NoError(t, err)
	require.True(t, claim.Total.IsZero())
	require.Equal(t, 5.0, claim.Distance)
}

func TestCreateIdempotencyKey(t *testing.T) {
	svc := newTestExpenseService(newMemoryExpenseRepo(), &memoryIdemStore{})

	_, err := svc.Create(context.Background(), expCaller("u1"), fuelClaim(), "req-1")
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), expCaller("u1"), fuelClaim(), "req-1")
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindAlreadyExists})
	_, err = svc.Create(context.Background(), expCaller("u1"), fuelClaim(), "req-2")
	require.NoError(t, err)
}

func TestDraftEditsAreOwnerOnly(t *testing.T) {
	repo := newMemoryExpenseRepo()
	svc := newTestExpenseService(repo, nil)
	claim, err := svc.Create(context.Background(), expCaller("u1"), fuelClaim(), "")
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), expCaller("u2"), claim.ID, fuelClaim())
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindPermissionDenied})
	err = svc.Delete(context.Background(), expCaller("u2"), claim.ID)
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindPermissionDenied})

	input := fuelClaim()
	input.Description = "diesel and DEF for unit 12"
	updated, err := svc.Update(context.Background(), expCaller("u1"), claim.ID, input)
	require.NoError(t, err)
	require.Equal(t, "diesel and DEF for unit 12", updated.Description)
	require.NoError(t, svc.Delete(context.Background(), expCaller("u1"), claim.ID))
}

func TestSubmitStampsManagerAndFreezesDraft(t *testing.T) {
	repo := newMemoryExpenseRepo()
	svc := newTestExpenseService(repo, nil)
	claim := seedSubmitted(t, svc, repo, "u1")
	require.True(t, claim.State.Submitted)
	require.Equal(t, "mgr", claim.ManagerUID)

	// Submitted claims cannot be edited or deleted.
	_, err := svc.Update(context.Background(), expCaller("u1"), claim.ID, fuelClaim())
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindFailedPrecondition})
	err = svc.Delete(context.Background(), expCaller("u1"), claim.ID)
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindFailedPrecondition})

	// Double submit is refused.
	_, err = svc.Submit(context.Background(), expCaller("u1"), claim.ID)
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindAlreadyExists})
}

func TestSubmitRequiresManagerAssignment(t *testing.T) {
	repo := newMemoryExpenseRepo()
	svc := newTestExpenseService(repo, nil)
	repo.owners["u1"] = Owner{UID: "u1", DisplayName: "U One"}
	claim, err := svc.Create(context.Background(), expCaller("u1"), fuelClaim(), "")
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), expCaller("u1"), claim.ID)
	require.EqualError(t, err, "Profile is missing a managerUid")
}

func TestApproveTiers(t *testing.T) {
	repo := newMemoryExpenseRepo()
	svc := newTestExpenseService(repo, nil)
	claim := seedSubmitted(t, svc, repo, "u1")

	// Approver capability alone is not enough at the manager tier.
	err := svc.Approve(context.Background(), expCaller("other", capabilities.CapTimeApprover), claim.ID)
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindPermissionDenied})

	// The second-tier expense approver works regardless of assignment.
	err = svc.Approve(context.Background(), expCaller("finance", capabilities.CapExpenseApprover), claim.ID)
	require.NoError(t, err)

	err = svc.Approve(context.Background(), expCaller("mgr", capabilities.CapTimeApprover), claim.ID)
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindAlreadyExists})
}

func TestRejectIsManagerOnly(t *testing.T) {
	repo := newMemoryExpenseRepo()
	svc := newTestExpenseService(repo, nil)
	claim := seedSubmitted(t, svc, repo, "u1")

	err := svc.Reject(context.Background(), expCaller("other", capabilities.CapTimeApprover), claim.ID, "wrong vendor on receipt")
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindPermissionDenied})

	err = svc.Reject(context.Background(), expCaller("mgr", capabilities.CapTimeApprover), claim.ID, "short")
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindInvalidArgument})

	err = svc.Reject(context.Background(), expCaller("mgr", capabilities.CapTimeApprover), claim.ID, "wrong vendor on receipt")
	require.NoError(t, err)
	got, err := repo.GetExpense(context.Background(), claim.ID)
	require.NoError(t, err)
	require.True(t, got.State.Rejected)
	require.False(t, got.State.Approved)
	require.Equal(t, "mgr", got.RejectorUID)
}

func TestCommitRequiresApprovalAndPastDate(t *testing.T) {
	repo := newMemoryExpenseRepo()
	svc := newTestExpenseService(repo, nil)
	claim := seedSubmitted(t, svc, repo, "u1")
	clerk := expCaller("clerk", capabilities.CapCommit)

	// Not yet approved.
	err := svc.Commit(context.Background(), clerk, claim.ID)
	require.EqualError(t, err, "Expense has not been approved")

	require.NoError(t, svc.Approve(context.Background(), expCaller("mgr", capabilities.CapTimeApprover), claim.ID))

	// Wrong capability.
	err = svc.Commit(context.Background(), expCaller("mgr", capabilities.CapTimeApprover), claim.ID)
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindPermissionDenied})

	require.NoError(t, svc.Commit(context.Background(), clerk, claim.ID))
	got, err := repo.GetExpense(context.Background(), claim.ID)
	require.NoError(t, err)
	require.True(t, got.State.Committed)
	require.Equal(t, "clerk", got.CommitUID)
	require.NotNil(t, got.CommittedAt)
	require.Equal(t, testNow, *got.CommittedAt)

	// Committed is terminal.
	err = svc.Commit(context.Background(), clerk, claim.ID)
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindAlreadyExists})
	err = svc.Reject(context.Background(), expCaller("mgr", capabilities.CapTimeApprover), claim.ID, "too late to reject this")
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindFailedPrecondition})
}

func TestCommitRefusesFutureDatedClaims(t *testing.T) {
	repo := newMemoryExpenseRepo()
	svc := newTestExpenseService(repo, nil)
	repo.owners["u1"] = Owner{UID: "u1", DisplayName: "U One", ManagerUID: "mgr", ManagerName: "M"}

	input := fuelClaim()
	input.Date = testNow.AddDate(0, 0, 2)
	claim, err := svc.Create(context.Background(), expCaller("u1"), input, "")
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), expCaller("u1"), claim.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Approve(context.Background(), expCaller("mgr", capabilities.CapTimeApprover), claim.ID))

	err = svc.Commit(context.Background(), expCaller("clerk", capabilities.CapCommit), claim.ID)
	require.EqualError(t, err, "Expense is dated in the future and cannot be committed")
}

func TestRecallBeforeApprovalOnly(t *testing.T) {
	repo := newMemoryExpenseRepo()
	svc := newTestExpenseService(repo, nil)
	claim := seedSubmitted(t, svc, repo, "u1")

	err := svc.Recall(context.Background(), expCaller("u2"), claim.ID)
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindPermissionDenied})
	require.NoError(t, svc.Recall(context.Background(), expCaller("u1"), claim.ID))

	_, err = svc.Submit(context.Background(), expCaller("u1"), claim.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Approve(context.Background(), expCaller("mgr", capabilities.CapTimeApprover), claim.ID))
	err = svc.Recall(context.Background(), expCaller("u1"), claim.ID)
	require.EqualError(t, err, "Expense is already approved")
}

func TestGetVisibility(t *testing.T) {
	repo := newMemoryExpenseRepo()
	svc := newTestExpenseService(repo, nil)
	claim := seedSubmitted(t, svc, repo, "u1")

	_, err := svc.Get(context.Background(), expCaller("u1"), claim.ID)
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), expCaller("mgr"), claim.ID)
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), expCaller("clerk", capabilities.CapCommit), claim.ID)
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), expCaller("stranger"), claim.ID)
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindPermissionDenied})
}
