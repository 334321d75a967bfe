package purchasing

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

type memoryPORepo struct {
	owners   map[string]Owner
	requests map[uuid.UUID]PurchaseOrderRequest
	orders   map[string]PurchaseOrder
}

func newMemoryPORepo() *memoryPORepo {
	return &memoryPORepo{
		owners:   map[string]Owner{},
		requests: map[uuid.UUID]PurchaseOrderRequest{},
		orders:   map[string]PurchaseOrder{},
	}
}

func (m *memoryPORepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryPORepo) GetOwner(_ context.Context, uid string) (Owner, error) {
	o, ok := m.owners[uid]
	if !ok {
		return Owner{}, shared.NotFoundf("profile %s not found", uid)
	}
	return o, nil
}

func (m *memoryPORepo) GetRequest(_ context.Context, id uuid.UUID) (PurchaseOrderRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return PurchaseOrderRequest{}, shared.NotFoundf("purchase order request %s not found", id)
	}
	return req, nil
}

func (m *memoryPORepo) ListRequests(_ context.Context, filters RequestFilters, limit, offset int) ([]PurchaseOrderRequest, int, error) {
	var out []PurchaseOrderRequest
	for _, req := range m.requests {
		if filters.UID != "" && req.UID != filters.UID {
			continue
		}
		if filters.ManagerUID != "" && req.ManagerUID != filters.ManagerUID {
			continue
		}
		out = append(out, req)
	}
	return out, len(out), nil
}

func (m *memoryPORepo) GetOrder(_ context.Context, number string) (PurchaseOrder, error) {
	po, ok := m.orders[number]
	if !ok {
		return PurchaseOrder{}, shared.NotFoundf("purchase order %s not found", number)
	}
	return po, nil
}

func (m *memoryPORepo) ListOrders(_ context.Context, filters OrderFilters, limit, offset int) ([]PurchaseOrder, int, error) {
	var out []PurchaseOrder
	for _, po := range m.orders {
		if filters.UID != "" && po.UID != filters.UID {
			continue
		}
		if filters.Status != "" && po.Status != filters.Status {
			continue
		}
		out = append(out, po)
	}
	return out, len(out), nil
}

func (m *memoryPORepo) CreateRequest(_ context.Context, req PurchaseOrderRequest) error {
	m.requests[req.ID] = req
	return nil
}

func (m *memoryPORepo) SaveRequest(_ context.Context, req PurchaseOrderRequest) error {
	if _, ok := m.requests[req.ID]; !ok {
		return shared.NotFoundf("purchase order request %s not found", req.ID)
	}
	m.requests[req.ID] = req
	return nil
}

func (m *memoryPORepo) DeleteRequest(_ context.Context, id uuid.UUID) error {
	delete(m.requests, id)
	return nil
}

func (m *memoryPORepo) GetOrderForUpdate(ctx context.Context, number string) (PurchaseOrder, error) {
	return m.GetOrder(ctx, number)
}

func (m *memoryPORepo) SaveOrder(_ context.Context, po PurchaseOrder) error {
	if _, ok := m.orders[po.Number]; !ok {
		return shared.NotFoundf("purchase order %s not found", po.Number)
	}
	m.orders[po.Number] = po
	return nil
}

var poNow = time.Date(2026, time.April, 14, 9, 0, 0, 0, time.UTC)

func testLimits() Limits {
	return Limits{Manager: decimal.NewFromInt(1000), VP: decimal.NewFromInt(5000)}
}

func newTestPOService(repo *memoryPORepo) *Service {
	logger := slog.New(slog.DiscardHandler)
	clock := func() time.Time { return poNow }
	return NewService(repo, repo, schema.New(), testLimits(), nil, logger, clock)
}

func poCaller(uid string, caps ...capabilities.Capability) capabilities.Caller {
	return capabilities.Caller{UID: uid, DisplayName: "Test " + uid, Caps: capabilities.NewSet(caps...)}
}

func requestInput(total int64, kind string) RequestInput {
	return RequestInput{
		Description: "replacement hydraulic pump",
		VendorName:  "Northern Supply",
		Total:       decimal.NewFromInt(total),
		Type:        kind,
	}
}

func seedSubmittedRequest(t *testing.T, svc *Service, repo *memoryPORepo, uid string, input RequestInput) PurchaseOrderRequest {
	t.Helper()
	repo.owners[uid] = Owner{UID: uid, DisplayName: "U " + uid, ManagerUID: "mgr", ManagerName: "M"}
	req, err := svc.Create(context.Background(), poCaller(uid, capabilities.CapPurchaseOrder), input)
	require.NoError(t, err)
	req, err = svc.Submit(context.Background(), poCaller(uid), req.ID)
	require.NoError(t, err)
	return req
}

func TestCreateRequiresPOCap(t *testing.T) {
	svc := newTestPOService(newMemoryPORepo())
	_, err := svc.Create(context.Background(), poCaller("u1"), requestInput(500, TypeNormal))
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindPermissionDenied})
}

func TestManagerApprovalRouting(t *testing.T) {
	cases := []struct {
		name      string
		input     RequestInput
		wantClaim *capabilities.Capability
		wantFully bool
	}{
		{"under manager limit", requestInput(999, TypeNormal), nil, true},
		{"at manager limit routes to vp", requestInput(1000, TypeNormal), capPtr(capabilities.CapVP), false},
		{"between limits routes to vp", requestInput(4999, TypeNormal), capPtr(capabilities.CapVP), false},
		{"at vp limit routes to smg", requestInput(5000, TypeNormal), capPtr(capabilities.CapSMG), false},
		{"recurring always routes to smg", requestInput(50, TypeRecurring), capPtr(capabilities.CapSMG), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemoryPORepo()
			svc := newTestPOService(repo)
			req := seedSubmittedRequest(t, svc, repo, "u1", tc.input)
			req, err := svc.ApproveManager(context.Background(), poCaller("mgr", capabilities.CapTimeApprover), req.ID)
			require.NoError(t, err)
			require.True(t, req.State.Approved)
			require.Equal(t, tc.wantFully, req.FullyApproved)
			if tc.wantClaim == nil {
				require.Nil(t, req.NextApproverClaim)
			} else {
				require.NotNil(t, req.NextApproverClaim)
				require.Equal(t, *tc.wantClaim, *req.NextApproverClaim)
			}
		})
	}
}

func capPtr(c capabilities.Capability) *capabilities.Capability { return &c }

func TestManagerApprovalGuards(t *testing.T) {
	repo := newMemoryPORepo()
	svc := newTestPOService(repo)
	req := seedSubmittedRequest(t, svc, repo, "u1", requestInput(500, TypeNormal))

	_, err := svc.ApproveManager(context.Background(), poCaller("other", capabilities.CapTimeApprover), req.ID)
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindPermissionDenied})
	_, err = svc.ApproveManager(context.Background(), poCaller("mgr"), req.ID)
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindPermissionDenied})

	_, err = svc.ApproveManager(context.Background(), poCaller("mgr", capabilities.CapTimeApprover), req.ID)
	require.NoError(t, err)
	_, err = svc.ApproveManager(context.Background(), poCaller("mgr", capabilities.CapTimeApprover), req.ID)
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindAlreadyExists})
}

func TestSecondTierApproval(t *testing.T) {
	repo := newMemoryPORepo()
	svc := newTestPOService(repo)
	req := seedSubmittedRequest(t, svc, repo, "u1", requestInput(2500, TypeNormal))

	// Second tier cannot sign before the manager.
	_, err := svc.ApproveTier(context.Background(), poCaller("vp1", capabilities.CapVP), req.ID)
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindFailedPrecondition})

	req, err = svc.ApproveManager(context.Background(), poCaller("mgr", capabilities.CapTimeApprover), req.ID)
	require.NoError(t, err)
	require.NotNil(t, req.NextApproverClaim)

	// Wrong tier is refused; smg does not satisfy a vp claim and vice versa.
	_, err = svc.ApproveTier(context.Background(), poCaller("boss", capabilities.CapSMG), req.ID)
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindPermissionDenied})

	req, err = svc.ApproveTier(context.Background(), poCaller("vp1", capabilities.CapVP), req.ID)
	require.NoError(t, err)
	require.True(t, req.FullyApproved)
	require.Nil(t, req.NextApproverClaim)

	_, err = svc.ApproveTier(context.Background(), poCaller("vp1", capabilities.CapVP), req.ID)
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindAlreadyExists})
}

func TestRejectIsManagerOnlyAndClearsRouting(t *testing.T) {
	repo := newMemoryPORepo()
	svc := newTestPOService(repo)
	req := seedSubmittedRequest(t, svc, repo, "u1", requestInput(2500, TypeNormal))
	_, err := svc.ApproveManager(context.Background(), poCaller("mgr", capabilities.CapTimeApprover), req.ID)
	require.NoError(t, err)

	err = svc.Reject(context.Background(), poCaller("vp1", capabilities.CapVP), req.ID, "duplicate of last month's order")
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindPermissionDenied})

	err = svc.Reject(context.Background(), poCaller("mgr", capabilities.CapTimeApprover), req.ID, "duplicate of last month's order")
	require.NoError(t, err)
	got, err := repo.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	require.True(t, got.State.Rejected)
	require.False(t, got.State.Approved)
	require.Nil(t, got.NextApproverClaim)
	require.False(t, got.FullyApproved)
}

func TestRejectRefusedOnceFullyApproved(t *testing.T) {
	repo := newMemoryPORepo()
	svc := newTestPOService(repo)
	req := seedSubmittedRequest(t, svc, repo, "u1", requestInput(500, TypeNormal))
	_, err := svc.ApproveManager(context.Background(), poCaller("mgr", capabilities.CapTimeApprover), req.ID)
	require.NoError(t, err)

	err = svc.Reject(context.Background(), poCaller("mgr", capabilities.CapTimeApprover), req.ID, "cancel this order please")
	require.EqualError(t, err, "PurchaseOrderRequest is fully approved and awaiting a number")
}

func TestUpdateResetsRouting(t *testing.T) {
	repo := newMemoryPORepo()
	svc := newTestPOService(repo)
	owner := poCaller("u1", capabilities.CapPurchaseOrder)
	req, err := svc.Create(context.Background(), owner, requestInput(2500, TypeNormal))
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), owner, req.ID, requestInput(400, TypeNormal))
	require.NoError(t, err)
	require.Nil(t, updated.NextApproverClaim)
	require.False(t, updated.FullyApproved)
	require.True(t, updated.Total.Equal(decimal.NewFromInt(400)))
}

func TestCancelOrder(t *testing.T) {
	repo := newMemoryPORepo()
	svc := newTestPOService(repo)
	repo.orders["2604-0001"] = PurchaseOrder{
		Number: "2604-0001", RequestID: uuid.New(), UID: "u1", ManagerUID: "mgr",
		Status: StatusActive, IssuedAt: poNow,
	}

	err := svc.CancelOrder(context.Background(), poCaller("stranger"), "2604-0001")
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindPermissionDenied})

	require.NoError(t, svc.CancelOrder(context.Background(), poCaller("mgr"), "2604-0001"))
	got, err := repo.GetOrder(context.Background(), "2604-0001")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, got.Status)
	require.Equal(t, "mgr", got.CancelledUID)
	require.NotNil(t, got.CancelledAt)

	err = svc.CancelOrder(context.Background(), poCaller("vp1", capabilities.CapVP), "2604-0001")
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindAlreadyExists})
}

func TestDraftLifecycle(t *testing.T) {
	repo := newMemoryPORepo()
	svc := newTestPOService(repo)
	owner := poCaller("u1", capabilities.CapPurchaseOrder)
	req, err := svc.Create(context.Background(), owner, requestInput(500, TypeNormal))
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), poCaller("u2"), req.ID, requestInput(600, TypeNormal))
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindPermissionDenied})

	repo.owners["u1"] = Owner{UID: "u1", DisplayName: "U One", ManagerUID: "mgr", ManagerName: "M"}
	_, err = svc.Submit(context.Background(), poCaller("u1"), req.ID)
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), owner, req.ID, requestInput(600, TypeNormal))
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindFailedPrecondition})
	err = svc.Delete(context.Background(), owner, req.ID)
	require.ErrorIs(t, err, &shared.Error{Kind: shared.KindFailedPrecondition})

	require.NoError(t, svc.Recall(context.Background(), poCaller("u1"), req.ID))
	require.NoError(t, svc.Delete(context.Background(), owner, req.ID))
}
