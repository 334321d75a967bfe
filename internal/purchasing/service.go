package purchasing

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crewdesk/crewdesk/internal/capabilities"
	"github.com/crewdesk/crewdesk/internal/schema"
	"github.com/crewdesk/crewdesk/internal/shared"
	"github.com/crewdesk/crewdesk/internal/workflow"
)

// Limits are the approval routing thresholds. A request whose total reaches
// Manager needs vice-president sign-off, and one reaching VP needs senior
// management. Recurring requests always route to senior management.
type Limits struct {
	Manager decimal.Decimal
	VP      decimal.Decimal
}

// Owner carries the directory attributes stamped onto a request at submit
// time.
type Owner struct {
	UID         string
	DisplayName string
	ManagerUID  string
	ManagerName string
}

// DirectoryPort resolves a request owner's manager assignment.
type DirectoryPort interface {
	GetOwner(ctx context.Context, uid string) (Owner, error)
}

// AuditPort records state transitions for later review.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service drives the purchase order request workflow: draft CRUD, the tiered
// approval chain and cancellation of issued orders.
type Service struct {
	repo      RepositoryPort
	directory DirectoryPort
	shapes    *schema.Validator
	limits    Limits
	audit     AuditPort
	logger    *slog.Logger
	clock     shared.Clock
}

// NewService constructs the purchasing service.
func NewService(repo RepositoryPort, directory DirectoryPort, shapes *schema.Validator, limits Limits, audit AuditPort, logger *slog.Logger, clock shared.Clock) *Service {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &Service{repo: repo, directory: directory, shapes: shapes, limits: limits, audit: audit, logger: logger, clock: clock}
}

// RequestInput carries the caller-editable fields of a purchase order
// request.
type RequestInput struct {
	Description string
	VendorName  string
	Total       decimal.Decimal
	Type        string
	Job         string
	Division    string
}

// Create records a new draft request for the caller.
func (s *Service) Create(ctx context.Context, caller capabilities.Caller, input RequestInput) (PurchaseOrderRequest, error) {
	if !caller.Caps.Has(capabilities.CapPurchaseOrder) {
		return PurchaseOrderRequest{}, shared.PermissionDeniedf("caller cannot request purchase orders")
	}
	if err := s.checkShape(input); err != nil {
		return PurchaseOrderRequest{}, err
	}
	now := s.clock()
	req := PurchaseOrderRequest{
		ID:          uuid.New(),
		UID:         caller.UID,
		DisplayName: caller.DisplayName,
		Description: input.Description,
		VendorName:  input.VendorName,
		Total:       input.Total,
		Type:        input.Type,
		Job:         input.Job,
		Division:    input.Division,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.CreateRequest(ctx, req)
	})
	if err != nil {
		return PurchaseOrderRequest{}, err
	}
	s.recordAudit(ctx, caller, "PO_REQUEST_CREATE", req.ID.String(), map[string]any{"total": req.Total})
	return req, nil
}

// Update rewrites a draft request owned by the caller. Editing resets any
// memoized routing so the limits are re-evaluated against the new total.
func (s *Service) Update(ctx context.Context, caller capabilities.Caller, id uuid.UUID, input RequestInput) (PurchaseOrderRequest, error) {
	if err := s.checkShape(input); err != nil {
		return PurchaseOrderRequest{}, err
	}
	var result PurchaseOrderRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if req.UID != caller.UID {
			return shared.PermissionDeniedf("a PurchaseOrderRequest can only be changed by its owner")
		}
		if !req.State.Draft() {
			return shared.FailedPreconditionf("PurchaseOrderRequest has been submitted; recall it before editing")
		}
		req.Description = input.Description
		req.VendorName = input.VendorName
		req.Total = input.Total
		req.Type = input.Type
		req.Job = input.Job
		req.Division = input.Division
		req.NextApproverClaim = nil
		req.FullyApproved = false
		req.UpdatedAt = s.clock()
		result = req
		return tx.SaveRequest(ctx, req)
	})
	if err != nil {
		return PurchaseOrderRequest{}, err
	}
	return result, nil
}

// Delete removes a draft request owned by the caller.
func (s *Service) Delete(ctx context.Context, caller capabilities.Caller, id uuid.UUID) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if req.UID != caller.UID {
			return shared.PermissionDeniedf("a PurchaseOrderRequest can only be deleted by its owner")
		}
		if err := workflow.CanDelete(DocKind, req.State); err != nil {
			return err
		}
		return tx.DeleteRequest(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, caller, "PO_REQUEST_DELETE", id.String(), nil)
	return nil
}

// Submit sends a draft request to the owner's manager.
func (s *Service) Submit(ctx context.Context, caller capabilities.Caller, id uuid.UUID) (PurchaseOrderRequest, error) {
	owner, err := s.directory.GetOwner(ctx, caller.UID)
	if err != nil {
		return PurchaseOrderRequest{}, err
	}
	if owner.ManagerUID == "" {
		return PurchaseOrderRequest{}, shared.FailedPreconditionf("Profile is missing a managerUid")
	}
	var result PurchaseOrderRequest
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if req.UID != caller.UID {
			return shared.PermissionDeniedf("a PurchaseOrderRequest can only be submitted by its owner")
		}
		if err := workflow.CanSubmit(DocKind, req.State); err != nil {
			return err
		}
		req.ManagerUID = owner.ManagerUID
		req.ManagerName = owner.ManagerName
		req.DisplayName = owner.DisplayName
		req.State = workflow.ApplySubmit(req.State)
		req.RejectionReason = ""
		req.RejectorUID = ""
		req.RejectorName = ""
		req.UpdatedAt = s.clock()
		result = req
		return tx.SaveRequest(ctx, req)
	})
	if err != nil {
		return PurchaseOrderRequest{}, err
	}
	s.recordAudit(ctx, caller, "PO_REQUEST_SUBMIT", id.String(), nil)
	return result, nil
}

// Recall returns a submitted, unapproved request to the owner.
func (s *Service) Recall(ctx context.Context, caller capabilities.Caller, id uuid.UUID) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if req.UID != caller.UID {
			return shared.PermissionDeniedf("a PurchaseOrderRequest can only be recalled by its owner")
		}
		if err := workflow.CanRecall(DocKind, req.State); err != nil {
			return err
		}
		req.State = workflow.ApplyRecall(req.State)
		req.UpdatedAt = s.clock()
		return tx.SaveRequest(ctx, req)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, caller, "PO_REQUEST_RECALL", id.String(), nil)
	return nil
}

// routeForTotal decides who signs next after the manager tier. Totals under
// the manager limit need nobody else; under the VP limit the vice-president;
// everything else, and every recurring request, senior management.
func (s *Service) routeForTotal(req PurchaseOrderRequest) *capabilities.Capability {
	if req.Type == TypeRecurring || req.Total.GreaterThanOrEqual(s.limits.VP) {
		c := capabilities.CapSMG
		return &c
	}
	if req.Total.GreaterThanOrEqual(s.limits.Manager) {
		c := capabilities.CapVP
		return &c
	}
	return nil
}

// ApproveManager is the first approval tier: the assigned manager signs and
// the routing decision is memoized on the request. Small requests become
// fully approved immediately; larger ones record which capability must sign
// next.
func (s *Service) ApproveManager(ctx context.Context, caller capabilities.Caller, id uuid.UUID) (PurchaseOrderRequest, error) {
	if !caller.Caps.Has(capabilities.CapTimeApprover) {
		return PurchaseOrderRequest{}, shared.PermissionDeniedf("caller cannot approve purchase order requests")
	}
	var result PurchaseOrderRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if req.ManagerUID != caller.UID {
			return shared.PermissionDeniedf("only the assigned manager can approve this PurchaseOrderRequest")
		}
		if err := workflow.CanApprove(DocKind, req.State); err != nil {
			return err
		}
		req.State = workflow.ApplyApprove(req.State)
		req.NextApproverClaim = s.routeForTotal(req)
		req.FullyApproved = req.NextApproverClaim == nil
		req.UpdatedAt = s.clock()
		result = req
		return tx.SaveRequest(ctx, req)
	})
	if err != nil {
		return PurchaseOrderRequest{}, err
	}
	s.recordAudit(ctx, caller, "PO_REQUEST_APPROVE", id.String(), map[string]any{"tier": "manager"})
	return result, nil
}

// ApproveTier is the second approval tier: the holder of the memoized claim
// capability signs and the request becomes fully approved, eligible for
// number allocation.
func (s *Service) ApproveTier(ctx context.Context, caller capabilities.Caller, id uuid.UUID) (PurchaseOrderRequest, error) {
	var result PurchaseOrderRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if req.FullyApproved {
			return shared.AlreadyExistsf("PurchaseOrderRequest is already fully approved")
		}
		if req.NextApproverClaim == nil {
			return shared.FailedPreconditionf("PurchaseOrderRequest is waiting on its manager approval")
		}
		if !caller.Caps.Has(*req.NextApproverClaim) {
			return shared.PermissionDeniedf("PurchaseOrderRequest requires the %s approval tier", *req.NextApproverClaim)
		}
		if req.State.Rejected {
			return shared.FailedPreconditionf("PurchaseOrderRequest has been rejected")
		}
		req.NextApproverClaim = nil
		req.FullyApproved = true
		req.UpdatedAt = s.clock()
		result = req
		return tx.SaveRequest(ctx, req)
	})
	if err != nil {
		return PurchaseOrderRequest{}, err
	}
	s.recordAudit(ctx, caller, "PO_REQUEST_APPROVE", id.String(), map[string]any{"tier": "senior"})
	return result, nil
}

// Reject rejects a submitted or approved request with a reason. Only the
// assigned manager may reject; a rejection revokes any earlier approvals and
// clears the routing.
func (s *Service) Reject(ctx context.Context, caller capabilities.Caller, id uuid.UUID, reason string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if !caller.Caps.Has(capabilities.CapTimeApprover) || req.ManagerUID != caller.UID {
			return shared.PermissionDeniedf("only the assigned manager can reject this PurchaseOrderRequest")
		}
		if req.FullyApproved {
			return shared.FailedPreconditionf("PurchaseOrderRequest is fully approved and awaiting a number")
		}
		if err := workflow.CanReject(DocKind, req.State, reason); err != nil {
			return err
		}
		if caller.DisplayName == "" {
			return shared.InvalidArgumentf("rejector name is required")
		}
		req.State = workflow.ApplyReject(req.State)
		req.NextApproverClaim = nil
		req.RejectionReason = reason
		req.RejectorUID = caller.UID
		req.RejectorName = caller.DisplayName
		req.UpdatedAt = s.clock()
		return tx.SaveRequest(ctx, req)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, caller, "PO_REQUEST_REJECT", id.String(), map[string]any{"reason": reason})
	return nil
}

// CancelOrder marks an issued purchase order cancelled. The order keeps its
// number: cancellation never frees a number for reuse. Allowed for the
// vice-president and senior management tiers and the order's own manager.
func (s *Service) CancelOrder(ctx context.Context, caller capabilities.Caller, number string) error {
	now := s.clock()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetOrderForUpdate(ctx, number)
		if err != nil {
			return err
		}
		if !caller.Caps.HasAny(capabilities.CapVP, capabilities.CapSMG) && po.ManagerUID != caller.UID {
			return shared.PermissionDeniedf("caller cannot cancel this PurchaseOrder")
		}
		if po.Status == StatusCancelled {
			return shared.AlreadyExistsf("PurchaseOrder %s is already cancelled", number)
		}
		po.Status = StatusCancelled
		po.CancelledAt = &now
		po.CancelledUID = caller.UID
		po.CancelledName = caller.DisplayName
		return tx.SaveOrder(ctx, po)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, caller, "PO_CANCEL", number, nil)
	return nil
}

// GetRequest returns one request, restricted to its owner, manager and the
// senior tiers.
func (s *Service) GetRequest(ctx context.Context, caller capabilities.Caller, id uuid.UUID) (PurchaseOrderRequest, error) {
	req, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return PurchaseOrderRequest{}, err
	}
	if req.UID != caller.UID && req.ManagerUID != caller.UID &&
		!caller.Caps.HasAny(capabilities.CapVP, capabilities.CapSMG, capabilities.CapReport, capabilities.CapAdmin) {
		return PurchaseOrderRequest{}, shared.PermissionDeniedf("caller cannot view this PurchaseOrderRequest")
	}
	return req, nil
}

// ListRequests returns requests visible to the caller.
func (s *Service) ListRequests(ctx context.Context, caller capabilities.Caller, filters RequestFilters, limit, offset int) ([]PurchaseOrderRequest, int, error) {
	if !caller.Caps.HasAny(capabilities.CapVP, capabilities.CapSMG, capabilities.CapReport, capabilities.CapAdmin) {
		if filters.ManagerUID == caller.UID && caller.Caps.Has(capabilities.CapTimeApprover) {
			filters.UID = ""
		} else {
			filters.UID = caller.UID
			filters.ManagerUID = ""
		}
	}
	return s.repo.ListRequests(ctx, filters, limit, offset)
}

// GetOrder returns one issued purchase order by number.
func (s *Service) GetOrder(ctx context.Context, caller capabilities.Caller, number string) (PurchaseOrder, error) {
	po, err := s.repo.GetOrder(ctx, number)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if po.UID != caller.UID && po.ManagerUID != caller.UID &&
		!caller.Caps.HasAny(capabilities.CapVP, capabilities.CapSMG, capabilities.CapReport, capabilities.CapAdmin) {
		return PurchaseOrder{}, shared.PermissionDeniedf("caller cannot view this PurchaseOrder")
	}
	return po, nil
}

// ListOrders returns issued purchase orders visible to the caller.
func (s *Service) ListOrders(ctx context.Context, caller capabilities.Caller, filters OrderFilters, limit, offset int) ([]PurchaseOrder, int, error) {
	if !caller.Caps.HasAny(capabilities.CapVP, capabilities.CapSMG, capabilities.CapReport, capabilities.CapAdmin) {
		filters.UID = caller.UID
	}
	return s.repo.ListOrders(ctx, filters, limit, offset)
}

func (s *Service) checkShape(input RequestInput) error {
	return s.shapes.PurchaseOrderRequest(schema.PurchaseOrderRequestShape{
		Description: input.Description,
		VendorName:  input.VendorName,
		Total:       input.Total,
		Type:        input.Type,
	})
}

func (s *Service) recordAudit(ctx context.Context, caller capabilities.Caller, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{ActorUID: caller.UID, Action: action, Entity: "purchasing", EntityID: entityID, Meta: meta, At: s.clock()}
	if err := s.audit.Record(ctx, log); err != nil && s.logger != nil {
		s.logger.Error("record audit", slog.String("action", action), slog.Any("error", err))
	}
}
