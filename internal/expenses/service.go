package expenses

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crewdesk/crewdesk/internal/capabilities"
	"github.com/crewdesk/crewdesk/internal/schema"
	"github.com/crewdesk/crewdesk/internal/shared"
	"github.com/crewdesk/crewdesk/internal/workflow"
)

// Owner carries the directory attributes stamped onto a claim at submit time.
type Owner struct {
	UID         string
	DisplayName string
	ManagerUID  string
	ManagerName string
}

// DirectoryPort resolves a claim owner's manager assignment.
type DirectoryPort interface {
	GetOwner(ctx context.Context, uid string) (Owner, error)
}

// AuditPort records state transitions for later review.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort fences duplicate create requests.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, scope string) error
}

// Service drives the expense workflow: claim CRUD for drafts and the
// submit/approve/reject/commit state machine.
type Service struct {
	repo      RepositoryPort
	directory DirectoryPort
	shapes    *schema.Validator
	audit     AuditPort
	idem      IdempotencyPort
	logger    *slog.Logger
	clock     shared.Clock
}

// NewService constructs the expenses service.
func NewService(repo RepositoryPort, directory DirectoryPort, shapes *schema.Validator, audit AuditPort, idem IdempotencyPort, logger *slog.Logger, clock shared.Clock) *Service {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &Service{repo: repo, directory: directory, shapes: shapes, audit: audit, idem: idem, logger: logger, clock: clock}
}

// ClaimInput carries the caller-editable fields of an expense claim.
type ClaimInput struct {
	Date        time.Time
	PaymentType string
	Total       decimal.Decimal
	Distance    float64
	Description string
	Vendor      string
	Job         string
	Division    string
}

// Create records a new draft claim for the caller. A non-empty idempotency
// key makes the call retry-safe: a repeated key returns AlreadyExists without
// writing a second claim.
func (s *Service) Create(ctx context.Context, caller capabilities.Caller, input ClaimInput, idemKey string) (Expense, error) {
	if err := s.checkShape(input); err != nil {
		return Expense{}, err
	}
	if idemKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, idemKey, "expense-create"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Expense{}, shared.AlreadyExistsf("expense claim already created for this request")
			}
			return Expense{}, err
		}
	}
	now := s.clock()
	claim := Expense{
		ID:          uuid.New(),
		UID:         caller.UID,
		DisplayName: caller.DisplayName,
		Date:        input.Date,
		PaymentType: input.PaymentType,
		Total:       input.Total,
		Distance:    input.Distance,
		Description: input.Description,
		Vendor:      input.Vendor,
		Job:         input.Job,
		Division:    input.Division,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.CreateExpense(ctx, claim)
	})
	if err != nil {
		return Expense{}, err
	}
	s.recordAudit(ctx, caller, "EXPENSE_CREATE", claim.ID.String(), map[string]any{"paymentType": claim.PaymentType})
	return claim, nil
}

// Update rewrites a draft claim owned by the caller.
func (s *Service) Update(ctx context.Context, caller capabilities.Caller, id uuid.UUID, input ClaimInput) (Expense, error) {
	if err := s.checkShape(input); err != nil {
		return Expense{}, err
	}
	var result Expense
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		claim, err := tx.GetExpense(ctx, id)
		if err != nil {
			return err
		}
		if claim.UID != caller.UID {
			return shared.PermissionDeniedf("an Expense can only be changed by its owner")
		}
		if !claim.State.Draft() {
			return shared.FailedPreconditionf("Expense has been submitted; recall it before editing")
		}
		claim.Date = input.Date
		claim.PaymentType = input.PaymentType
		claim.Total = input.Total
		claim.Distance = input.Distance
		claim.Description = input.Description
		claim.Vendor = input.Vendor
		claim.Job = input.Job
		claim.Division = input.Division
		claim.UpdatedAt = s.clock()
		result = claim
		return tx.SaveExpense(ctx, claim)
	})
	if err != nil {
		return Expense{}, err
	}
	return result, nil
}

// Delete removes a draft claim owned by the caller.
func (s *Service) Delete(ctx context.Context, caller capabilities.Caller, id uuid.UUID) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		claim, err := tx.GetExpense(ctx, id)
		if err != nil {
			return err
		}
		if claim.UID != caller.UID {
			return shared.PermissionDeniedf("an Expense can only be deleted by its owner")
		}
		if err := workflow.CanDelete(DocKind, claim.State); err != nil {
			return err
		}
		return tx.DeleteExpense(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, caller, "EXPENSE_DELETE", id.String(), nil)
	return nil
}

// Submit sends a draft claim to the owner's manager for approval. The
// manager assignment is stamped from the directory at submit time, and
// resubmitting a rejected claim clears the rejection.
func (s *Service) Submit(ctx context.Context, caller capabilities.Caller, id uuid.UUID) (Expense, error) {
	owner, err := s.directory.GetOwner(ctx, caller.UID)
	if err != nil {
		return Expense{}, err
	}
	if owner.ManagerUID == "" {
		return Expense{}, shared.FailedPreconditionf("Profile is missing a managerUid")
	}
	var result Expense
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		claim, err := tx.GetExpense(ctx, id)
		if err != nil {
			return err
		}
		if claim.UID != caller.UID {
			return shared.PermissionDeniedf("an Expense can only be submitted by its owner")
		}
		if err := workflow.CanSubmit(DocKind, claim.State); err != nil {
			return err
		}
		claim.ManagerUID = owner.ManagerUID
		claim.ManagerName = owner.ManagerName
		claim.DisplayName = owner.DisplayName
		claim.State = workflow.ApplySubmit(claim.State)
		claim.RejectionReason = ""
		claim.RejectorUID = ""
		claim.RejectorName = ""
		claim.UpdatedAt = s.clock()
		result = claim
		return tx.SaveExpense(ctx, claim)
	})
	if err != nil {
		return Expense{}, err
	}
	s.recordAudit(ctx, caller, "EXPENSE_SUBMIT", id.String(), nil)
	return result, nil
}

// Recall returns a submitted, unapproved claim to the owner.
func (s *Service) Recall(ctx context.Context, caller capabilities.Caller, id uuid.UUID) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		claim, err := tx.GetExpense(ctx, id)
		if err != nil {
			return err
		}
		if claim.UID != caller.UID {
			return shared.PermissionDeniedf("an Expense can only be recalled by its owner")
		}
		if err := workflow.CanRecall(DocKind, claim.State); err != nil {
			return err
		}
		claim.State = workflow.ApplyRecall(claim.State)
		claim.UpdatedAt = s.clock()
		return tx.SaveExpense(ctx, claim)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, caller, "EXPENSE_RECALL", id.String(), nil)
	return nil
}

// Approve marks a submitted claim approved. First-tier approval requires the
// time-approver capability and the claim's assigned manager; the second-tier
// expense-approver capability approves regardless of assignment.
func (s *Service) Approve(ctx context.Context, caller capabilities.Caller, id uuid.UUID) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		claim, err := tx.GetExpense(ctx, id)
		if err != nil {
			return err
		}
		if !caller.Caps.Has(capabilities.CapExpenseApprover) {
			if !caller.Caps.Has(capabilities.CapTimeApprover) || claim.ManagerUID != caller.UID {
				return shared.PermissionDeniedf("only the assigned manager can approve this Expense")
			}
		}
		if err := workflow.CanApprove(DocKind, claim.State); err != nil {
			return err
		}
		claim.State = workflow.ApplyApprove(claim.State)
		claim.UpdatedAt = s.clock()
		return tx.SaveExpense(ctx, claim)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, caller, "EXPENSE_APPROVE", id.String(), nil)
	return nil
}

// Reject rejects a submitted or approved claim with a reason. Only the
// assigned manager may reject.
func (s *Service) Reject(ctx context.Context, caller capabilities.Caller, id uuid.UUID, reason string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		claim, err := tx.GetExpense(ctx, id)
		if err != nil {
			return err
		}
		if !caller.Caps.Has(capabilities.CapTimeApprover) || claim.ManagerUID != caller.UID {
			return shared.PermissionDeniedf("only the assigned manager can reject this Expense")
		}
		if err := workflow.CanReject(DocKind, claim.State, reason); err != nil {
			return err
		}
		if caller.DisplayName == "" {
			return shared.InvalidArgumentf("rejector name is required")
		}
		claim.State = workflow.ApplyReject(claim.State)
		claim.RejectionReason = reason
		claim.RejectorUID = caller.UID
		claim.RejectorName = caller.DisplayName
		claim.UpdatedAt = s.clock()
		return tx.SaveExpense(ctx, claim)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, caller, "EXPENSE_REJECT", id.String(), map[string]any{"reason": reason})
	return nil
}

// Commit books an approved claim for payout. The caller needs the commit
// capability, commits under their own uid only, and cannot commit a claim
// whose transaction date lies in the future.
func (s *Service) Commit(ctx context.Context, caller capabilities.Caller, id uuid.UUID) error {
	if !caller.Caps.Has(capabilities.CapCommit) {
		return shared.PermissionDeniedf("caller cannot commit expenses")
	}
	now := s.clock()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		claim, err := tx.GetExpense(ctx, id)
		if err != nil {
			return err
		}
		if err := workflow.CanCommit(DocKind, claim.State); err != nil {
			return err
		}
		if claim.Date.After(now) {
			return shared.FailedPreconditionf("Expense is dated in the future and cannot be committed")
		}
		claim.State = workflow.ApplyCommit(claim.State)
		claim.CommitUID = caller.UID
		claim.CommitName = caller.DisplayName
		claim.CommittedAt = &now
		claim.UpdatedAt = now
		return tx.SaveExpense(ctx, claim)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, caller, "EXPENSE_COMMIT", id.String(), nil)
	return nil
}

// Get returns one claim, restricted to its owner, manager and report holders.
func (s *Service) Get(ctx context.Context, caller capabilities.Caller, id uuid.UUID) (Expense, error) {
	claim, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return Expense{}, err
	}
	if claim.UID != caller.UID && claim.ManagerUID != caller.UID &&
		!caller.Caps.HasAny(capabilities.CapReport, capabilities.CapCommit, capabilities.CapAdmin) {
		return Expense{}, shared.PermissionDeniedf("caller cannot view this Expense")
	}
	return claim, nil
}

// List returns claims visible to the caller.
func (s *Service) List(ctx context.Context, caller capabilities.Caller, filters ListFilters, limit, offset int) ([]Expense, int, error) {
	if !caller.Caps.HasAny(capabilities.CapReport, capabilities.CapCommit, capabilities.CapAdmin) {
		if filters.ManagerUID == caller.UID && caller.Caps.Has(capabilities.CapTimeApprover) {
			filters.UID = ""
		} else {
			filters.UID = caller.UID
			filters.ManagerUID = ""
		}
	}
	return s.repo.ListExpenses(ctx, filters, limit, offset)
}

func (s *Service) checkShape(input ClaimInput) error {
	return s.shapes.Expense(schema.ExpenseShape{
		PaymentType: input.PaymentType,
		Date:        input.Date,
		Total:       input.Total,
		Distance:    input.Distance,
		Description: input.Description,
		Vendor:      input.Vendor,
	})
}

func (s *Service) recordAudit(ctx context.Context, caller capabilities.Caller, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{ActorUID: caller.UID, Action: action, Entity: "expense", EntityID: entityID, Meta: meta, At: s.clock()}
	if err := s.audit.Record(ctx, log); err != nil && s.logger != nil {
		s.logger.Error("record audit", slog.String("action", action), slog.Any("error", err))
	}
}
