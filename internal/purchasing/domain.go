package purchasing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crewdesk/crewdesk/internal/capabilities"
	"github.com/crewdesk/crewdesk/internal/workflow"
)

// DocKind is the document kind name used in guard messages and audit logs.
const DocKind = "PurchaseOrderRequest"

// Request types.
const (
	TypeNormal    = "normal"
	TypeRecurring = "recurring"
)

// Purchase order statuses.
const (
	StatusActive    = "Active"
	StatusCancelled = "Cancelled"
)

// PurchaseOrderRequest is an unnumbered purchase authorization working its way
// through the approval tiers. Once fully approved it waits for the allocator
// to claim a number and migrate it to the purchase_orders table.
type PurchaseOrderRequest struct {
	ID                uuid.UUID
	UID               string
	DisplayName       string
	ManagerUID        string
	ManagerName       string
	Description       string
	VendorName        string
	Total             decimal.Decimal
	Type              string
	Job               string
	Division          string
	State             workflow.State
	NextApproverClaim *capabilities.Capability
	FullyApproved     bool
	RejectionReason   string
	RejectorUID       string
	RejectorName      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PurchaseOrder is a numbered, issued purchase order. The number is the
// natural key: "YYMM-NNNN", period-scoped and allocated exactly once.
type PurchaseOrder struct {
	Number        string
	RequestID     uuid.UUID
	UID           string
	DisplayName   string
	ManagerUID    string
	ManagerName   string
	Description   string
	VendorName    string
	Total         decimal.Decimal
	Type          string
	Job           string
	Division      string
	Status        string
	IssuedAt      time.Time
	CancelledAt   *time.Time
	CancelledUID  string
	CancelledName string
}
