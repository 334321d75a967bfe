package expenses

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crewdesk/crewdesk/internal/workflow"
)

// DocKind is the document kind name used in guard messages and audit logs.
const DocKind = "Expense"

// Expense is one expense claim. Approval and commit are separate
// capability-gated transitions: a manager approves the claim, then a payment
// clerk commits it for payout.
type Expense struct {
	ID              uuid.UUID
	UID             string
	DisplayName     string
	ManagerUID      string
	ManagerName     string
	Date            time.Time
	PaymentType     string
	Total           decimal.Decimal
	Distance        float64
	Description     string
	Vendor          string
	Job             string
	Division        string
	State           workflow.State
	Exported        bool
	RejectionReason string
	RejectorUID     string
	RejectorName    string
	CommitUID       string
	CommitName      string
	CommittedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
