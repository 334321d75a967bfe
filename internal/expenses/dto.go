package expenses

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClaimRequest is the JSON payload for creating or updating an expense claim.
type ClaimRequest struct {
	Date        string          `json:"date" validate:"required,datetime=2006-01-02"`
	PaymentType string          `json:"paymentType" validate:"required"`
	Total       decimal.Decimal `json:"total"`
	Distance    float64         `json:"distance"`
	Description string          `json:"description" validate:"required"`
	Vendor      string          `json:"vendor,omitempty"`
	Job         string          `json:"job,omitempty"`
	Division    string          `json:"division,omitempty"`
}

// RejectRequest carries the rejection reason.
type RejectRequest struct {
	RejectionReason string `json:"rejectionReason" validate:"required"`
}

// ClaimResponse mirrors an expense claim on the wire.
type ClaimResponse struct {
	ID              string          `json:"id"`
	UID             string          `json:"uid"`
	DisplayName     string          `json:"displayName,omitempty"`
	ManagerUID      string          `json:"managerUid,omitempty"`
	ManagerName     string          `json:"managerName,omitempty"`
	Date            string          `json:"date"`
	PaymentType     string          `json:"paymentType"`
	Total           decimal.Decimal `json:"total"`
	Distance        float64         `json:"distance,omitempty"`
	Description     string          `json:"description"`
	Vendor          string          `json:"vendor,omitempty"`
	Job             string          `json:"job,omitempty"`
	Division        string          `json:"division,omitempty"`
	Submitted       bool            `json:"submitted"`
	Approved        bool            `json:"approved"`
	Rejected        bool            `json:"rejected"`
	Committed       bool            `json:"committed"`
	Exported        bool            `json:"exported"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
	RejectorUID     string          `json:"rejectorId,omitempty"`
	RejectorName    string          `json:"rejectorName,omitempty"`
	CommitUID       string          `json:"commitUid,omitempty"`
	CommitName      string          `json:"commitName,omitempty"`
	CommittedAt     *time.Time      `json:"committedAt,omitempty"`
}

// NewClaimResponse converts a domain claim to its wire form.
func NewClaimResponse(e Expense) ClaimResponse {
	return ClaimResponse{
		ID:              e.ID.String(),
		UID:             e.UID,
		DisplayName:     e.DisplayName,
		ManagerUID:      e.ManagerUID,
		ManagerName:     e.ManagerName,
		Date:            e.Date.Format("2006-01-02"),
		PaymentType:     e.PaymentType,
		Total:           e.Total,
		Distance:        e.Distance,
		Description:     e.Description,
		Vendor:          e.Vendor,
		Job:             e.Job,
		Division:        e.Division,
		Submitted:       e.State.Submitted,
		Approved:        e.State.Approved,
		Rejected:        e.State.Rejected,
		Committed:       e.State.Committed,
		Exported:        e.Exported,
		RejectionReason: e.RejectionReason,
		RejectorUID:     e.RejectorUID,
		RejectorName:    e.RejectorName,
		CommitUID:       e.CommitUID,
		CommitName:      e.CommitName,
		CommittedAt:     e.CommittedAt,
	}
}
