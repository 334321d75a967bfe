package purchasing

import (
	"time"

	"github.com/shopspring/decimal"
)

// RequestRequest is the JSON payload for creating or updating a purchase
// order request.
type RequestRequest struct {
	Description string          `json:"description" validate:"required"`
	VendorName  string          `json:"vendorName" validate:"required"`
	Total       decimal.Decimal `json:"total"`
	Type        string          `json:"type" validate:"required,oneof=normal recurring"`
	Job         string          `json:"job,omitempty"`
	Division    string          `json:"division,omitempty"`
}

// RejectRequest carries the rejection reason.
type RejectRequest struct {
	RejectionReason string `json:"rejectionReason" validate:"required"`
}

// RequestResponse mirrors a purchase order request on the wire.
type RequestResponse struct {
	ID                string          `json:"id"`
	UID               string          `json:"uid"`
	DisplayName       string          `json:"displayName,omitempty"`
	ManagerUID        string          `json:"managerUid,omitempty"`
	ManagerName       string          `json:"managerName,omitempty"`
	Description       string          `json:"description"`
	VendorName        string          `json:"vendorName"`
	Total             decimal.Decimal `json:"total"`
	Type              string          `json:"type"`
	Job               string          `json:"job,omitempty"`
	Division          string          `json:"division,omitempty"`
	Submitted         bool            `json:"submitted"`
	Approved          bool            `json:"approved"`
	Rejected          bool            `json:"rejected"`
	NextApproverClaim string          `json:"nextApproverClaim,omitempty"`
	FullyApproved     bool            `json:"fullyApproved"`
	RejectionReason   string          `json:"rejectionReason,omitempty"`
	RejectorUID       string          `json:"rejectorId,omitempty"`
	RejectorName      string          `json:"rejectorName,omitempty"`
}

// NewRequestResponse converts a domain request to its wire form.
func NewRequestResponse(req PurchaseOrderRequest) RequestResponse {
	out := RequestResponse{
		ID:              req.ID.String(),
		UID:             req.UID,
		DisplayName:     req.DisplayName,
		ManagerUID:      req.ManagerUID,
		ManagerName:     req.ManagerName,
		Description:     req.Description,
		VendorName:      req.VendorName,
		Total:           req.Total,
		Type:            req.Type,
		Job:             req.Job,
		Division:        req.Division,
		Submitted:       req.State.Submitted,
		Approved:        req.State.Approved,
		Rejected:        req.State.Rejected,
		FullyApproved:   req.FullyApproved,
		RejectionReason: req.RejectionReason,
		RejectorUID:     req.RejectorUID,
		RejectorName:    req.RejectorName,
	}
	if req.NextApproverClaim != nil {
		out.NextApproverClaim = string(*req.NextApproverClaim)
	}
	return out
}

// OrderResponse mirrors an issued purchase order on the wire.
type OrderResponse struct {
	Number        string          `json:"number"`
	RequestID     string          `json:"requestId"`
	UID           string          `json:"uid"`
	DisplayName   string          `json:"displayName,omitempty"`
	ManagerUID    string          `json:"managerUid,omitempty"`
	ManagerName   string          `json:"managerName,omitempty"`
	Description   string          `json:"description"`
	VendorName    string          `json:"vendorName"`
	Total         decimal.Decimal `json:"total"`
	Type          string          `json:"type"`
	Job           string          `json:"job,omitempty"`
	Division      string          `json:"division,omitempty"`
	Status        string          `json:"status"`
	IssuedAt      time.Time       `json:"issuedAt"`
	CancelledAt   *time.Time      `json:"cancelledAt,omitempty"`
	CancelledUID  string          `json:"cancelledUid,omitempty"`
	CancelledName string          `json:"cancelledName,omitempty"`
}

// NewOrderResponse converts a domain order to its wire form.
func NewOrderResponse(po PurchaseOrder) OrderResponse {
	return OrderResponse{
		Number:        po.Number,
		RequestID:     po.RequestID.String(),
		UID:           po.UID,
		DisplayName:   po.DisplayName,
		ManagerUID:    po.ManagerUID,
		ManagerName:   po.ManagerName,
		Description:   po.Description,
		VendorName:    po.VendorName,
		Total:         po.Total,
		Type:          po.Type,
		Job:           po.Job,
		Division:      po.Division,
		Status:        po.Status,
		IssuedAt:      po.IssuedAt,
		CancelledAt:   po.CancelledAt,
		CancelledUID:  po.CancelledUID,
		CancelledName: po.CancelledName,
	}
}
