package purchasing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// RequestFilters narrows purchase order request listings.
type RequestFilters struct {
	UID           string
	ManagerUID    string
	Type          string
	Submitted     *bool
	FullyApproved *bool
}

// OrderFilters narrows issued purchase order listings.
type OrderFilters struct {
	UID    string
	Status string
	Prefix string
}

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetRequest(ctx context.Context, id uuid.UUID) (PurchaseOrderRequest, error)
	ListRequests(ctx context.Context, filters RequestFilters, limit, offset int) ([]PurchaseOrderRequest, int, error)
	GetOrder(ctx context.Context, number string) (PurchaseOrder, error)
	ListOrders(ctx context.Context, filters OrderFilters, limit, offset int) ([]PurchaseOrder, int, error)
}

// TxRepository exposes the transactional operations each state transition is
// built from.
type TxRepository interface {
	GetRequest(ctx context.Context, id uuid.UUID) (PurchaseOrderRequest, error)
	CreateRequest(ctx context.Context, req PurchaseOrderRequest) error
	SaveRequest(ctx context.Context, req PurchaseOrderRequest) error
	DeleteRequest(ctx context.Context, id uuid.UUID) error
	GetOrderForUpdate(ctx context.Context, number string) (PurchaseOrder, error)
	SaveOrder(ctx context.Context, po PurchaseOrder) error
}

// AllocatorPort is the narrow storage surface the number allocator runs on.
// AssignNext performs the whole claim in one transaction: verify the number is
// free, pick the fully-approved unnumbered request with the oldest creation
// time, insert the numbered order and delete the source request.
type AllocatorPort interface {
	CountUnnumbered(ctx context.Context) (int, error)
	MaxNumberForPrefix(ctx context.Context, prefix, nextPrefix string) (string, error)
	AssignNext(ctx context.Context, number string, stamp time.Time) error
}

// ErrNoUnnumbered tells the allocator loop there is nothing left to claim.
var ErrNoUnnumbered = errors.New("no fully-approved unnumbered requests")

// ErrNumberTaken tells the allocator loop a candidate number lost the race;
// the loop skips it and moves on, leaving a permanent hole in the sequence.
var ErrNumberTaken = errors.New("purchase order number already taken")
