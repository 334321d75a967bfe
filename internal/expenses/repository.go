package expenses

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilters narrows expense listings.
type ListFilters struct {
	UID         string
	ManagerUID  string
	PaymentType string
	Submitted   *bool
	Approved    *bool
	Committed   *bool
	From        *time.Time
	To          *time.Time
}

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetExpense(ctx context.Context, id uuid.UUID) (Expense, error)
	ListExpenses(ctx context.Context, filters ListFilters, limit, offset int) ([]Expense, int, error)
}

// TxRepository exposes the transactional operations each state transition is
// built from. Every transition re-reads inside its own transaction.
type TxRepository interface {
	GetExpense(ctx context.Context, id uuid.UUID) (Expense, error)
	CreateExpense(ctx context.Context, e Expense) error
	SaveExpense(ctx context.Context, e Expense) error
	DeleteExpense(ctx context.Context, id uuid.UUID) error
}
