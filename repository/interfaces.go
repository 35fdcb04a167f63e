package repository

import (
	"context"
	"errors"

	"deliveryService/models"
)

// ErrAlreadyExists is returned when a record is created under an occupied key.
var ErrAlreadyExists = errors.New("already exists")

// Outcome is the decision a conditional write reached inside its transaction.
// Conflicts and missing records are outcomes, not errors: the transaction still commits.
type Outcome int

const (
	// OutcomeApplied means the mutation was written.
	OutcomeApplied Outcome = iota
	// OutcomeUnchanged means the requested state already held and nothing was written.
	OutcomeUnchanged
	// OutcomeNotFound means the order does not exist.
	OutcomeNotFound
	// OutcomeConflict means the actor lacks the required relationship to the order.
	OutcomeConflict
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// AssignResult is the outcome of a conditional assignment together with the
// order as it stands after the transaction (nil when not found).
type AssignResult struct {
	Outcome Outcome
	Order   *models.Order
}

// OrderRepositoryI defines the atomic operations on orders. Every method is a single
// transaction against the backing store.
type OrderRepositoryI interface {
	// Create allocates the next order id and creates the order in one transaction.
	Create(ctx context.Context, customer string, from, to models.Location) (int64, error)
	Get(ctx context.Context, id int64) (*models.Order, error)
	ConditionalAssign(ctx context.Context, id int64, rider string) (AssignResult, error)
	ConditionalDelete(ctx context.Context, id int64, role models.Role, actor string) (Outcome, error)
}

// AssignedIndexI answers which orders are currently tied to an identity.
type AssignedIndexI interface {
	ListAssigned(ctx context.Context, role models.Role, username string) ([]int64, error)
}

// UserRepositoryI defines operations on user accounts.
type UserRepositoryI interface {
	Create(ctx context.Context, u *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}
