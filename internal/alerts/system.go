package alerts

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/safestack/internal/policies"
)

// System defines the public contract for alert ledger operations.
type System interface {
	Handler() *Handler

	// List returns alerts matching filters, newest first, capped at limit.
	List(ctx context.Context, filters Filters, limit int) ([]Alert, error)
	Find(ctx context.Context, id uuid.UUID) (*Alert, error)
	Create(ctx context.Context, cmd CreateCommand) (*Alert, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// SetAmendedImages replaces the amended image references of an alert.
	SetAmendedImages(ctx context.Context, id uuid.UUID, urls []string) error
	Stats(ctx context.Context) (*Stats, error)
}

// PolicyResolver looks up the policy an alert is raised against.
type PolicyResolver interface {
	Find(ctx context.Context, id int) (*policies.Policy, error)
}
