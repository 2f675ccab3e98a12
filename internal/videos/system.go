package videos

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/safestack/pkg/pagination"
)

// System defines the public contract for video segment operations.
type System interface {
	Handler() *Handler

	List(ctx context.Context, page pagination.PageRequest) (*pagination.PageResult[Video], error)
	Find(ctx context.Context, id uuid.UUID) (*Video, error)
	// Create uploads the segment and records it. The blob is removed
	// again if the insert fails.
	Create(ctx context.Context, cmd CreateCommand) (*Video, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int, error)
}
