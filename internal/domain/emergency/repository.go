package emergency

import (
	"context"

	"github.com/google/uuid"
)

// RequestRepository defines the persistence contract for emergency requests.
type RequestRepository interface {
	// FindByID retrieves a request by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Request, error)

	// List retrieves requests newest first, optionally filtered by status.
	List(ctx context.Context, status RequestStatus, page, limit int) ([]*Request, int64, error)

	// CountByStatus returns request counts grouped by status.
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new request.
	Save(ctx context.Context, req *Request) error

	// Update persists changes with optimistic locking on version.
	Update(ctx context.Context, req *Request) error
}
