package emergency

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/emergency-vehicle-system/service-dispatch/internal/common/domain"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/location"
)

const requestNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Request is the aggregate root for a reported emergency.
type Request struct {
	id            uuid.UUID
	requestNumber string
	emergencyType Type
	location      location.Point
	address       string
	description   string
	status        RequestStatus
	stationID     string
	cancelNote    string

	dispatchedAt *time.Time
	resolvedAt   *time.Time
	cancelledAt  *time.Time

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

func generateRequestNumber() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(requestNumberChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate request number: %w", err)
		}
		result[i] = requestNumberChars[n.Int64()]
	}
	return "ER-" + string(result), nil
}

// NewRequest creates a pending emergency request.
func NewRequest(t Type, loc location.Point, address, description string) (*Request, error) {
	if !t.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid emergency type: %s", t))
	}
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(description) == "" {
		return nil, domain.NewValidationError("description is required")
	}

	number, err := generateRequestNumber()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Request{
		id:            uuid.New(),
		requestNumber: number,
		emergencyType: t,
		location:      loc,
		address:       address,
		description:   description,
		status:        StatusPending,
		version:       1,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// ReconstructRequest rebuilds a Request from persistence data (no validation).
func ReconstructRequest(
	id uuid.UUID,
	requestNumber string,
	emergencyType Type,
	loc location.Point,
	address, description string,
	status RequestStatus,
	stationID, cancelNote string,
	dispatchedAt, resolvedAt, cancelledAt *time.Time,
	version int64,
	createdAt, updatedAt time.Time,
) *Request {
	return &Request{
		id:            id,
		requestNumber: requestNumber,
		emergencyType: emergencyType,
		location:      loc,
		address:       address,
		description:   description,
		status:        status,
		stationID:     stationID,
		cancelNote:    cancelNote,
		dispatchedAt:  dispatchedAt,
		resolvedAt:    resolvedAt,
		cancelledAt:   cancelledAt,
		version:       version,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}

// --- Getters ---

func (r *Request) ID() uuid.UUID            { return r.id }
func (r *Request) RequestNumber() string    { return r.requestNumber }
func (r *Request) Type() Type               { return r.emergencyType }
func (r *Request) Location() location.Point { return r.location }
func (r *Request) Address() string          { return r.address }
func (r *Request) Description() string      { return r.description }
func (r *Request) Status() RequestStatus    { return r.status }
func (r *Request) StationID() string        { return r.stationID }
func (r *Request) CancelNote() string       { return r.cancelNote }
func (r *Request) DispatchedAt() *time.Time { return r.dispatchedAt }
func (r *Request) ResolvedAt() *time.Time   { return r.resolvedAt }
func (r *Request) CancelledAt() *time.Time  { return r.cancelledAt }
func (r *Request) Version() int64           { return r.version }
func (r *Request) CreatedAt() time.Time     { return r.createdAt }
func (r *Request) UpdatedAt() time.Time     { return r.updatedAt }

// --- Behavior ---

// Dispatch assigns a station and moves the request to dispatched.
func (r *Request) Dispatch(stationID string) error {
	if !r.status.CanTransitionTo(StatusDispatched) {
		return domain.NewInvalidStateError(string(r.status), string(StatusDispatched))
	}
	if stationID == "" {
		return domain.NewValidationError("station ID is required")
	}
	now := time.Now().UTC()
	r.stationID = stationID
	r.status = StatusDispatched
	r.dispatchedAt = &now
	r.updatedAt = now
	return nil
}

// Resolve closes a dispatched request.
func (r *Request) Resolve() error {
	if !r.status.CanTransitionTo(StatusResolved) {
		return domain.NewInvalidStateError(string(r.status), string(StatusResolved))
	}
	now := time.Now().UTC()
	r.status = StatusResolved
	r.resolvedAt = &now
	r.updatedAt = now
	return nil
}

// Cancel closes a request that is not yet terminal.
func (r *Request) Cancel(reason string) error {
	if !r.status.CanTransitionTo(StatusCancelled) {
		return domain.NewInvalidStateError(string(r.status), string(StatusCancelled))
	}
	now := time.Now().UTC()
	r.status = StatusCancelled
	r.cancelNote = reason
	r.cancelledAt = &now
	r.updatedAt = now
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (r *Request) IncrementVersion() {
	r.version++
	r.updatedAt = time.Now().UTC()
}
