package emergency

import (
	"fmt"

	"github.com/emergency-vehicle-system/service-dispatch/internal/common/domain"
)

// RequestStatus is the lifecycle state of an emergency request.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusDispatched RequestStatus = "dispatched"
	StatusResolved   RequestStatus = "resolved"
	StatusCancelled  RequestStatus = "cancelled"
)

var validTransitions = map[RequestStatus][]RequestStatus{
	StatusPending:    {StatusDispatched, StatusCancelled},
	StatusDispatched: {StatusResolved, StatusCancelled},
	StatusResolved:   {},
	StatusCancelled:  {},
}

// IsValid returns true if the status is recognized.
func (s RequestStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if moving to target is allowed.
func (s RequestStatus) CanTransitionTo(target RequestStatus) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible.
func (s RequestStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// ParseRequestStatus converts a string to a RequestStatus.
func ParseRequestStatus(s string) (RequestStatus, error) {
	status := RequestStatus(s)
	if !status.IsValid() {
		return "", domain.NewValidationError(fmt.Sprintf("invalid request status: %s", s))
	}
	return status, nil
}
