// Package events holds the topic names, CloudEvent types and payloads the
// dispatch service exchanges over Kafka.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Source is the CloudEvent source of everything this service publishes.
const Source = "service-dispatch"

// Topics.
const (
	TopicEmergencyDetections = "emergency.detections"
	TopicEmergencyRequests   = "emergency.requests"
	TopicStationEvents       = "station.events"
)

// Event types.
const (
	EmergencyDetected = "emergency.detected"

	RequestCreated    = "emergency.request.created"
	RequestDispatched = "emergency.request.dispatched"
	RequestResolved   = "emergency.request.resolved"
	RequestCancelled  = "emergency.request.cancelled"

	StationUpdated = "station.updated"
	StationDeleted = "station.deleted"
)

// Coordinate is a latitude/longitude pair on the wire.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// EmergencyDetectedEvent is published when a detection batch reports an
// emergency vehicle.
type EmergencyDetectedEvent struct {
	EmergencyType     string      `json:"emergency_type"`
	PrimaryConfidence float64     `json:"primary_confidence"`
	DetectionCount    int         `json:"detection_count"`
	Source            string      `json:"source,omitempty"`
	Origin            *Coordinate `json:"origin,omitempty"`
	StationID         string      `json:"station_id,omitempty"`
	OccurredAt        time.Time   `json:"occurred_at"`
}

// RequestEvent carries an emergency request status change.
type RequestEvent struct {
	RequestID     uuid.UUID  `json:"request_id"`
	RequestNumber string     `json:"request_number"`
	EmergencyType string     `json:"emergency_type"`
	Status        string     `json:"status"`
	Location      Coordinate `json:"location"`
	StationID     string     `json:"station_id,omitempty"`
	DistanceKm    float64    `json:"distance_km,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// StationChangedEvent tells every replica to reload its station directory.
type StationChangedEvent struct {
	StationID  string    `json:"station_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
