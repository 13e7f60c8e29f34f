package detection

import (
	"strings"
	"time"

	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/emergency"
)

// ClassName is the canonical label of a detected vehicle.
type ClassName string

const (
	ClassAmbulance    ClassName = "Ambulance"
	ClassFireEngine   ClassName = "Fire_Engine"
	ClassPolice       ClassName = "Police"
	ClassNonEmergency ClassName = "NonEmergency"
)

// labelAliases is keyed by the folded form produced by foldLabel.
var labelAliases = map[string]ClassName{
	"ambulance":     ClassAmbulance,
	"fire_engine":   ClassFireEngine,
	"fireengine":    ClassFireEngine,
	"police":        ClassPolice,
	"non_emergency": ClassNonEmergency,
	"nonemergency":  ClassNonEmergency,
}

var classToType = map[ClassName]emergency.Type{
	ClassAmbulance:  emergency.TypeMedical,
	ClassFireEngine: emergency.TypeFire,
	ClassPolice:     emergency.TypePolice,
}

func foldLabel(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// ParseClassName standardises a model label. Labels outside the emergency
// vocabulary become ClassNonEmergency.
func ParseClassName(label string) ClassName {
	if c, ok := labelAliases[foldLabel(label)]; ok {
		return c
	}
	return ClassNonEmergency
}

// IsEmergency reports whether the class is an emergency vehicle.
func (c ClassName) IsEmergency() bool {
	_, ok := classToType[c]
	return ok
}

// EmergencyType maps Ambulance, Fire_Engine and Police onto their service.
func (c ClassName) EmergencyType() (emergency.Type, bool) {
	t, ok := classToType[c]
	return t, ok
}

// BoundingBox is x1, y1, x2, y2 in image pixels.
type BoundingBox [4]float64

// Center returns the midpoint of the box.
func (b BoundingBox) Center() (x, y float64) {
	return (b[0] + b[2]) / 2, (b[1] + b[3]) / 2
}

// Detection is one classified bounding box as reported by the model.
type Detection struct {
	ClassName   ClassName   `json:"class_name"`
	Label       string      `json:"label"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"bbox"`
	Timestamp   *time.Time  `json:"timestamp,omitempty"`
	FrameNumber *int        `json:"frame_number,omitempty"`
}

// IsEmergency reports whether the detection's class is an emergency class.
func (d Detection) IsEmergency() bool { return d.ClassName.IsEmergency() }

// Result is the canonical outcome of one detection batch.
type Result struct {
	EmergencyDetected bool            `json:"emergency_detected"`
	EmergencyType     *emergency.Type `json:"emergency_type"`
	PrimaryConfidence float64         `json:"primary_confidence"`
	Detections        []Detection     `json:"detections"`
}
