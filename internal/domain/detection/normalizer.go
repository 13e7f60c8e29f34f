package detection

import (
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/emergency-vehicle-system/service-dispatch/internal/common/domain"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/emergency"
)

// DefaultThreshold is the minimum confidence for an emergency detection.
const DefaultThreshold = 0.4

// Selection decides which qualifying detection sets the emergency type.
type Selection string

const (
	// SelectFirst uses the first qualifying detection in model output order.
	SelectFirst Selection = "first"
	// SelectBest uses the highest-confidence qualifying detection.
	SelectBest Selection = "best"
)

// ParseSelection converts a config string to a Selection.
func ParseSelection(s string) (Selection, error) {
	switch sel := Selection(strings.ToLower(s)); sel {
	case SelectFirst, SelectBest:
		return sel, nil
	}
	return "", domain.NewValidationError(fmt.Sprintf("unknown detection selection: %q", s))
}

// RawDetection is one record of object-detector output. Pointer fields
// distinguish a missing value from a zero value.
type RawDetection struct {
	ClassName   *string   `json:"class_name"`
	Confidence  *float64  `json:"confidence"`
	BBox        []float64 `json:"bbox,omitempty"`
	Timestamp   *string   `json:"timestamp,omitempty"`
	FrameNumber *int      `json:"frame_number,omitempty"`
}

// Normalizer turns raw detector output into a Result.
type Normalizer struct {
	threshold float64
	selection Selection
}

// NewNormalizer creates a Normalizer. threshold must lie within [0,1].
func NewNormalizer(threshold float64, selection Selection) (*Normalizer, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, domain.NewValidationError(fmt.Sprintf("threshold must be within [0,1], got %v", threshold))
	}
	if selection == "" {
		selection = SelectFirst
	}
	if selection != SelectFirst && selection != SelectBest {
		return nil, domain.NewValidationError(fmt.Sprintf("unknown detection selection: %q", selection))
	}
	return &Normalizer{threshold: threshold, selection: selection}, nil
}

// Threshold returns the configured confidence threshold.
func (n *Normalizer) Threshold() float64 { return n.threshold }

// Selection returns the configured selection policy.
func (n *Normalizer) Selection() Selection { return n.selection }

// Normalize validates every record and derives the emergency summary. Any
// malformed record fails the whole batch with a validation error.
func (n *Normalizer) Normalize(raw []RawDetection) (*Result, error) {
	detections, err := Validate(raw)
	if err != nil {
		return nil, err
	}
	return n.Summarize(detections), nil
}

// Summarize derives the emergency summary from already-validated detections.
// Detection order is preserved.
func (n *Normalizer) Summarize(detections []Detection) *Result {
	result := &Result{Detections: make([]Detection, len(detections))}
	copy(result.Detections, detections)

	primary := -1
	for i, d := range detections {
		if !d.IsEmergency() || d.Confidence < n.threshold {
			continue
		}
		if primary < 0 {
			primary = i
			if n.selection == SelectFirst {
				break
			}
			continue
		}
		if d.Confidence > detections[primary].Confidence {
			primary = i
		}
	}

	if primary >= 0 {
		t, _ := detections[primary].ClassName.EmergencyType()
		result.EmergencyDetected = true
		result.EmergencyType = &t
		result.PrimaryConfidence = detections[primary].Confidence
	}
	return result
}

// Normalize runs the default normalizer: threshold 0.4, first qualifying
// detection wins.
func Normalize(raw []RawDetection) (*Result, error) {
	n := &Normalizer{threshold: DefaultThreshold, selection: SelectFirst}
	return n.Normalize(raw)
}

// Validate converts raw records into Detections, collecting every problem.
func Validate(raw []RawDetection) ([]Detection, error) {
	out := make([]Detection, 0, len(raw))
	var errs error
	for i, r := range raw {
		d, err := toDetection(r)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("detection[%d]: %w", i, err))
			continue
		}
		out = append(out, d)
	}
	if errs != nil {
		return nil, domain.WrapValidationError("malformed detector output", errs)
	}
	return out, nil
}

func toDetection(r RawDetection) (Detection, error) {
	if r.ClassName == nil || strings.TrimSpace(*r.ClassName) == "" {
		return Detection{}, fmt.Errorf("class_name is required")
	}
	if r.Confidence == nil {
		return Detection{}, fmt.Errorf("confidence is required")
	}
	conf := *r.Confidence
	if math.IsNaN(conf) || conf < 0 || conf > 1 {
		return Detection{}, fmt.Errorf("confidence %v outside [0,1]", conf)
	}

	d := Detection{
		ClassName:   ParseClassName(*r.ClassName),
		Label:       *r.ClassName,
		Confidence:  conf,
		FrameNumber: r.FrameNumber,
	}

	if r.BBox != nil {
		if len(r.BBox) != 4 {
			return Detection{}, fmt.Errorf("bbox must have 4 numbers, got %d", len(r.BBox))
		}
		for _, v := range r.BBox {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Detection{}, fmt.Errorf("bbox contains a non-finite value")
			}
		}
		copy(d.BoundingBox[:], r.BBox)
	}

	if r.Timestamp != nil {
		ts, err := parseTimestamp(*r.Timestamp)
		if err != nil {
			return Detection{}, err
		}
		d.Timestamp = &ts
	}

	if r.FrameNumber != nil && *r.FrameNumber < 0 {
		return Detection{}, fmt.Errorf("frame_number cannot be negative")
	}

	return d, nil
}

// timestampLayouts are the ISO-8601 forms detectors emit. Times without an
// offset are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q is not ISO-8601", s)
}

// BestPerClass keeps the highest-confidence detection of each class. Classes
// appear in order of first appearance; ties keep the earlier detection.
func BestPerClass(detections []Detection) []Detection {
	index := make(map[ClassName]int)
	best := make([]Detection, 0, len(detections))
	for _, d := range detections {
		i, seen := index[d.ClassName]
		if !seen {
			index[d.ClassName] = len(best)
			best = append(best, d)
			continue
		}
		if d.Confidence > best[i].Confidence {
			best[i] = d
		}
	}
	return best
}

// ClassCounts tallies detections by class.
func ClassCounts(detections []Detection) map[ClassName]int {
	counts := make(map[ClassName]int)
	for _, d := range detections {
		counts[d.ClassName]++
	}
	return counts
}

// TypeOf returns the emergency type of a result, or "" when none.
func (r *Result) TypeOf() emergency.Type {
	if r == nil || r.EmergencyType == nil {
		return ""
	}
	return *r.EmergencyType
}
