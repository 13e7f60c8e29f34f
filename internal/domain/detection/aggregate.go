package detection

import (
	"fmt"
	"strings"

	"github.com/emergency-vehicle-system/service-dispatch/internal/common/domain"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/location"
)

// CameraWindowDegrees is the span of latitude and longitude a camera frame
// is assumed to cover around its reference point.
const CameraWindowDegrees = 0.1

// Orientation says which compass direction the top row of a frame faces.
type Orientation string

const (
	// OrientationNorthUp puts the top of the frame north of the reference.
	OrientationNorthUp Orientation = "north_up"
	// OrientationSouthUp puts the top of the frame south of the reference,
	// so latitude grows with the image row.
	OrientationSouthUp Orientation = "south_up"
)

// ParseOrientation accepts north_up and south_up. Empty means north_up.
func ParseOrientation(s string) (Orientation, error) {
	switch o := Orientation(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return OrientationNorthUp, nil
	case OrientationNorthUp, OrientationSouthUp:
		return o, nil
	}
	return "", domain.NewValidationError(fmt.Sprintf("unknown camera orientation: %q", s))
}

// Frame describes the camera image detections were taken from.
type Frame struct {
	Width       int
	Height      int
	Orientation Orientation
}

func (f Frame) normalize(box BoundingBox) (x, y float64, err error) {
	if f.Width <= 0 || f.Height <= 0 {
		return 0, 0, domain.NewValidationError(
			fmt.Sprintf("image size must be positive, got %dx%d", f.Width, f.Height))
	}
	cx, cy := box.Center()
	return cx / float64(f.Width), cy / float64(f.Height), nil
}

// Locate maps the centre of box onto a CameraWindowDegrees window centred
// on ref.
func (f Frame) Locate(box BoundingBox, ref location.Point) (location.Point, error) {
	normX, normY, err := f.normalize(box)
	if err != nil {
		return location.Point{}, err
	}
	if err := ref.Validate(); err != nil {
		return location.Point{}, err
	}

	dy := 0.5 - normY
	switch f.Orientation {
	case "", OrientationNorthUp:
	case OrientationSouthUp:
		dy = -dy
	default:
		return location.Point{}, domain.NewValidationError(
			fmt.Sprintf("unknown camera orientation: %q", f.Orientation))
	}

	p := location.Point{
		Latitude:  ref.Latitude + dy*CameraWindowDegrees,
		Longitude: ref.Longitude + (normX-0.5)*CameraWindowDegrees,
	}
	if err := p.Validate(); err != nil {
		return location.Point{}, err
	}
	return p, nil
}

// Relative returns the centre of box as a fraction of the frame, row in
// Latitude and column in Longitude. It is used when the camera has no
// reference point on the map.
func (f Frame) Relative(box BoundingBox) (location.Point, error) {
	normX, normY, err := f.normalize(box)
	if err != nil {
		return location.Point{}, err
	}
	return location.Point{Latitude: normY, Longitude: normX}, nil
}

// EstimateLocation locates box in a north-up frame of the given size.
func EstimateLocation(box BoundingBox, width, height int, ref location.Point) (location.Point, error) {
	return Frame{Width: width, Height: height, Orientation: OrientationNorthUp}.Locate(box, ref)
}
