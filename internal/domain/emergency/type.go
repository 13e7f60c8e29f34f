package emergency

import (
	"fmt"
	"strings"

	"github.com/emergency-vehicle-system/service-dispatch/internal/common/domain"
)

// Type is the emergency service category a vehicle or station belongs to.
type Type string

const (
	TypeMedical Type = "MEDICAL"
	TypeFire    Type = "FIRE"
	TypePolice  Type = "POLICE"
)

// Types lists every Type in canonical order.
var Types = []Type{TypeMedical, TypeFire, TypePolice}

var typeAliases = map[string]Type{
	"medical":        TypeMedical,
	"hospital":       TypeMedical,
	"ambulance":      TypeMedical,
	"fire":           TypeFire,
	"fire_station":   TypeFire,
	"fire_engine":    TypeFire,
	"police":         TypePolice,
	"police_station": TypePolice,
}

// IsValid returns true for MEDICAL, FIRE and POLICE.
func (t Type) IsValid() bool {
	switch t {
	case TypeMedical, TypeFire, TypePolice:
		return true
	}
	return false
}

// String returns the canonical name.
func (t Type) String() string { return string(t) }

// VehicleType returns the vehicle string sent to the routing collaborator.
func (t Type) VehicleType() string {
	switch t {
	case TypeMedical:
		return "ambulance"
	case TypeFire:
		return "fire_engine"
	case TypePolice:
		return "police"
	}
	return ""
}

// ParseType accepts canonical names in any case plus the station and
// vehicle category aliases.
func ParseType(s string) (Type, error) {
	if t, ok := typeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t, nil
	}
	return "", domain.NewValidationError(fmt.Sprintf("unknown emergency type: %q", s))
}
