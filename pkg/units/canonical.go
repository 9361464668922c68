// Package units provides canonical sale-unit types and conversions.
package units

// Unit represents the sale unit a pack size is denominated in.
type Unit string

const (
	// Count units
	UnitCase Unit = "case"
	UnitUnit Unit = "unit"

	// Weight units
	UnitKg Unit = "kg"
	UnitG  Unit = "g"

	// Volume units
	UnitMl Unit = "ml"
	UnitL  Unit = "l"
)

// Metric conversion factors.
const (
	GramsPerKg = 1000.0
	MlPerL     = 1000.0
)

// IsWeight reports whether the unit measures weight.
func (u Unit) IsWeight() bool {
	return u == UnitKg || u == UnitG
}

// IsVolume reports whether the unit measures volume.
func (u Unit) IsVolume() bool {
	return u == UnitMl || u == UnitL
}

// KgToG converts kilograms to grams.
func KgToG(kg float64) float64 {
	return kg * GramsPerKg
}

// GToKg converts grams to kilograms.
func GToKg(g float64) float64 {
	return g / GramsPerKg
}

// LToMl converts litres to millilitres.
func LToMl(l float64) float64 {
	return l * MlPerL
}

// MlToL converts millilitres to litres.
func MlToL(ml float64) float64 {
	return ml / MlPerL
}

// ToBase converts a quantity to the base unit of its dimension
// (g for weight, ml for volume). Count units pass through unchanged.
// The capture normalizer does not convert; this is for callers that
// need comparable per-unit prices across kg/g or l/ml packs.
func ToBase(value float64, unit Unit) (float64, Unit) {
	switch unit {
	case UnitKg:
		return KgToG(value), UnitG
	case UnitL:
		return LToMl(value), UnitMl
	default:
		return value, unit
	}
}
