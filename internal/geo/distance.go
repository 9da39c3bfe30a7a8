// Package geo computes great-circle distances between latitude/longitude points.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// EarthRadiusKm is the mean Earth radius used by Haversine.
const EarthRadiusKm = 6371.0

var (
	// ErrInvalidCoordinate is returned for a latitude outside [-90, 90] or a longitude outside [-180, 180].
	ErrInvalidCoordinate = errors.New("geo: invalid coordinate")
	// ErrInvalidUnit is returned for an unrecognized distance unit.
	ErrInvalidUnit = errors.New("geo: invalid unit")
)

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p Point) String() string { return fmt.Sprintf("(%.6f, %.6f)", p.Lat, p.Lon) }

// Unit is a canonical distance unit.
type Unit string

const (
	Kilometers Unit = "km"
	Miles      Unit = "miles"
	Meters     Unit = "meters"
	Feet       Unit = "feet"
)

// factors from kilometers
var unitFactor = map[Unit]float64{
	Kilometers: 1.0,
	Miles:      0.621371,
	Meters:     1000.0,
	Feet:       3280.84,
}

var unitAliases = map[string]Unit{
	"km":         Kilometers,
	"kilometers": Kilometers,
	"kilometres": Kilometers,
	"miles":      Miles,
	"mi":         Miles,
	"meters":     Meters,
	"metres":     Meters,
	"m":          Meters,
	"feet":       Feet,
	"ft":         Feet,
}

// Units lists the canonical units.
func Units() []Unit { return []Unit{Kilometers, Miles, Meters, Feet} }

// ParseUnit resolves a unit name or alias, case-insensitively. Empty means kilometers.
func ParseUnit(s string) (Unit, error) {
	k := strings.ToLower(strings.TrimSpace(s))
	if k == "" {
		return Kilometers, nil
	}
	u, ok := unitAliases[k]
	if !ok {
		return "", fmt.Errorf("%w: %q (valid: km, miles, meters, feet)", ErrInvalidUnit, s)
	}
	return u, nil
}

// Valid reports whether u is a canonical unit.
func (u Unit) Valid() bool {
	_, ok := unitFactor[u]
	return ok
}

// FromKm converts a distance in kilometers to u.
func (u Unit) FromKm(km float64) (float64, error) {
	f, ok := unitFactor[u]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidUnit, string(u))
	}
	return km * f, nil
}

// ValidatePoint checks coordinate ranges.
func ValidatePoint(p Point) error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v must be in [-90, 90]", ErrInvalidCoordinate, p.Lat)
	}
	if math.IsNaN(p.Lon) || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: longitude %v must be in [-180, 180]", ErrInvalidCoordinate, p.Lon)
	}
	return nil
}

// Distance returns the great-circle distance between a and b in unit u.
func Distance(a, b Point, u Unit) (float64, error) {
	if err := ValidatePoint(a); err != nil {
		return 0, err
	}
	if err := ValidatePoint(b); err != nil {
		return 0, err
	}
	return u.FromKm(Haversine(a.Lat, a.Lon, b.Lat, b.Lon))
}

// Haversine returns the great-circle distance in kilometers. Inputs are not validated.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}
