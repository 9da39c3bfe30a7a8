package geo_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrp/internal/geo"
)

var (
	newYork    = geo.Point{Lat: 40.7128, Lon: -74.0060}
	losAngeles = geo.Point{Lat: 34.0522, Lon: -118.2437}
)

func TestDistanceNewYorkLosAngeles(t *testing.T) {
	km, err := geo.Distance(newYork, losAngeles, geo.Kilometers)
	require.NoError(t, err)
	assert.InDelta(t, 3935.75, km, 3935.75*0.01)

	mi, err := geo.Distance(newYork, losAngeles, geo.Miles)
	require.NoError(t, err)
	assert.InDelta(t, km*0.621371, mi, 1e-9)

	m, err := geo.Distance(newYork, losAngeles, geo.Meters)
	require.NoError(t, err)
	assert.InDelta(t, km*1000, m, 1e-6)

	ft, err := geo.Distance(newYork, losAngeles, geo.Feet)
	require.NoError(t, err)
	assert.InDelta(t, km*3280.84, ft, 1e-6)
}

func TestDistanceSymmetricAndZero(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		a := geo.Point{Lat: rng.Float64()*180 - 90, Lon: rng.Float64()*360 - 180}
		b := geo.Point{Lat: rng.Float64()*180 - 90, Lon: rng.Float64()*360 - 180}

		ab, err := geo.Distance(a, b, geo.Kilometers)
		require.NoError(t, err)
		ba, err := geo.Distance(b, a, geo.Kilometers)
		require.NoError(t, err)
		require.Equal(t, ab, ba, "distance must be symmetric for %v %v", a, b)

		aa, err := geo.Distance(a, a, geo.Kilometers)
		require.NoError(t, err)
		require.Zero(t, aa)
	}
}

func TestDistanceBoundaries(t *testing.T) {
	// poles and antimeridian are inside the valid range
	_, err := geo.Distance(geo.Point{Lat: 90, Lon: 180}, geo.Point{Lat: -90, Lon: -180}, geo.Kilometers)
	require.NoError(t, err)

	half, err := geo.Distance(geo.Point{Lat: 0, Lon: 0}, geo.Point{Lat: 0, Lon: 180}, geo.Kilometers)
	require.NoError(t, err)
	assert.InDelta(t, math.Pi*geo.EarthRadiusKm, half, 1e-6)
}

func TestDistanceInvalidCoordinate(t *testing.T) {
	cases := []geo.Point{
		{Lat: 90.0001, Lon: 0},
		{Lat: -91, Lon: 0},
		{Lat: 0, Lon: 180.5},
		{Lat: 0, Lon: -181},
		{Lat: math.NaN(), Lon: 0},
	}
	for _, p := range cases {
		_, err := geo.Distance(p, newYork, geo.Kilometers)
		require.ErrorIs(t, err, geo.ErrInvalidCoordinate, "point %v", p)
		_, err = geo.Distance(newYork, p, geo.Kilometers)
		require.ErrorIs(t, err, geo.ErrInvalidCoordinate, "point %v", p)
	}
}

func TestParseUnit(t *testing.T) {
	cases := map[string]geo.Unit{
		"":           geo.Kilometers,
		"km":         geo.Kilometers,
		"Kilometers": geo.Kilometers,
		" miles ":    geo.Miles,
		"mi":         geo.Miles,
		"meters":     geo.Meters,
		"metres":     geo.Meters,
		"M":          geo.Meters,
		"feet":       geo.Feet,
		"ft":         geo.Feet,
	}
	for in, want := range cases {
		got, err := geo.ParseUnit(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := geo.ParseUnit("furlongs")
	require.ErrorIs(t, err, geo.ErrInvalidUnit)

	_, err = geo.Distance(newYork, losAngeles, geo.Unit("parsecs"))
	require.ErrorIs(t, err, geo.ErrInvalidUnit)
}
