package csvfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrp/internal/integrations"
)

func write(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad(t *testing.T) {
	vp := write(t, "vehicles.csv", "id,current_lat,current_lon\nV1,40.7128,-74.0060\nV2, 40.75,-73.99\n")
	op := write(t, "orders.csv", "ID,Pickup_Lat,Pickup_Lon,Dropoff_Lat,Dropoff_Lon\nO1,40.72,-74.0,40.73,-73.98\n")

	req, err := Source{VehiclesPath: vp, OrdersPath: op}.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, req.Vehicles, 2)
	require.Len(t, req.Orders, 1)
	assert.Equal(t, "V2", req.Vehicles[1].ID)
	assert.InDelta(t, 40.75, req.Vehicles[1].CurrentLat, 1e-9)
	assert.InDelta(t, -73.98, req.Orders[0].DropoffLon, 1e-9)

	vs, ors, err := req.Domain()
	require.NoError(t, err)
	assert.Len(t, vs, 2)
	assert.Len(t, ors, 1)
}

func TestLoadErrors(t *testing.T) {
	_, err := Source{}.Load(context.Background())
	assert.True(t, errors.Is(err, integrations.ErrMissingInput))

	_, err = Read(strings.NewReader("id,lat,lon\nV1,1,2\n"), vehicleHeader)
	assert.ErrorContains(t, err, "header column 2")

	vp := write(t, "v.csv", "id,current_lat,current_lon\nV1,abc,2\n")
	op := write(t, "o.csv", "id,pickup_lat,pickup_lon,dropoff_lat,dropoff_lon\n")
	_, err = Source{VehiclesPath: vp, OrdersPath: op}.Load(context.Background())
	assert.ErrorContains(t, err, "row 2")

	_, err = Read(strings.NewReader("id,current_lat,current_lon\nV1,1\n"), vehicleHeader)
	assert.Error(t, err)
}
