package jsonfile

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStdin(t *testing.T) {
	body := `{"vehicles":[{"id":"V1","current_lat":1,"current_lon":2}],
	"orders":[{"id":"O1","pickup_lat":1,"pickup_lon":2,"dropoff_lat":3,"dropoff_lon":4}],
	"algorithm":"sa","sa_params":{"seed":7,"max_iterations":100}}`
	req, err := Source{Path: "-", Stdin: strings.NewReader(body)}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sa", req.Algorithm)
	require.NotNil(t, req.SAParams)
	assert.Equal(t, int64(7), *req.SAParams.Seed)
	assert.Equal(t, 100, *req.SAParams.MaxIterations)
	assert.Len(t, req.Orders, 1)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Source{Path: "-", Stdin: strings.NewReader(`{"vehicle":[]}`)}.Load(context.Background())
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Source{Path: "/nonexistent/req.json"}.Load(context.Background())
	assert.Error(t, err)
}
