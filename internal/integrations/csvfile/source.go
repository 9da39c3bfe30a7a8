// Package csvfile reads vehicles and orders from two CSV files with header rows.
//
//	vehicles.csv: id,current_lat,current_lon
//	orders.csv:   id,pickup_lat,pickup_lon,dropoff_lat,dropoff_lon
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"vrp/internal/integrations"
	"vrp/internal/model"
)

var (
	vehicleHeader = []string{"id", "current_lat", "current_lon"}
	orderHeader   = []string{"id", "pickup_lat", "pickup_lon", "dropoff_lat", "dropoff_lon"}
)

type Source struct {
	VehiclesPath string
	OrdersPath   string
}

func (s Source) Name() string { return "csvfile" }

func (s Source) Load(ctx context.Context) (model.SolveRequest, error) {
	var req model.SolveRequest
	if s.VehiclesPath == "" || s.OrdersPath == "" {
		return req, integrations.ErrMissingInput
	}
	vrows, err := readFile(s.VehiclesPath, vehicleHeader)
	if err != nil {
		return req, err
	}
	for i, row := range vrows {
		nums, err := floats(row[1:])
		if err != nil {
			return req, fmt.Errorf("%s row %d: %w", s.VehiclesPath, i+2, err)
		}
		req.Vehicles = append(req.Vehicles, model.VehicleIn{ID: row[0], CurrentLat: nums[0], CurrentLon: nums[1]})
	}
	if err := ctx.Err(); err != nil {
		return req, err
	}
	orows, err := readFile(s.OrdersPath, orderHeader)
	if err != nil {
		return req, err
	}
	for i, row := range orows {
		nums, err := floats(row[1:])
		if err != nil {
			return req, fmt.Errorf("%s row %d: %w", s.OrdersPath, i+2, err)
		}
		req.Orders = append(req.Orders, model.OrderIn{ID: row[0], PickupLat: nums[0], PickupLon: nums[1], DropoffLat: nums[2], DropoffLon: nums[3]})
	}
	return req, nil
}

func readFile(path string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := Read(f, header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// Read parses records after checking the header row, case-insensitively.
func Read(r io.Reader, header []string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)
	cr.TrimLeadingSpace = true
	got, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	for i, h := range header {
		if !strings.EqualFold(strings.TrimSpace(got[i]), h) {
			return nil, fmt.Errorf("header column %d: want %q, got %q", i+1, h, got[i])
		}
	}
	return cr.ReadAll()
}

func floats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

var _ integrations.Source = Source{}
