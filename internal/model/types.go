package model

import (
	"time"
)

// Wire types for the solve API. Field names follow the public snake_case contract.

type VehicleIn struct {
	ID         string  `json:"id"`
	CurrentLat float64 `json:"current_lat"`
	CurrentLon float64 `json:"current_lon"`
}

type OrderIn struct {
	ID         string  `json:"id"`
	PickupLat  float64 `json:"pickup_lat"`
	PickupLon  float64 `json:"pickup_lon"`
	DropoffLat float64 `json:"dropoff_lat"`
	DropoffLon float64 `json:"dropoff_lon"`
}

// SAParams overrides annealing defaults; nil fields keep the configured default.
type SAParams struct {
	InitialTemp   *float64 `json:"initial_temp,omitempty"`
	FinalTemp     *float64 `json:"final_temp,omitempty"`
	CoolingRate   *float64 `json:"cooling_rate,omitempty"`
	MaxIterations *int     `json:"max_iterations,omitempty"`
	Seed          *int64   `json:"seed,omitempty"`
	Polish        bool     `json:"polish,omitempty"`
	WarmStart     bool     `json:"warm_start,omitempty"`
	Verbose       bool     `json:"verbose,omitempty"`
}

type SolveRequest struct {
	Vehicles     []VehicleIn `json:"vehicles"`
	Orders       []OrderIn   `json:"orders"`
	Algorithm    string      `json:"algorithm,omitempty"`
	DistanceUnit string      `json:"distance_unit,omitempty"`
	SAParams     *SAParams   `json:"sa_params,omitempty"`
}

// JobRequest is a SolveRequest run asynchronously, with an optional completion callback.
type JobRequest struct {
	SolveRequest
	CallbackURL string `json:"callback_url,omitempty"`
}

type RouteOut struct {
	VehicleID     string   `json:"vehicle_id"`
	Orders        []string `json:"orders"`
	TotalDistance float64  `json:"total_distance"`
}

type SolveResponse struct {
	Status           string         `json:"status"`
	AlgorithmUsed    string         `json:"algorithm_used"`
	TotalDistance    float64        `json:"total_distance"`
	DistanceUnit     string         `json:"distance_unit"`
	Routes           []RouteOut     `json:"routes"`
	Statistics       map[string]any `json:"statistics,omitempty"`
	UnassignedOrders []string       `json:"unassigned_orders"`
	RunID            string         `json:"run_id,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version"`
}

// Progress is a point-in-time view of a running annealing job.
type Progress struct {
	Iteration   int     `json:"iteration"`
	Temperature float64 `json:"temperature"`
	CurrentCost float64 `json:"current_cost"`
	BestCost    float64 `json:"best_cost"`
	Accepted    int     `json:"accepted"`
}

type JobStatus struct {
	JobID      string         `json:"job_id"`
	Status     string         `json:"status"`
	Algorithm  string         `json:"algorithm"`
	CreatedAt  time.Time      `json:"created_at"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Progress   *Progress      `json:"progress,omitempty"`
	Result     *SolveResponse `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Run is the stored record of one completed solve. It never holds vehicles or orders.
type Run struct {
	ID            string         `json:"id"`
	JobID         string         `json:"job_id,omitempty"`
	Source        string         `json:"source"` // sync, job
	Algorithm     string         `json:"algorithm"`
	DistanceUnit  string         `json:"distance_unit"`
	Vehicles      int            `json:"vehicles"`
	Orders        int            `json:"orders"`
	TotalDistance float64        `json:"total_distance"`
	DurationMs    int64          `json:"duration_ms"`
	Statistics    map[string]any `json:"statistics,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Domain converts the wire vehicles and orders, validating ids and coordinates.
func (r SolveRequest) Domain() ([]Vehicle, []Order, error) {
	vs := make([]Vehicle, 0, len(r.Vehicles))
	for _, in := range r.Vehicles {
		v, err := NewVehicle(in.ID, in.CurrentLat, in.CurrentLon)
		if err != nil {
			return nil, nil, err
		}
		vs = append(vs, v)
	}
	ors := make([]Order, 0, len(r.Orders))
	for _, in := range r.Orders {
		o, err := NewOrder(in.ID, in.PickupLat, in.PickupLon, in.DropoffLat, in.DropoffLon)
		if err != nil {
			return nil, nil, err
		}
		ors = append(ors, o)
	}
	return vs, ors, nil
}
