package opt

import (
	"vrp/internal/geo"
	"vrp/internal/model"
)

// RouteSummary is the per-vehicle line of a Summary.
type RouteSummary struct {
	VehicleID   string   `json:"vehicle_id"`
	OrdersCount int      `json:"orders_count"`
	Sequence    []string `json:"order_sequence"`
	Distance    float64  `json:"distance"`
}

// Summary describes a set of routes independently of the algorithm that built them.
type Summary struct {
	TotalVehicles           int            `json:"total_vehicles"`
	TotalOrders             int            `json:"total_orders"`
	AssignedOrders          int            `json:"assigned_orders"`
	UnassignedOrders        int            `json:"unassigned_orders"`
	RoutesUsed              int            `json:"routes_used"`
	TotalDistance           float64        `json:"total_distance"`
	AverageDistancePerRoute float64        `json:"average_distance_per_route"`
	DistanceUnit            geo.Unit       `json:"distance_unit"`
	Routes                  []RouteSummary `json:"route_details"`
}

// Summarize computes per-route distances and fleet totals. The average covers used routes only.
func Summarize(routes []model.Route, unassigned []model.Order, unit geo.Unit) (Summary, error) {
	s := Summary{
		TotalVehicles:    len(routes),
		UnassignedOrders: len(unassigned),
		DistanceUnit:     unit,
		Routes:           make([]RouteSummary, 0, len(routes)),
	}
	for _, r := range routes {
		d, err := RouteCost(r, unit)
		if err != nil {
			return Summary{}, err
		}
		s.AssignedOrders += r.Len()
		if !r.IsEmpty() {
			s.RoutesUsed++
		}
		s.TotalDistance += d
		s.Routes = append(s.Routes, RouteSummary{VehicleID: r.Vehicle.ID, OrdersCount: r.Len(), Sequence: r.OrderIDs(), Distance: d})
	}
	s.TotalOrders = s.AssignedOrders + s.UnassignedOrders
	if s.RoutesUsed > 0 {
		s.AverageDistancePerRoute = s.TotalDistance / float64(s.RoutesUsed)
	}
	return s, nil
}
