package opt

import (
	"fmt"

	"vrp/internal/geo"
	"vrp/internal/model"
)

// orders above this size use on-demand dropoff->pickup links instead of a full matrix
const linkMatrixLimit = 2000

// costTable caches every leg the cost function can need, in the requested unit.
type costTable struct {
	n       int
	factor  float64
	vehicle []geo.Point
	pickup  []geo.Point
	dropoff []geo.Point
	start   [][]float64 // [vehicle][order] start -> pickup
	service []float64   // [order] pickup -> dropoff
	links   []float64   // [from*n+to] dropoff -> pickup, nil above linkMatrixLimit
}

func newCostTable(vehicles []model.Vehicle, orders []model.Order, unit geo.Unit) (*costTable, error) {
	factor, err := unit.FromKm(1)
	if err != nil {
		return nil, err
	}
	n := len(orders)
	t := &costTable{
		n:       n,
		factor:  factor,
		vehicle: make([]geo.Point, len(vehicles)),
		pickup:  make([]geo.Point, n),
		dropoff: make([]geo.Point, n),
		start:   make([][]float64, len(vehicles)),
		service: make([]float64, n),
	}
	for i, o := range orders {
		t.pickup[i] = o.Pickup
		t.dropoff[i] = o.Dropoff
		t.service[i] = t.dist(o.Pickup, o.Dropoff)
	}
	for vi, v := range vehicles {
		t.vehicle[vi] = v.Location
		row := make([]float64, n)
		for i := range orders {
			row[i] = t.dist(v.Location, t.pickup[i])
		}
		t.start[vi] = row
	}
	if n <= linkMatrixLimit {
		t.links = make([]float64, n*n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				t.links[i*n+j] = t.dist(t.dropoff[i], t.pickup[j])
			}
		}
	}
	return t, nil
}

func (t *costTable) dist(a, b geo.Point) float64 {
	return geo.Haversine(a.Lat, a.Lon, b.Lat, b.Lon) * t.factor
}

func (t *costTable) link(from, to int) float64 {
	if t.links != nil {
		return t.links[from*t.n+to]
	}
	return t.dist(t.dropoff[from], t.pickup[to])
}

// planCost is d(start, p1) + d(p1, d1) + d(d1, p2) + ... + d(pn, dn). An empty plan costs 0.
func (t *costTable) planCost(vi int, order []int) float64 {
	if len(order) == 0 {
		return 0
	}
	c := 0.0
	c += t.start[vi][order[0]]
	c += t.service[order[0]]
	for k := 1; k < len(order); k++ {
		c += t.link(order[k-1], order[k])
		c += t.service[order[k]]
	}
	return c
}

func (t *costTable) total(s Solution) float64 {
	total := 0.0
	for vi, pl := range s.Plans {
		total += t.planCost(vi, pl.Order)
	}
	return total
}

// TotalCost returns the summed travel distance of a solution in unit.
func TotalCost(s Solution, vehicles []model.Vehicle, orders []model.Order, unit geo.Unit) (float64, error) {
	if len(s.Plans) != len(vehicles) {
		return 0, fmt.Errorf("%w: %d plans for %d vehicles", ErrConfiguration, len(s.Plans), len(vehicles))
	}
	for _, pl := range s.Plans {
		for _, idx := range pl.Order {
			if idx < 0 || idx >= len(orders) {
				return 0, fmt.Errorf("%w: order index %d out of range", ErrConfiguration, idx)
			}
		}
	}
	total := 0.0
	for vi, pl := range s.Plans {
		r := model.Route{Vehicle: vehicles[vi]}
		for _, idx := range pl.Order {
			r.Orders = append(r.Orders, orders[idx])
		}
		c, err := RouteCost(r, unit)
		if err != nil {
			return 0, err
		}
		total += c
	}
	return total, nil
}

// RouteCost returns the distance of one route: start to first pickup, each pickup to dropoff,
// and each dropoff to the next pickup. There is no return leg.
func RouteCost(r model.Route, unit geo.Unit) (float64, error) {
	if len(r.Orders) == 0 {
		if !unit.Valid() {
			return 0, fmt.Errorf("%w: %q", geo.ErrInvalidUnit, string(unit))
		}
		return 0, nil
	}
	c := 0.0
	cur := r.Vehicle.Location
	for _, o := range r.Orders {
		toPickup, err := geo.Distance(cur, o.Pickup, unit)
		if err != nil {
			return 0, err
		}
		service, err := geo.Distance(o.Pickup, o.Dropoff, unit)
		if err != nil {
			return 0, err
		}
		c += toPickup
		c += service
		cur = o.Dropoff
	}
	return c, nil
}
