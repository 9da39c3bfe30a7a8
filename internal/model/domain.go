package model

import (
	"errors"
	"fmt"
	"strings"

	"vrp/internal/geo"
)

// ErrInvalidID is returned for a blank vehicle or order id.
var ErrInvalidID = errors.New("model: invalid id")

// Vehicle is a fleet member positioned at Location. Values are immutable; use WithLocation for a moved copy.
type Vehicle struct {
	ID       string
	Location geo.Point
}

// NewVehicle validates and builds a Vehicle. The id is trimmed.
func NewVehicle(id string, lat, lon float64) (Vehicle, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Vehicle{}, fmt.Errorf("%w: vehicle id cannot be empty", ErrInvalidID)
	}
	loc := geo.Point{Lat: lat, Lon: lon}
	if err := geo.ValidatePoint(loc); err != nil {
		return Vehicle{}, fmt.Errorf("vehicle %s: %w", id, err)
	}
	return Vehicle{ID: id, Location: loc}, nil
}

// WithLocation returns a copy of v at the new position.
func (v Vehicle) WithLocation(lat, lon float64) (Vehicle, error) {
	return NewVehicle(v.ID, lat, lon)
}

// Validate checks the id and location of a Vehicle built without NewVehicle.
func (v Vehicle) Validate() error {
	_, err := NewVehicle(v.ID, v.Location.Lat, v.Location.Lon)
	return err
}

func (v Vehicle) String() string { return fmt.Sprintf("Vehicle(%s @ %s)", v.ID, v.Location) }

// Order is a pickup and dropoff pair.
type Order struct {
	ID      string
	Pickup  geo.Point
	Dropoff geo.Point
}

// NewOrder validates and builds an Order. The id is trimmed.
func NewOrder(id string, pickupLat, pickupLon, dropoffLat, dropoffLon float64) (Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Order{}, fmt.Errorf("%w: order id cannot be empty", ErrInvalidID)
	}
	o := Order{
		ID:      id,
		Pickup:  geo.Point{Lat: pickupLat, Lon: pickupLon},
		Dropoff: geo.Point{Lat: dropoffLat, Lon: dropoffLon},
	}
	if err := geo.ValidatePoint(o.Pickup); err != nil {
		return Order{}, fmt.Errorf("order %s pickup: %w", id, err)
	}
	if err := geo.ValidatePoint(o.Dropoff); err != nil {
		return Order{}, fmt.Errorf("order %s dropoff: %w", id, err)
	}
	return o, nil
}

// Validate checks the id and both locations of an Order built without NewOrder.
func (o Order) Validate() error {
	_, err := NewOrder(o.ID, o.Pickup.Lat, o.Pickup.Lon, o.Dropoff.Lat, o.Dropoff.Lon)
	return err
}

func (o Order) String() string {
	return fmt.Sprintf("Order(%s: %s -> %s)", o.ID, o.Pickup, o.Dropoff)
}

// Route is one vehicle and the orders it serves, in visiting order.
type Route struct {
	Vehicle Vehicle
	Orders  []Order
}

// NewRoute returns an empty route for v.
func NewRoute(v Vehicle) *Route { return &Route{Vehicle: v, Orders: []Order{}} }

// Add appends o to the end of the route.
func (r *Route) Add(o Order) { r.Orders = append(r.Orders, o) }

// Remove drops the first order with the given id.
func (r *Route) Remove(id string) bool {
	for i, o := range r.Orders {
		if o.ID == id {
			r.Orders = append(r.Orders[:i], r.Orders[i+1:]...)
			return true
		}
	}
	return false
}

// Find returns the order with the given id.
func (r *Route) Find(id string) (Order, bool) {
	for _, o := range r.Orders {
		if o.ID == id {
			return o, true
		}
	}
	return Order{}, false
}

func (r *Route) Len() int      { return len(r.Orders) }
func (r *Route) IsEmpty() bool { return len(r.Orders) == 0 }
func (r *Route) Clear()        { r.Orders = r.Orders[:0] }

// OrderIDs returns the order ids in visiting order.
func (r *Route) OrderIDs() []string {
	ids := make([]string, len(r.Orders))
	for i, o := range r.Orders {
		ids[i] = o.ID
	}
	return ids
}

func (r *Route) String() string {
	return fmt.Sprintf("Route(%s: [%s])", r.Vehicle.ID, strings.Join(r.OrderIDs(), ", "))
}
