package opt

import (
	"errors"
	"fmt"

	"vrp/internal/geo"
	"vrp/internal/model"
)

var (
	// ErrEmptyInput is returned when the vehicle or order list is empty.
	ErrEmptyInput = errors.New("opt: empty input")
	// ErrConfiguration is returned for an out-of-range solver parameter.
	ErrConfiguration = errors.New("opt: invalid configuration")
	// ErrDuplicateID is returned when two vehicles or two orders share an id.
	ErrDuplicateID = errors.New("opt: duplicate id")
)

// Error kinds reported to callers.
const (
	KindInvalidCoordinate = "invalid_coordinate"
	KindInvalidUnit       = "invalid_unit"
	KindInvalidID         = "invalid_id"
	KindEmptyInput        = "empty_input"
	KindConfiguration     = "configuration"
	KindDuplicateID       = "duplicate_id"
)

// ErrorKind maps an input-validation error to its kind, or "" for anything else.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, geo.ErrInvalidCoordinate):
		return KindInvalidCoordinate
	case errors.Is(err, geo.ErrInvalidUnit):
		return KindInvalidUnit
	case errors.Is(err, model.ErrInvalidID):
		return KindInvalidID
	case errors.Is(err, ErrEmptyInput):
		return KindEmptyInput
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrDuplicateID):
		return KindDuplicateID
	}
	return ""
}

// CheckUnique reports the first repeated vehicle or order id.
func CheckUnique(vehicles []model.Vehicle, orders []model.Order) error {
	seen := make(map[string]struct{}, len(vehicles))
	for _, v := range vehicles {
		if _, dup := seen[v.ID]; dup {
			return fmt.Errorf("%w: Vehicle IDs must be unique, %q repeats", ErrDuplicateID, v.ID)
		}
		seen[v.ID] = struct{}{}
	}
	seen = make(map[string]struct{}, len(orders))
	for _, o := range orders {
		if _, dup := seen[o.ID]; dup {
			return fmt.Errorf("%w: Order IDs must be unique, %q repeats", ErrDuplicateID, o.ID)
		}
		seen[o.ID] = struct{}{}
	}
	return nil
}

// checkInput runs the shared preconditions of Greedy and Anneal.
func checkInput(vehicles []model.Vehicle, orders []model.Order) error {
	if len(vehicles) == 0 {
		return fmt.Errorf("%w: vehicles list cannot be empty", ErrEmptyInput)
	}
	if len(orders) == 0 {
		return fmt.Errorf("%w: orders list cannot be empty", ErrEmptyInput)
	}
	for _, v := range vehicles {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	for _, o := range orders {
		if err := o.Validate(); err != nil {
			return err
		}
	}
	return CheckUnique(vehicles, orders)
}
