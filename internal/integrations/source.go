// Package integrations loads solve problems from external inputs.
package integrations

import (
	"context"
	"errors"

	"vrp/internal/model"
)

// ErrMissingInput is returned when a source has nothing to read from.
var ErrMissingInput = errors.New("integrations: missing input")

// Source yields one solve request.
type Source interface {
	Name() string
	Load(ctx context.Context) (model.SolveRequest, error)
}
