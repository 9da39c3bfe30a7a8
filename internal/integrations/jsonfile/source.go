// Package jsonfile reads a solve request body from a file or stdin.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"vrp/internal/integrations"
	"vrp/internal/model"
)

// Source reads Path, or Stdin when Path is "-".
type Source struct {
	Path  string
	Stdin io.Reader
}

func (s Source) Name() string { return "jsonfile" }

func (s Source) Load(ctx context.Context) (model.SolveRequest, error) {
	var req model.SolveRequest
	if s.Path == "" {
		return req, integrations.ErrMissingInput
	}
	var r io.Reader
	if s.Path == "-" {
		r = s.Stdin
		if r == nil {
			r = os.Stdin
		}
	} else {
		f, err := os.Open(s.Path)
		if err != nil {
			return req, err
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("decode %s: %w", s.Path, err)
	}
	return req, ctx.Err()
}

var _ integrations.Source = Source{}
