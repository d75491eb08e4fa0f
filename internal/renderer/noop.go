package renderer

import (
	"context"
	"errors"
)

// Noop implements the renderer interface but always returns an error to
// indicate that local rendering is not available in the current build.
type Noop struct{}

// NewNoop creates a new Noop renderer.
func NewNoop() *Noop {
	return &Noop{}
}

// Screenshot returns an error since this is a stub implementation.
func (Noop) Screenshot(_ context.Context, _ string) ([]byte, error) {
	return nil, errors.New("local renderer not configured")
}
