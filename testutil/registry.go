package testutil

import (
	"time"

	"github.com/funcbox/funcbox"
)

// NewTestRegistry returns a Registry with long timeout and panic recovery enabled,
// suitable for tests.
func NewTestRegistry(tools ...funcbox.Tool) *funcbox.Registry {
	reg := funcbox.NewRegistry(
		funcbox.WithDefaultTimeout(30*time.Second),
		funcbox.WithRecoverPanics(true),
	)
	for _, t := range tools {
		reg.Register(t)
	}
	return reg
}
