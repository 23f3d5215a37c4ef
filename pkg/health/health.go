package health

import (
	"context"

	"github.com/aegislabs/aegis/pkg/types"
)

// Checker is the interface all health probes implement. A probe is a pure
// measurement; it never mutates state.
type Checker interface {
	// Check performs the probe and returns the result.
	Check(ctx context.Context) types.HealthResult

	// Component returns the label the probe reports under.
	Component() string
}
