// Package nutrition estimates food quantities from an image and scales
// reference nutrient profiles to them.
package nutrition

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/extract-relay/internal/model"
)

var (
	// ErrReferenceMiss means no reference record matched a subject name.
	ErrReferenceMiss = eris.New("no reference record")
	// ErrScalingUndefined means a subject cannot be scaled, e.g. a zero
	// reference quantity or incompatible units.
	ErrScalingUndefined = eris.New("scaling undefined")
)

// PrimaryMeasurement is the measurement reported as calories.
const PrimaryMeasurement = "energy"

// ReferenceSource looks up the reference profile for an exact subject name.
// It returns ErrReferenceMiss when nothing matches.
type ReferenceSource interface {
	Lookup(ctx context.Context, name string) (*model.ReferenceRecord, error)
}
