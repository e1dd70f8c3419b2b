package nutrition

import (
	"math"

	"github.com/sells-group/extract-relay/internal/model"
)

// Round rounds half away from zero.
func Round(f float64) int64 {
	return int64(math.Round(f))
}

// Present rounds scaled subjects for delivery. Totals are summed from the
// unrounded values and rounded last.
func Present(subjects []model.ScaledSubject) ([]model.PresentedSubject, map[string]int64) {
	items := make([]model.PresentedSubject, 0, len(subjects))
	sums := make(map[string]float64)

	for _, s := range subjects {
		p := model.PresentedSubject{
			Name:              s.Estimate.Name,
			EstimatedQuantity: s.Estimate.Quantity,
			Unit:              s.Estimate.Unit,
			ReferenceFound:    s.ReferenceFound,
			ScalingFactor:     s.ScalingFactor,
			Nutrients:         make(map[string]int64, len(s.Measurements)),
			Metadata:          s.Estimate.Metadata,
			Error:             s.Error,
		}
		if s.Reference != nil {
			p.ReferenceQuantity = s.Reference.ReferenceQuantity
			p.ReferenceUnit = s.Reference.ReferenceUnit
		}
		for _, m := range s.Measurements {
			p.Nutrients[m.Name] = Round(m.Calculated)
			sums[m.Name] += m.Calculated
			if m.Name == PrimaryMeasurement {
				cal := Round(m.Calculated)
				p.Calories = &cal
			}
		}
		items = append(items, p)
	}

	totals := make(map[string]int64, len(sums))
	for name, v := range sums {
		totals[name] = Round(v)
	}
	return items, totals
}
