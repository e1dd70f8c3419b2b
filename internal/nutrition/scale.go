package nutrition

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/extract-relay/internal/model"
)

// gramsPer converts mass units to grams.
var gramsPer = map[string]float64{
	"g":     1,
	"gram":  1,
	"grams": 1,
	"kg":    1000,
	"mg":    0.001,
	"oz":    28.349523125,
	"lb":    453.59237,
	"lbs":   453.59237,
}

// Scale computes est.Quantity / ref.ReferenceQuantity and multiplies every
// reference measurement by it, at full precision. A measurement that scales
// to zero is kept as zero. Units must match, or both be mass units; an empty
// estimate unit is read as the reference unit.
func Scale(est model.EstimateRecord, ref model.ReferenceRecord) (model.ScaledSubject, error) {
	out := model.ScaledSubject{
		Estimate:       est,
		Reference:      &ref,
		ReferenceFound: true,
		Measurements:   []model.ScaledMeasurement{},
	}

	qRef := ref.ReferenceQuantity
	if !finite(qRef) || qRef <= 0 {
		return out, eris.Wrapf(ErrScalingUndefined, "nutrition: %q reference quantity %v", est.Name, qRef)
	}
	if !finite(est.Quantity) || est.Quantity < 0 {
		return out, eris.Wrapf(ErrScalingUndefined, "nutrition: %q estimated quantity %v", est.Name, est.Quantity)
	}

	qEst, err := convert(est.Quantity, est.Unit, ref.ReferenceUnit)
	if err != nil {
		return out, eris.Wrapf(err, "nutrition: %q", est.Name)
	}

	factor := qEst / qRef
	out.ScalingFactor = factor
	for _, m := range ref.Measurements {
		out.Measurements = append(out.Measurements, model.ScaledMeasurement{
			Name:       m.Name,
			Calculated: factor * m.Value,
			Unit:       m.Unit,
		})
	}
	return out, nil
}

// convert expresses q (in unit from) in unit to.
func convert(q float64, from, to string) (float64, error) {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	if from == "" || from == to {
		return q, nil
	}
	f, fok := gramsPer[from]
	t, tok := gramsPer[to]
	if !fok || !tok {
		return 0, eris.Wrapf(ErrScalingUndefined, "unit %q does not convert to %q", from, to)
	}
	return q * f / t, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
