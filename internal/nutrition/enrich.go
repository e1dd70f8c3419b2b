package nutrition

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/extract-relay/internal/model"
)

// DefaultLookupConcurrency bounds parallel reference lookups.
const DefaultLookupConcurrency = 4

// Enricher resolves references for estimates and scales them.
type Enricher struct {
	source      ReferenceSource
	concurrency int
}

// NewEnricher creates an Enricher.
func NewEnricher(source ReferenceSource, concurrency int) *Enricher {
	if concurrency <= 0 {
		concurrency = DefaultLookupConcurrency
	}
	return &Enricher{source: source, concurrency: concurrency}
}

// Lookup resolves every estimate's reference concurrently. The result is
// index-aligned with estimates; a nil entry is a miss or a failed lookup,
// whose error is in the matching errs slot.
func (e *Enricher) Lookup(ctx context.Context, estimates []model.EstimateRecord) (refs []*model.ReferenceRecord, errs []error) {
	refs = make([]*model.ReferenceRecord, len(estimates))
	errs = make([]error, len(estimates))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, est := range estimates {
		g.Go(func() error {
			ref, err := e.source.Lookup(gCtx, est.Name)
			if err != nil {
				if !errors.Is(err, ErrReferenceMiss) {
					zap.L().Warn("nutrition: reference lookup failed",
						zap.String("name", est.Name),
						zap.Error(err),
					)
				}
				errs[i] = err
				return nil
			}
			refs[i] = ref
			return nil
		})
	}
	_ = g.Wait()
	return refs, errs
}

// ScaleAll scales each estimate against its looked-up reference. A miss
// yields empty measurements with referenceFound false. A failed lookup or
// scaling error is recorded on that subject only.
func ScaleAll(estimates []model.EstimateRecord, refs []*model.ReferenceRecord, errs []error) []model.ScaledSubject {
	out := make([]model.ScaledSubject, len(estimates))
	for i, est := range estimates {
		if refs[i] == nil {
			out[i] = model.ScaledSubject{Estimate: est, Measurements: []model.ScaledMeasurement{}}
			if errs[i] != nil && !errors.Is(errs[i], ErrReferenceMiss) {
				out[i].Error = errs[i].Error()
			}
			continue
		}
		scaled, err := Scale(est, *refs[i])
		if err != nil {
			zap.L().Info("nutrition: subject not scaled", zap.String("name", est.Name), zap.Error(err))
			scaled.Measurements = []model.ScaledMeasurement{}
			scaled.Error = err.Error()
		}
		out[i] = scaled
	}
	return out
}

// Enrich looks references up and scales them, keeping input order.
func (e *Enricher) Enrich(ctx context.Context, estimates []model.EstimateRecord) []model.ScaledSubject {
	refs, errs := e.Lookup(ctx, estimates)
	return ScaleAll(estimates, refs, errs)
}
