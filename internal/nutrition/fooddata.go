package nutrition

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/extract-relay/internal/model"
	"github.com/sells-group/extract-relay/internal/resilience"
	"github.com/sells-group/extract-relay/pkg/fooddata"
)

// nutrientNames maps FoodData Central nutrient numbers to measurement names.
var nutrientNames = map[string]string{
	"208": PrimaryMeasurement,
	"203": "protein",
	"204": "fat",
	"205": "carbohydrates",
	"291": "fiber",
	"269": "sugar",
	"307": "sodium",
}

// FoodDataSource resolves references with the USDA FoodData Central search
// API. The first search hit wins; its nutrients are per 100 g.
type FoodDataSource struct {
	client  fooddata.Client
	breaker *resilience.Breaker
}

// NewFoodDataSource wraps client. breaker may be nil.
func NewFoodDataSource(client fooddata.Client, breaker *resilience.Breaker) *FoodDataSource {
	return &FoodDataSource{client: client, breaker: breaker}
}

// Lookup implements ReferenceSource.
func (s *FoodDataSource) Lookup(ctx context.Context, name string) (*model.ReferenceRecord, error) {
	search := func(ctx context.Context) (*fooddata.SearchResult, error) {
		return s.client.Search(ctx, name, 1)
	}
	var res *fooddata.SearchResult
	var err error
	if s.breaker != nil {
		res, err = resilience.Call(ctx, s.breaker, search)
	} else {
		res, err = search(ctx)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "nutrition: fooddata search %q", name)
	}
	if len(res.Foods) == 0 {
		return nil, eris.Wrapf(ErrReferenceMiss, "nutrition: fooddata %q", name)
	}
	return reduceFood(name, res.Foods[0]), nil
}

// reduceFood keeps the tracked nutrients of f. Energy is only taken in kcal.
func reduceFood(name string, f fooddata.Food) *model.ReferenceRecord {
	rec := &model.ReferenceRecord{
		SubjectName:       name,
		ReferenceQuantity: 100,
		ReferenceUnit:     "g",
		SourceID:          "fdc:" + strconv.FormatInt(f.FdcID, 10),
		Measurements:      []model.Measurement{},
	}
	seen := make(map[string]bool)
	for _, n := range f.FoodNutrients {
		mname, ok := nutrientNames[n.NutrientNumber]
		if !ok || seen[mname] {
			continue
		}
		unit := strings.ToLower(n.UnitName)
		if mname == PrimaryMeasurement && unit != "kcal" {
			continue
		}
		seen[mname] = true
		rec.Measurements = append(rec.Measurements, model.Measurement{Name: mname, Value: n.Value, Unit: unit})
	}
	return rec
}
