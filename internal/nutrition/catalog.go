package nutrition

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/extract-relay/internal/model"
)

// CatalogSource serves references from a YAML file:
//
//	references:
//	  - name: banana
//	    quantity: 100
//	    unit: g
//	    measurements:
//	      - {name: energy, value: 89, unit: kcal}
type CatalogSource struct {
	records map[string]model.ReferenceRecord
}

// LoadCatalog reads a catalog file.
func LoadCatalog(path string) (*CatalogSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "nutrition: read catalog %s", path)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes catalog YAML. Duplicate names keep the last entry.
func ParseCatalog(data []byte) (*CatalogSource, error) {
	var doc struct {
		References []model.ReferenceRecord `yaml:"references"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "nutrition: parse catalog")
	}
	records := make(map[string]model.ReferenceRecord, len(doc.References))
	for i, r := range doc.References {
		if r.SubjectName == "" {
			return nil, eris.Errorf("nutrition: catalog entry %d has no name", i)
		}
		if r.Measurements == nil {
			r.Measurements = []model.Measurement{}
		}
		records[r.SubjectName] = r
	}
	return &CatalogSource{records: records}, nil
}

// Len returns the number of catalog entries.
func (c *CatalogSource) Len() int { return len(c.records) }

// Lookup implements ReferenceSource with an exact name match.
func (c *CatalogSource) Lookup(_ context.Context, name string) (*model.ReferenceRecord, error) {
	r, ok := c.records[name]
	if !ok {
		return nil, eris.Wrapf(ErrReferenceMiss, "nutrition: catalog %q", name)
	}
	return cloneRecord(&r), nil
}
