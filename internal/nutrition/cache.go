package nutrition

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/extract-relay/internal/model"
)

// DefaultCacheSize bounds CachedSource when no size is given.
const DefaultCacheSize = 512

// CachedSource memoizes hits of another source and collapses concurrent
// lookups of the same name into one call. Misses and errors are not cached.
type CachedSource struct {
	next  ReferenceSource
	cache *lru.Cache[string, *model.ReferenceRecord]
	group singleflight.Group
}

// NewCachedSource wraps next with an LRU of size entries.
func NewCachedSource(next ReferenceSource, size int) (*CachedSource, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *model.ReferenceRecord](size)
	if err != nil {
		return nil, eris.Wrap(err, "nutrition: create reference cache")
	}
	return &CachedSource{next: next, cache: cache}, nil
}

// Lookup implements ReferenceSource. Callers receive their own copy. The
// shared lookup does not inherit any one caller's cancellation; each caller
// stops waiting when its own ctx ends.
func (c *CachedSource) Lookup(ctx context.Context, name string) (*model.ReferenceRecord, error) {
	if r, ok := c.cache.Get(name); ok {
		return cloneRecord(r), nil
	}
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(name, func() (any, error) {
		r, err := c.next.Lookup(flightCtx, name)
		if err != nil {
			return nil, err
		}
		c.cache.Add(name, r)
		return r, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneRecord(res.Val.(*model.ReferenceRecord)), nil
	case <-ctx.Done():
		return nil, eris.Wrapf(ctx.Err(), "nutrition: lookup %q", name)
	}
}

func cloneRecord(r *model.ReferenceRecord) *model.ReferenceRecord {
	out := *r
	out.Measurements = make([]model.Measurement, len(r.Measurements))
	copy(out.Measurements, r.Measurements)
	return &out
}
