// Package quota enforces a per-owner daily request limit.
package quota

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrQuotaExceeded means the owner has used the day's allowance.
var ErrQuotaExceeded = eris.New("daily quota exceeded")

// DayLayout formats the counter's day key (UTC).
const DayLayout = "2006-01-02"

// Store is a counter keyed by owner and day. Increment is an atomic
// check-and-increment: the counter only moves while it is below limit, so
// rejected attempts are not counted.
type Store interface {
	Increment(ctx context.Context, owner, day string, limit int) (count int, ok bool, err error)
	Prune(ctx context.Context, before string) error
	Close() error
}

// Limiter applies a daily limit on top of a Store.
type Limiter struct {
	store Store
	limit int

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewLimiter creates a Limiter. A non-positive limit disables the check.
func NewLimiter(store Store, limit int) *Limiter {
	return &Limiter{store: store, limit: limit, nowFunc: time.Now}
}

// Allow consumes one unit of owner's allowance for today or returns
// ErrQuotaExceeded.
func (l *Limiter) Allow(ctx context.Context, owner string) error {
	if l == nil || l.limit <= 0 {
		return nil
	}
	day := l.nowFunc().UTC().Format(DayLayout)
	count, ok, err := l.store.Increment(ctx, owner, day, l.limit)
	if err != nil {
		return eris.Wrap(err, "quota: increment")
	}
	if !ok {
		zap.L().Info("quota: request rejected",
			zap.String("owner_id", owner),
			zap.String("day", day),
			zap.Int("count", count),
			zap.Int("limit", l.limit),
		)
		return ErrQuotaExceeded
	}
	return nil
}

// PruneBefore removes counters for days before today.
func (l *Limiter) PruneBefore(ctx context.Context) error {
	day := l.nowFunc().UTC().Format(DayLayout)
	return l.store.Prune(ctx, day)
}

// Limit returns the configured daily limit.
func (l *Limiter) Limit() int { return l.limit }

// Open builds the Store named by driver: memory, sqlite or postgres.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLite(ctx, dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("quota: unknown driver %q", driver)
	}
}
