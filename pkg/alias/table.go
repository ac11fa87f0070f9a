package alias

import (
	"context"
	"sync"
	"time"

	"github.com/grindlemire/go-tagquery/internal/metrics"
	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Loader fetches the full antecedent to consequent alias table.
type Loader interface {
	Load(ctx context.Context) (map[string]string, error)
}

// LoaderFunc adapts a function into a Loader.
type LoaderFunc func(ctx context.Context) (map[string]string, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context) (map[string]string, error) {
	return f(ctx)
}

// Table is a warm alias cache refreshed from a Loader. Entries that are not refreshed in time
// expire, so a loader that keeps failing degrades to resolving every name to itself.
type Table struct {
	cache    *ttlcache.Cache[string, string]
	capacity uint64
	loader   Loader
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	updated time.Time
}

// TableOption configures a Table.
type TableOption func(*Table)

// WithLogger sets the logger refresh failures are reported to.
func WithLogger(logger *zap.Logger) TableOption {
	return func(t *Table) {
		t.logger = logger
	}
}

// WithMetrics records refreshes.
func WithMetrics(m *metrics.Metrics) TableOption {
	return func(t *Table) {
		t.metrics = m
	}
}

// NewTable creates an empty table. ttl bounds how long an alias survives without a refresh and
// capacity bounds the number of aliases held.
func NewTable(loader Loader, ttl time.Duration, capacity uint64, opts ...TableOption) *Table {
	cacheOpts := []ttlcache.Option[string, string]{
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithDisableTouchOnHit[string, string](),
	}
	if capacity > 0 {
		cacheOpts = append(cacheOpts, ttlcache.WithCapacity[string, string](capacity))
	}

	t := &Table{
		cache:    ttlcache.New[string, string](cacheOpts...),
		capacity: capacity,
		loader:   loader,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Resolve implements Resolver.
func (t *Table) Resolve(name string) string {
	if item := t.cache.Get(name); item != nil && item.Value() != "" {
		return item.Value()
	}
	return name
}

// Len is the number of live aliases.
func (t *Table) Len() int {
	return t.cache.Len()
}

// Updated is the time of the last successful refresh.
func (t *Table) Updated() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updated
}

// Refresh loads the alias table and stores every entry. Aliases missing from the new table
// are removed.
func (t *Table) Refresh(ctx context.Context) error {
	aliases, err := t.loader.Load(ctx)
	t.metrics.ObserveRefresh(len(aliases), err)
	if err != nil {
		return errors.Wrap(err, "unable to load aliases")
	}
	if t.capacity > 0 && uint64(len(aliases)) > t.capacity {
		t.logger.Warn("alias table exceeds capacity, some aliases will not resolve",
			zap.Int("entries", len(aliases)),
			zap.Uint64("capacity", t.capacity),
		)
	}

	for _, key := range t.cache.Keys() {
		if _, found := aliases[key]; !found {
			t.cache.Delete(key)
		}
	}
	for antecedent, consequent := range aliases {
		t.cache.Set(antecedent, consequent, ttlcache.DefaultTTL)
	}

	t.mu.Lock()
	t.updated = time.Now()
	t.mu.Unlock()

	t.logger.Debug("refreshed aliases", zap.Int("entries", len(aliases)))
	return nil
}

// Run refreshes the table every interval until ctx is done. The first refresh happens
// immediately. Failed refreshes are logged and retried on the next tick.
func (t *Table) Run(ctx context.Context, interval time.Duration) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t.cache.Start()
	}()
	defer func() {
		t.cache.Stop()
		wg.Wait()
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := t.Refresh(ctx); err != nil {
			t.logger.Warn("alias refresh failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
