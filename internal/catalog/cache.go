package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Yrrrrrf/crud-forge/internal/contract"
	"github.com/Yrrrrrf/crud-forge/internal/model"
	"github.com/Yrrrrrf/crud-forge/internal/relation"
	"github.com/Yrrrrrf/crud-forge/internal/routine"
	"github.com/Yrrrrrf/crud-forge/internal/typemap"
)

// Cache publishes the current snapshot of one service. It is safe for
// concurrent use.
type Cache struct {
	current atomic.Pointer[Snapshot]
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// NewCacheFrom returns a cache already holding s.
func NewCacheFrom(s *Snapshot) *Cache {
	c := &Cache{}
	c.current.Store(s)
	return c
}

// Snapshot returns the published snapshot, or ErrNotLoaded if no load has
// completed yet.
func (c *Cache) Snapshot() (*Snapshot, error) {
	s := c.current.Load()
	if s == nil {
		return nil, ErrNotLoaded
	}
	return s, nil
}

// swap publishes s and returns the snapshot it replaced.
func (c *Cache) swap(s *Snapshot) *Snapshot {
	return c.current.Swap(s)
}

// Source is the catalog access a Loader needs. connector.Connector
// satisfies it.
type Source interface {
	relation.Source
	routine.Source
}

// Options configures a Loader.
type Options struct {
	Service   string
	Driver    string
	Relations relation.Options
	Routines  routine.Options
	// Resolver is shared by both passes and by shape derivation. It
	// overrides the resolvers in Relations and Routines.
	Resolver *typemap.Resolver
	Logger   *slog.Logger
}

// Loader reflects a service's schema and publishes it to its Cache.
type Loader struct {
	src    Source
	opts   Options
	cache  *Cache
	logger *slog.Logger

	mu sync.Mutex // serializes loads
}

// NewLoader creates a loader publishing to a new, empty cache.
func NewLoader(src Source, opts Options) *Loader {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Resolver == nil {
		opts.Resolver = typemap.New()
	}
	return &Loader{
		src:    src,
		opts:   opts,
		cache:  NewCache(),
		logger: logger.With("service", opts.Service),
	}
}

// Cache returns the cache this loader publishes to.
func (l *Loader) Cache() *Cache {
	return l.cache
}

// Load reflects relations and routines, derives their shapes and publishes
// the result. The new snapshot is only published once it is complete; on
// error the previously published snapshot stays in place. When a previous
// snapshot exists, the schema drift between the two is logged.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()

	relOpts := l.opts.Relations
	relOpts.Resolver = l.opts.Resolver
	relOpts.Logger = l.logger
	result, err := relation.Load(ctx, l.src, relOpts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", l.opts.Service, err)
	}

	routineOpts := l.opts.Routines
	routineOpts.Resolver = l.opts.Resolver
	routineOpts.Logger = l.logger
	if len(routineOpts.Schemas) == 0 {
		routineOpts.Schemas = result.Schemas
	}
	routines, err := routine.Discover(ctx, l.src, routineOpts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", l.opts.Service, err)
	}

	doc := Document{
		Service:   l.opts.Service,
		Driver:    l.opts.Driver,
		LoadedAt:  time.Now().UTC(),
		Schemas:   result.Schemas,
		Relations: make([]model.Relation, 0, len(result.Relations)),
		Routines:  routines,
	}
	for _, name := range sortedNames(result.Relations) {
		doc.Relations = append(doc.Relations, result.Relations[name])
	}
	snap := newSnapshot(doc, l.opts.Resolver)

	if prev := l.cache.swap(snap); prev != nil {
		l.logDrift(Diff(prev, snap))
	}

	st := snap.Stats()
	l.logger.Info("schema model published",
		"schemas", st.Schemas,
		"tables", st.Tables,
		"views", st.Views,
		"functions", st.Functions,
		"procedures", st.Procedures,
		"triggers", st.Triggers,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return snap, nil
}

func (l *Loader) logDrift(report contract.Report) {
	for _, item := range report.Items {
		l.logger.Debug("schema drift", "type", item.Type, "category", item.Category,
			"object", item.Object, "member", item.Member)
	}
	switch {
	case report.HasBreaking:
		l.logger.Warn("breaking schema drift since last load",
			"breaking", report.BreakingCount, "additive", report.AdditiveCount)
	case report.HasDrift:
		l.logger.Info("schema drift since last load", "additive", report.AdditiveCount)
	}
}
