// Package tagquery compiles booru style tag searches into elasticsearch bool queries and sorts.
//
// A query such as `cat -dog ~red ~blue score:>10 order:score` is tokenized, parsed into a tree
// of groups, tags and metatags, alias resolved and finally lowered by pkg/driver.
package tagquery

import (
	"time"

	"github.com/grindlemire/go-tagquery/internal/metrics"
	"github.com/grindlemire/go-tagquery/pkg/alias"
	"github.com/grindlemire/go-tagquery/pkg/config"
	"github.com/grindlemire/go-tagquery/pkg/driver"
	"github.com/grindlemire/go-tagquery/pkg/query/expr"
	"github.com/grindlemire/go-tagquery/pkg/query/parse"
	"github.com/grindlemire/go-tagquery/pkg/value"
	"go.uber.org/zap"
)

var elasticDriver = driver.NewElasticDriver()

// Request carries the per search settings of a compile.
type Request struct {
	// ResolveAliases maps tags onto their canonical names with the compiler's resolver.
	ResolveAliases bool
	// FreeTagsCount is the part of the tag quota the caller has already used.
	FreeTagsCount int
	// EnableSafeMode restricts results to rating:s.
	EnableSafeMode bool
	// AlwaysShowDeleted never adds the implicit deleted filter.
	AlwaysShowDeleted bool
	// MaxTags is the tag quota. Zero disables it.
	MaxTags int
	// MaxGroupDepth overrides the configured nesting limit when positive.
	MaxGroupDepth int
}

// Compiler compiles tag queries. It is safe for concurrent use once built.
type Compiler struct {
	cfg       *config.Config
	resolver  alias.Resolver
	directory parse.Directory
	clock     func() time.Time
	logger    *zap.Logger
	metrics   *metrics.Metrics
	defaults  Request
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithResolver sets the alias resolver.
func WithResolver(r alias.Resolver) Option {
	return func(c *Compiler) {
		c.resolver = r
	}
}

// WithoutAliasResolution leaves tag names as they were typed by default.
func WithoutAliasResolution() Option {
	return func(c *Compiler) {
		c.defaults.ResolveAliases = false
	}
}

// WithDirectory sets the collaborator resolving user, pool and set names.
func WithDirectory(d parse.Directory) Option {
	return func(c *Compiler) {
		c.directory = d
	}
}

// WithClock sets the clock relative dates and order:rank are anchored on.
func WithClock(clock func() time.Time) Option {
	return func(c *Compiler) {
		c.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// WithMetrics records compiles.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Compiler) {
		c.metrics = m
	}
}

// WithSafeMode turns safe mode on by default.
func WithSafeMode(enabled bool) Option {
	return func(c *Compiler) {
		c.defaults.EnableSafeMode = enabled
	}
}

// WithAlwaysShowDeleted drops the implicit deleted filter by default.
func WithAlwaysShowDeleted(enabled bool) Option {
	return func(c *Compiler) {
		c.defaults.AlwaysShowDeleted = enabled
	}
}

// WithFreeTagsCount sets the part of the quota spent by default.
func WithFreeTagsCount(n int) Option {
	return func(c *Compiler) {
		c.defaults.FreeTagsCount = n
	}
}

// WithMaxTags overrides the configured tag quota.
func WithMaxTags(n int) Option {
	return func(c *Compiler) {
		c.defaults.MaxTags = n
	}
}

// NewCompiler creates a compiler. A nil config uses config.Default.
func NewCompiler(cfg *config.Config, opts ...Option) *Compiler {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Compiler{
		cfg:      cfg,
		resolver: alias.Identity,
		clock:    time.Now,
		logger:   zap.NewNop(),
		defaults: Request{
			ResolveAliases: true,
			MaxTags:        cfg.MaxTags,
			MaxGroupDepth:  cfg.MaxGroupDepth,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultRequest is the request Compile uses.
func (c *Compiler) DefaultRequest() Request {
	return c.defaults
}

// Compile compiles a query with the default request.
func (c *Compiler) Compile(query string) (*driver.Search, error) {
	return c.CompileRequest(query, c.defaults)
}

// CompileRequest compiles a query with per search settings.
func (c *Compiler) CompileRequest(query string, req Request) (*driver.Search, error) {
	start := time.Now()

	q, err := c.parse(query, req)
	if err != nil {
		c.failed(start, query, err)
		return nil, err
	}

	search, err := elasticDriver.Render(q, driver.Options{
		MaxTags:           req.MaxTags,
		FreeTagsCount:     req.FreeTagsCount,
		EnableSafeMode:    req.EnableSafeMode,
		AlwaysShowDeleted: req.AlwaysShowDeleted,
		Now:               c.clock(),
		RankWindow:        c.cfg.RankWindow,
	})
	if err != nil {
		c.failed(start, query, err)
		return nil, err
	}

	c.metrics.ObserveCompile(start, metrics.ResultOK, driver.CountTags(q.Root))
	c.logger.Debug("compiled tag query",
		zap.String("query", query),
		zap.String("order", search.OrderKey),
		zap.Duration("took", time.Since(start)),
	)
	return search, nil
}

// Parse runs the tokenizer and the parser with the default request, returning the tree
// that would be lowered.
func (c *Compiler) Parse(query string) (*expr.Query, error) {
	return c.parse(query, c.defaults)
}

func (c *Compiler) parse(query string, req Request) (*expr.Query, error) {
	depth := req.MaxGroupDepth
	if depth <= 0 {
		depth = c.cfg.MaxGroupDepth
	}
	values := value.New(c.clock, c.cfg.Location(), c.cfg.MaxInValues)

	opts := parse.Options{
		MaxTokens:     c.cfg.MaxTokens,
		MaxGroupDepth: depth,
		Strict:        c.cfg.StrictMetatags,
		IsFree:        c.cfg.IsUnlimitedTag,
		Directory:     c.directory,
		Values:        &values,
		MaxInValues:   c.cfg.MaxInValues,
	}
	if req.ResolveAliases && c.resolver != nil {
		opts.Resolver = c.resolver
	}
	return parse.String(query, opts)
}

func (c *Compiler) failed(start time.Time, query string, err error) {
	if IsUserError(err) {
		c.metrics.ObserveCompile(start, metrics.ResultUserError, 0)
		c.logger.Debug("rejected tag query", zap.String("query", query), zap.Error(err))
		return
	}
	c.metrics.ObserveCompile(start, metrics.ResultError, 0)
	c.logger.Warn("unable to compile tag query", zap.String("query", query), zap.Error(err))
}
