package driver

import (
	"math"
	"time"

	"github.com/grindlemire/go-tagquery/pkg/query/expr"
	"github.com/grindlemire/go-tagquery/pkg/query/metatag"
	"github.com/olivere/elastic/v7"
	"github.com/pkg/errors"
)

// DefaultRankWindow bounds order:rank to recent posts when Options leaves it unset.
const DefaultRankWindow = 48 * time.Hour

// rankScript weighs the log of the score against the age of the post.
const rankScript = "Math.log(doc['score'].value) / params.log3 + " +
	"(doc['created_at'].value.millis / 1000 - params.date2005_05_24) / 35000"

// date2005_05_24 is the epoch of the rank time decay, in seconds.
const date2005_05_24 = 1116936000

// Options control how a query is lowered.
type Options struct {
	// MaxTags is the tag quota. Zero disables the check.
	MaxTags int
	// FreeTagsCount is the part of the quota the caller has already spent.
	FreeTagsCount int
	// EnableSafeMode requires rating:s.
	EnableSafeMode bool
	// AlwaysShowDeleted drops the implicit deleted filter regardless of status.
	AlwaysShowDeleted bool
	// Now anchors order:rank. Zero uses the wall clock.
	Now time.Time
	// RankWindow is how far back order:rank looks.
	RankWindow time.Duration
}

// Search is a lowered query: the bool query, its sort and the directives that came with it.
type Search struct {
	Query elastic.Query
	Sort  []SortField
	// OrderKey is the order that was applied, after inversion and defaults.
	OrderKey string
	// Limit is the root limit:n, zero when there is none.
	Limit int
}

// Sorters converts the sort tuples into elastic sorters.
func (s *Search) Sorters() []elastic.Sorter {
	sorters := make([]elastic.Sorter, 0, len(s.Sort))
	for _, f := range s.Sort {
		sorters = append(sorters, f.Sorter())
	}
	return sorters
}

// SearchSource builds the request body.
func (s *Search) SearchSource() *elastic.SearchSource {
	return elastic.NewSearchSource().Query(s.Query).SortBy(s.Sorters()...)
}

// Source renders the request body as the structure sent to the cluster.
func (s *Search) Source() (any, error) {
	return s.SearchSource().Source()
}

// ElasticDriver lowers parsed tag queries into elasticsearch bool queries.
type ElasticDriver struct {
	base
}

// NewElasticDriver creates a driver for the post index.
func NewElasticDriver() ElasticDriver {
	fns := map[metatag.Key]lowerFN{
		metatag.Status: status,
		metatag.Locked: locked,
		metatag.Voted:  voted,
	}

	return ElasticDriver{
		base{
			lowerFNs: fns,
		},
	}
}

// Render lowers the query. It fails if the query is malformed or uses more of the tag quota
// than allowed.
func (d ElasticDriver) Render(q *expr.Query, opts Options) (*Search, error) {
	if err := expr.Validate(q, 0); err != nil {
		return nil, err
	}
	if err := checkQuota(q, opts.MaxTags, opts.FreeTagsCount); err != nil {
		return nil, errors.WithStack(err)
	}

	c := d.group(q.Root)

	if !opts.AlwaysShowDeleted && HideDeleted(q.Root) {
		c.add(elastic.NewTermQuery(deletedField, true), expr.MustNot)
	}
	if opts.EnableSafeMode && !constrainsSafeRating(q.Root) {
		c.add(elastic.NewTermQuery(ratingField, safeRating), expr.Must)
	}

	orderKey, inverted, found := q.Order()
	if !found {
		orderKey = DefaultOrder
	}
	key, o := resolveOrder(orderKey, inverted)

	if o.requires != "" {
		c.add(elastic.NewExistsQuery(o.requires), expr.Must)
	}

	search := &Search{
		Sort:     o.sort,
		OrderKey: key,
	}
	if limit, found := q.Limit(); found {
		search.Limit = limit
	}

	switch o.score {
	case rankScore:
		now := opts.Now
		if now.IsZero() {
			now = time.Now()
		}
		window := opts.RankWindow
		if window <= 0 {
			window = DefaultRankWindow
		}
		c.add(elastic.NewRangeQuery("score").Gt(0), expr.Must)
		c.add(elastic.NewRangeQuery("created_at").Gte(now.Add(-window)), expr.Must)
		search.Query = rank(c.query())
	case randomScore:
		seed, hasSeed := q.RandomSeed()
		search.Query = random(c.query(), seed, hasSeed)
	default:
		search.Query = c.query()
	}
	return search, nil
}

func rank(q elastic.Query) elastic.Query {
	script := elastic.NewScript(rankScript).Params(map[string]any{
		"log3":           math.Log(3),
		"date2005_05_24": date2005_05_24,
	})
	return elastic.NewFunctionScoreQuery().
		Query(q).
		AddScoreFunc(elastic.NewScriptFunction(script)).
		BoostMode("replace")
}

func random(q elastic.Query, seed int64, hasSeed bool) elastic.Query {
	fn := elastic.NewRandomFunction()
	if hasSeed {
		fn = fn.Seed(seed).Field(idField)
	}
	return elastic.NewFunctionScoreQuery().
		Query(q).
		AddScoreFunc(fn).
		BoostMode("replace")
}
