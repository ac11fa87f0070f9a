package driver

import (
	"time"

	"github.com/grindlemire/go-tagquery/pkg/query/expr"
	"github.com/grindlemire/go-tagquery/pkg/query/metatag"
	"github.com/grindlemire/go-tagquery/pkg/value"
	"github.com/jinzhu/now"
	"github.com/olivere/elastic/v7"
)

// tagsField is the keyword field holding every tag of a post.
const tagsField = "tags"

// lowerFN lowers a predicate into a query and the occur it should be placed with. A nil query
// drops the predicate.
type lowerFN func(p expr.Predicate) (elastic.Query, expr.Occur)

// fields that every document has. Negated single sided ranges on them are rewritten into their
// complement, which the index can answer from the range alone.
var denseFields = map[string]struct{}{
	"id":            {},
	"width":         {},
	"height":        {},
	"score":         {},
	"fav_count":     {},
	"change_seq":    {},
	"tag_count":     {},
	"comment_count": {},
	"mpixels":       {},
	"aspect_ratio":  {},
	"file_size":     {},
	"created_at":    {},
}

func init() {
	for _, c := range metatag.Categories {
		denseFields[c.Field] = struct{}{}
	}
}

func compare(p expr.Predicate) (elastic.Query, expr.Occur) {
	field := p.Key.Field()
	cmp := p.Cmp
	occur := p.Occur

	if occur == expr.MustNot && !cmp.Negated && isSingleSided(cmp.Op) {
		if _, dense := denseFields[field]; dense {
			cmp = value.Invert(cmp)
			occur = expr.Must
		}
	}

	q, negate := comparison(field, cmp)
	return place(q, occur, negate)
}

func isSingleSided(op value.Op) bool {
	switch op {
	case value.Lt, value.Lte, value.Gt, value.Gte:
		return true
	}
	return false
}

// comparison lowers a comparison on a field. negate is set when the query matches the
// complement of the comparison and has to be placed with the opposite occur.
func comparison(field string, cmp value.Comparison) (q elastic.Query, negate bool) {
	negate = cmp.Negated

	switch cmp.Op {
	case value.Any:
		return elastic.NewExistsQuery(field), negate
	case value.None:
		return elastic.NewExistsQuery(field), !negate
	}

	if cmp.Invalid() {
		return elastic.NewMatchNoneQuery(), negate
	}

	switch cmp.Op {
	case value.Eq:
		return equal(field, cmp.Value()), negate
	case value.Lt:
		return elastic.NewRangeQuery(field).Lt(cmp.Value()), negate
	case value.Lte:
		return elastic.NewRangeQuery(field).Lte(cmp.Value()), negate
	case value.Gt:
		return elastic.NewRangeQuery(field).Gt(cmp.Value()), negate
	case value.Gte:
		return elastic.NewRangeQuery(field).Gte(cmp.Value()), negate
	case value.Between:
		return elastic.NewRangeQuery(field).Gte(cmp.Values[0]).Lte(cmp.Values[1]), negate
	case value.In:
		return in(field, cmp.Valid()), negate
	}
	return elastic.NewMatchNoneQuery(), negate
}

// equal matches a value. A time matches the whole day it falls on.
func equal(field string, v any) elastic.Query {
	if t, isTime := v.(time.Time); isTime {
		day := now.With(t)
		return elastic.NewRangeQuery(field).Gte(day.BeginningOfDay()).Lte(day.EndOfDay())
	}
	return elastic.NewTermQuery(field, v)
}

// in matches any of the values. Nulls never match and have already been dropped.
func in(field string, values []any) elastic.Query {
	hasTime := false
	for _, v := range values {
		if _, isTime := v.(time.Time); isTime {
			hasTime = true
			break
		}
	}
	if !hasTime {
		return elastic.NewTermsQuery(field, values...)
	}

	should := make([]elastic.Query, 0, len(values))
	for _, v := range values {
		should = append(should, equal(field, v))
	}
	return elastic.NewBoolQuery().Should(should...).MinimumNumberShouldMatch(1)
}

// place puts q under occur, or under its opposite when negate is set. A negated should has no
// opposite so it is wrapped in a must not instead.
func place(q elastic.Query, occur expr.Occur, negate bool) (elastic.Query, expr.Occur) {
	if !negate {
		return q, occur
	}
	if occur == expr.Should {
		return elastic.NewBoolQuery().MustNot(q), expr.Should
	}
	return q, occur.Negate()
}

func term(p expr.Predicate) (elastic.Query, expr.Occur) {
	q, negate := comparison(p.Key.Field(), p.Cmp)
	return place(q, p.Occur, negate)
}

func wildcard(p expr.Predicate) (elastic.Query, expr.Occur) {
	pattern, ok := p.Cmp.Value().(string)
	if p.Cmp.Op != value.Eq || !ok {
		return compare(p)
	}
	return elastic.NewWildcardQuery(p.Key.Field(), pattern), p.Occur
}

func phrase(p expr.Predicate) (elastic.Query, expr.Occur) {
	text, ok := p.Cmp.Value().(string)
	if !ok {
		return elastic.NewMatchNoneQuery(), p.Occur
	}
	return elastic.NewMatchPhrasePrefixQuery(p.Key.Field(), text), p.Occur
}

func boolean(p expr.Predicate) (elastic.Query, expr.Occur) {
	want, ok := p.Cmp.Value().(bool)
	if !ok {
		return elastic.NewMatchNoneQuery(), p.Occur
	}

	spec := p.Key.Spec()
	var q elastic.Query = elastic.NewTermQuery(spec.Field, true)
	if spec.Exists {
		q = elastic.NewExistsQuery(spec.Field)
	}
	return place(q, p.Occur, !want)
}

// locked lowers locked:x onto its boolean field. A negated lock asserts the field is false
// instead of excluding documents where it is true.
func locked(p expr.Predicate) (elastic.Query, expr.Occur) {
	field, ok := p.Cmp.Value().(string)
	if p.Cmp.Op != value.Eq || !ok {
		return nil, p.Occur
	}
	if p.Occur == expr.MustNot {
		return elastic.NewTermQuery(field, false), expr.Must
	}
	return elastic.NewTermQuery(field, true), p.Occur
}

func voted(p expr.Predicate) (elastic.Query, expr.Occur) {
	id := p.Cmp.Value()
	q := elastic.NewBoolQuery().Should(
		elastic.NewTermQuery(metatag.Upvote.Field(), id),
		elastic.NewTermQuery(metatag.Downvote.Field(), id),
	).MinimumNumberShouldMatch(1)
	return q, p.Occur
}

func directive(p expr.Predicate) (elastic.Query, expr.Occur) {
	return nil, p.Occur
}

// shared lowers predicates by the grammar of their key.
var shared = map[metatag.Grammar]lowerFN{
	metatag.IntRange:       compare,
	metatag.FloatRange:     compare,
	metatag.FudgedFloat:    compare,
	metatag.RatioRange:     compare,
	metatag.FudgedFilesize: compare,
	metatag.DateRange:      compare,
	metatag.AgeRange:       compare,
	metatag.UserRef:        term,
	metatag.PoolRef:        term,
	metatag.SetRef:         term,
	metatag.PostRef:        term,
	metatag.Term:           term,
	metatag.Wildcard:       wildcard,
	metatag.Phrase:         phrase,
	metatag.List:           term,
	metatag.Presence:       term,
	metatag.Enum:           term,
	metatag.Boolean:        boolean,
	metatag.Directive:      directive,
}

type base struct {
	lowerFNs map[metatag.Key]lowerFN
}

// lower picks the key specific lowering if there is one and falls back to the grammar.
func (b base) lower(p expr.Predicate) (elastic.Query, expr.Occur) {
	if fn, found := b.lowerFNs[p.Key]; found {
		return fn(p)
	}
	if fn, found := shared[p.Key.Grammar()]; found {
		return fn(p)
	}
	return elastic.NewMatchNoneQuery(), p.Occur
}

// clauses collects the lowered children of a group.
type clauses struct {
	must    []elastic.Query
	mustNot []elastic.Query
	should  []elastic.Query
}

func (c *clauses) add(q elastic.Query, occur expr.Occur) {
	if q == nil {
		return
	}
	switch occur {
	case expr.MustNot:
		c.mustNot = append(c.mustNot, q)
	case expr.Should:
		c.should = append(c.should, q)
	default:
		c.must = append(c.must, q)
	}
}

func (c *clauses) empty() bool {
	return len(c.must)+len(c.mustNot)+len(c.should) == 0
}

func (c *clauses) query() *elastic.BoolQuery {
	b := elastic.NewBoolQuery()
	if len(c.must) > 0 {
		b = b.Must(c.must...)
	}
	if len(c.mustNot) > 0 {
		b = b.MustNot(c.mustNot...)
	}
	if len(c.should) > 0 {
		b = b.Should(c.should...).MinimumNumberShouldMatch(1)
	}
	return b
}

// group lowers the children of g into clauses.
func (b base) group(g *expr.Group) *clauses {
	c := &clauses{}
	for _, child := range g.Children {
		switch n := child.(type) {
		case expr.Include:
			c.add(tagQuery(n.Tag), expr.Must)
		case expr.Exclude:
			c.add(tagQuery(n.Tag), expr.MustNot)
		case expr.Or:
			for _, t := range n.Tags {
				c.add(tagQuery(t), expr.Should)
			}
		case expr.Predicate:
			c.add(b.lower(n))
		case *expr.Group:
			inner := b.group(n)
			if inner.empty() {
				c.add(elastic.NewMatchAllQuery(), n.Occur)
				continue
			}
			c.add(inner.query(), n.Occur)
		}
	}
	return c
}

func tagQuery(t expr.Tag) elastic.Query {
	if t.IsWildcard() {
		return elastic.NewWildcardQuery(tagsField, t.Name)
	}
	return elastic.NewTermQuery(tagsField, t.Name)
}
