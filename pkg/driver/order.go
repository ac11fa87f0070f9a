package driver

import (
	"github.com/grindlemire/go-tagquery/pkg/query/metatag"
	"github.com/olivere/elastic/v7"
)

// DefaultOrder is used when a query has no order or an unknown one.
const DefaultOrder = "id_desc"

// missing policies for sparse sort fields
const (
	MissingFirst = "_first"
	MissingLast  = "_last"
)

const (
	idField    = "id"
	scoreField = "_score"
)

// SortField is one tuple of a sort specification.
type SortField struct {
	Field     string
	Ascending bool
	Missing   string
}

// Sorter converts the tuple into an elastic sorter.
func (s SortField) Sorter() elastic.Sorter {
	if s.Field == scoreField {
		return elastic.NewScoreSort().Order(s.Ascending)
	}
	fs := elastic.NewFieldSort(s.Field).Order(s.Ascending)
	if s.Missing != "" {
		fs = fs.Missing(s.Missing)
	}
	return fs
}

type scoring int

const (
	noScore scoring = iota
	rankScore
	randomScore
)

// order is an entry of the order table.
type order struct {
	sort []SortField
	// score replaces plain sorting with a score function
	score scoring
	// requires is a field that must exist for a document to be ordered by this key
	requires string
	// inverse names the key a -order:key resolves to. Empty inverts every tuple.
	inverse string
}

func desc(field string) SortField { return SortField{Field: field} }
func asc(field string) SortField  { return SortField{Field: field, Ascending: true} }

func (s SortField) missing(policy string) SortField {
	s.Missing = policy
	return s
}

// byField sorts on a field then on id in the same direction.
func byField(f SortField) order {
	if f.Field == idField {
		return order{sort: []SortField{f}}
	}
	return order{sort: []SortField{f, {Field: idField, Ascending: f.Ascending}}}
}

var orders = map[string]order{
	"id":      byField(asc(idField)),
	"id_asc":  byField(asc(idField)),
	"id_desc": byField(desc(idField)),

	"change":      byField(desc("change_seq")),
	"change_desc": byField(desc("change_seq")),
	"change_asc":  byField(asc("change_seq")),

	"md5":     byField(desc("md5")),
	"md5_asc": byField(asc("md5")),

	"score":      byField(desc("score")),
	"score_desc": byField(desc("score")),
	"score_asc":  byField(asc("score")),

	"duration":      byField(desc("duration")),
	"duration_desc": byField(desc("duration")),
	"duration_asc":  byField(asc("duration")),

	"favcount":     byField(desc("fav_count")),
	"favcount_asc": byField(asc("fav_count")),

	"created_at":      byField(desc("created_at")),
	"created_at_desc": byField(desc("created_at")),
	"created_at_asc":  byField(asc("created_at")),

	"updated":      byField(desc("updated_at")),
	"updated_desc": byField(desc("updated_at")),
	"updated_asc":  byField(asc("updated_at")),

	"comment":     byField(desc("commented_at").missing(MissingLast)),
	"comm":        byField(desc("commented_at").missing(MissingLast)),
	"comment_asc": byField(asc("commented_at").missing(MissingLast)),
	"comm_asc":    byField(asc("commented_at").missing(MissingLast)),

	"comment_bumped": {
		sort:     byField(desc("comment_bumped_at").missing(MissingLast)).sort,
		requires: "comment_bumped_at",
		inverse:  "comment_bumped_asc",
	},
	"comment_bumped_asc": {
		sort:     byField(asc("comment_bumped_at").missing(MissingLast)).sort,
		requires: "comment_bumped_at",
		inverse:  "comment_bumped",
	},

	"note": {
		sort:    byField(desc("noted_at").missing(MissingLast)).sort,
		inverse: "note_asc",
	},
	"note_asc": {
		sort:    byField(asc("noted_at").missing(MissingFirst)).sort,
		inverse: "note",
	},

	"mpixels":     byField(desc("mpixels")),
	"mpixels_asc": byField(asc("mpixels")),

	"portrait":         byField(asc("aspect_ratio")),
	"aspect_ratio_asc": byField(asc("aspect_ratio")),
	"landscape":        byField(desc("aspect_ratio")),
	"aspect_ratio":     byField(desc("aspect_ratio")),

	"filesize":     byField(desc("file_size")),
	"filesize_asc": byField(asc("file_size")),

	"tagcount":     byField(desc("tag_count")),
	"tagcount_asc": byField(asc("tag_count")),

	"comment_count":      byField(desc("comment_count")),
	"comment_count_desc": byField(desc("comment_count")),
	"comment_count_asc":  byField(asc("comment_count")),

	"rank": {
		sort:  []SortField{desc(scoreField), desc(idField)},
		score: rankScore,
	},
	"random": {
		sort:  []SortField{desc(scoreField), desc(idField)},
		score: randomScore,
	},
}

func init() {
	for _, c := range metatag.Categories {
		orders[c.Short+"tags"] = byField(desc(c.Field))
		orders[c.Short+"tags_desc"] = byField(desc(c.Field))
		orders[c.Short+"tags_asc"] = byField(asc(c.Field))
	}
}

// OrderKeys lists every order key.
func OrderKeys() []string {
	keys := make([]string, 0, len(orders))
	for k := range orders {
		keys = append(keys, k)
	}
	return keys
}

// resolveOrder looks a key up, applying the inversion. Unknown keys get the default order.
func resolveOrder(key string, inverted bool) (string, order) {
	o, found := orders[key]
	if !found {
		key = DefaultOrder
		o = orders[DefaultOrder]
	}
	if !inverted {
		return key, o
	}
	if o.inverse != "" {
		return o.inverse, orders[o.inverse]
	}
	o.sort = invert(o.sort)
	return "-" + key, o
}

// invert flips the direction of every tuple, keeping the missing policies.
func invert(sort []SortField) []SortField {
	out := make([]SortField, 0, len(sort))
	for _, s := range sort {
		s.Ascending = !s.Ascending
		out = append(out, s)
	}
	return out
}

// Order returns the sort tuples for an order key.
func Order(key string, inverted bool) []SortField {
	_, o := resolveOrder(key, inverted)
	return o.sort
}
