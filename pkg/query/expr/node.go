package expr

import (
	"strconv"
	"strings"

	"github.com/grindlemire/go-tagquery/pkg/query/metatag"
	"github.com/grindlemire/go-tagquery/pkg/value"
)

// Kind is an enum over the node variants of the tree.
type Kind int

// node kinds
const (
	KindUndefined Kind = iota
	KindInclude
	KindExclude
	KindOr
	KindPredicate
	KindGroup
)

var kindStrings = map[Kind]string{
	KindUndefined: "UNDEFINED",
	KindInclude:   "INCLUDE",
	KindExclude:   "EXCLUDE",
	KindOr:        "OR",
	KindPredicate: "PREDICATE",
	KindGroup:     "GROUP",
}

func (k Kind) String() string {
	return kindStrings[k]
}

// Node is one element of a group.
type Node interface {
	Kind() Kind
	String() string
}

// Tag is a literal tag name after alias resolution.
type Tag struct {
	Name string
	// Free tags do not count against the tag quota.
	Free bool
}

// IsWildcard reports whether the name is a wildcard pattern.
func (t Tag) IsWildcard() bool {
	return strings.Contains(t.Name, "*")
}

// Include requires a tag.
type Include struct {
	Tag
}

// Kind implements Node
func (Include) Kind() Kind { return KindInclude }

func (i Include) String() string { return render(i, false) }

// Exclude forbids a tag.
type Exclude struct {
	Tag
}

// Kind implements Node
func (Exclude) Kind() Kind { return KindExclude }

func (e Exclude) String() string { return render(e, false) }

// Or requires at least one of its tags. Every ~tag of a group ends up in the same Or.
type Or struct {
	Tags []Tag
}

// Kind implements Node
func (Or) Kind() Kind { return KindOr }

func (o Or) String() string { return render(o, false) }

// Predicate is a metatag with its parsed value.
type Predicate struct {
	Key   metatag.Key
	Occur Occur
	Cmp   value.Comparison
	// Value is the raw value as written, with surrounding quotes removed.
	Value string
	Free  bool
	Pos   int
}

// Kind implements Node
func (Predicate) Kind() Kind { return KindPredicate }

func (p Predicate) String() string { return render(p, false) }

// Group is a parenthesized sub query. The root of a query is a Must group.
type Group struct {
	Children []Node
	Occur    Occur
}

// Kind implements Node
func (*Group) Kind() Kind { return KindGroup }

func (g *Group) String() string { return render(g, false) }

// Verbose renders the group with the kind of every node.
func (g *Group) Verbose() string { return render(g, true) }

// Predicates returns the direct predicate children with the key.
func (g *Group) Predicates(key metatag.Key) []Predicate {
	var out []Predicate
	for _, child := range g.Children {
		if p, ok := child.(Predicate); ok && p.Key == key {
			out = append(out, p)
		}
	}
	return out
}

// last returns the last direct predicate with the key.
func (g *Group) last(key metatag.Key) (Predicate, bool) {
	preds := g.Predicates(key)
	if len(preds) == 0 {
		return Predicate{}, false
	}
	return preds[len(preds)-1], true
}

// Query is a parsed tag query.
type Query struct {
	Root *Group
}

func (q *Query) String() string {
	if q == nil || q.Root == nil {
		return ""
	}
	return renderChildren(q.Root.Children, false)
}

// Verbose renders every node with its kind, for debugging.
func (q *Query) Verbose() string {
	if q == nil || q.Root == nil {
		return ""
	}
	return q.Root.Verbose()
}

// Order is the root level order key. Inverted is set for -order:key and order:-key; the
// two cancel out.
func (q *Query) Order() (key string, inverted bool, found bool) {
	p, found := q.Root.last(metatag.Order)
	if !found {
		return "", false, false
	}
	key = strings.ToLower(p.Value)
	inverted = p.Occur == MustNot
	if strings.HasPrefix(key, "-") {
		key = key[1:]
		inverted = !inverted
	}
	return key, inverted, true
}

// Limit is the root level limit:n.
func (q *Query) Limit() (int, bool) {
	p, found := q.Root.last(metatag.Limit)
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(p.Value)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// RandomSeed is the root level randseed:n.
func (q *Query) RandomSeed() (int64, bool) {
	p, found := q.Root.last(metatag.RandSeed)
	if !found {
		return 0, false
	}
	n, err := strconv.ParseInt(p.Value, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
