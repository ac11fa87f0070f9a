// Package parse turns the tokens of a tag query into a tree of groups, tags and metatags.
package parse

import (
	"strconv"
	"strings"

	"github.com/grindlemire/go-tagquery/internal/lex"
	"github.com/grindlemire/go-tagquery/pkg/query/expr"
	"github.com/grindlemire/go-tagquery/pkg/query/metatag"
	"github.com/grindlemire/go-tagquery/pkg/value"
	"github.com/pkg/errors"
)

// default limits used when Options leaves them unset
const (
	DefaultMaxTokens     = 40
	DefaultMaxGroupDepth = 10
)

// Resolver maps a tag name to its canonical spelling. It must never fail: unknown names
// come back unchanged.
type Resolver interface {
	Resolve(name string) string
}

// Directory resolves the names used by user:, pool: and set: to ids.
type Directory interface {
	UserID(name string) (int64, bool)
	PoolID(name string) (int64, bool)
	SetID(name string) (int64, bool)
}

// Options configure a parse.
type Options struct {
	MaxTokens     int
	MaxGroupDepth int
	// Strict rejects unknown metatag keys instead of treating them as tags.
	Strict bool
	// IsFree reports whether a raw token is exempt from the tag quota.
	IsFree func(token string) bool
	// Resolver is applied once per distinct tag name. Nil leaves names alone.
	Resolver Resolver
	// Directory resolves user, pool and set names. Nil only accepts numeric ids.
	Directory Directory
	// Values parses metatag values. Nil uses the wall clock in UTC.
	Values *value.Parser
	// MaxInValues caps comma separated lists of strings such as md5:a,b,c.
	MaxInValues int
}

// invalidID is used for references that could not be resolved. No document has it.
const invalidID int64 = -1

// String scans and parses a query.
func String(query string, opts Options) (*expr.Query, error) {
	return Parse(lex.Scan(query), opts)
}

// Parse builds a query tree from tokens. Limits are checked as tokens are consumed so an
// oversized query fails before the rest of it is looked at.
func Parse(tokens []lex.Token, opts Options) (*expr.Query, error) {
	p := newParser(opts)
	q, err := p.parse(tokens)
	if err != nil {
		return nil, err
	}

	if err := expr.Validate(q, p.opts.MaxGroupDepth); err != nil {
		return nil, err
	}
	return q, nil
}

type frame struct {
	group *expr.Group
	pos   int
	count int
	seen  map[string]struct{}
	or    int // index of the Or child, -1 until a ~tag is seen
}

func newFrame(occur expr.Occur, pos int) *frame {
	return &frame{
		group: &expr.Group{Occur: occur},
		pos:   pos,
		seen:  map[string]struct{}{},
		or:    -1,
	}
}

type parser struct {
	opts     Options
	values   value.Parser
	resolved map[string]string
}

func newParser(opts Options) *parser {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.MaxGroupDepth <= 0 {
		opts.MaxGroupDepth = DefaultMaxGroupDepth
	}
	if opts.MaxInValues <= 0 {
		opts.MaxInValues = 100
	}
	values := value.New(nil, nil, opts.MaxInValues)
	if opts.Values != nil {
		values = *opts.Values
	}
	return &parser{
		opts:     opts,
		values:   values,
		resolved: map[string]string{},
	}
}

func (p *parser) parse(tokens []lex.Token) (*expr.Query, error) {
	stack := []*frame{newFrame(expr.Must, 0)}

	for _, tok := range tokens {
		top := stack[len(stack)-1]

		if tok.Typ == lex.TRParen {
			if len(stack) == 1 {
				return nil, errors.WithStack(&UnbalancedGroupError{Pos: tok.Pos})
			}
			stack = stack[:len(stack)-1]
			parent := stack[len(stack)-1]
			parent.group.Children = append(parent.group.Children, top.group)
			continue
		}

		if tok.Typ == lex.TTerm {
			if _, dup := top.seen[tok.Val]; dup {
				continue
			}
			top.seen[tok.Val] = struct{}{}
		}

		top.count++
		if top.count > p.opts.MaxTokens {
			return nil, errors.WithStack(&CountExceededError{
				Token: tok.Val,
				Pos:   tok.Pos,
				Count: top.count,
				Max:   p.opts.MaxTokens,
			})
		}

		switch tok.Typ {
		case lex.TLParen:
			// the root is depth 0 so the new group sits at depth len(stack)
			if len(stack) > p.opts.MaxGroupDepth {
				return nil, errors.WithStack(&MaxGroupDepthExceededError{
					Pos:   tok.Pos,
					Depth: len(stack),
					Max:   p.opts.MaxGroupDepth,
				})
			}
			occur, _ := expr.OccurFromPrefix(tok.Val)
			stack = append(stack, newFrame(occur, tok.Pos))
		case lex.TTerm:
			if err := p.term(top, tok); err != nil {
				return nil, err
			}
		}
	}

	if len(stack) > 1 {
		return nil, errors.WithStack(&UnbalancedGroupError{Pos: stack[len(stack)-1].pos, Unclosed: true})
	}
	return &expr.Query{Root: stack[0].group}, nil
}

func (p *parser) term(f *frame, tok lex.Token) error {
	occur, body := expr.OccurFromPrefix(tok.Val)

	if key, raw, ok := splitMetatag(body); ok {
		k, known := metatag.Lookup(key)
		if known {
			f.group.Children = append(f.group.Children, p.predicate(k, occur, raw, tok))
			return nil
		}
		if p.opts.Strict {
			return errors.WithStack(&UnknownMetatagError{Key: key, Token: tok.Val, Pos: tok.Pos})
		}
	}

	tag := expr.Tag{
		Name: p.resolve(strings.ToLower(body)),
		Free: p.isFree(tok.Val),
	}
	switch occur {
	case expr.MustNot:
		f.group.Children = append(f.group.Children, expr.Exclude{Tag: tag})
	case expr.Should:
		if f.or < 0 {
			f.or = len(f.group.Children)
			f.group.Children = append(f.group.Children, expr.Or{})
		}
		or := f.group.Children[f.or].(expr.Or)
		or.Tags = append(or.Tags, tag)
		f.group.Children[f.or] = or
	default:
		f.group.Children = append(f.group.Children, expr.Include{Tag: tag})
	}
	return nil
}

// splitMetatag splits key:value. Both sides must be non empty. Quotes around the value are dropped.
func splitMetatag(body string) (key, raw string, ok bool) {
	key, raw, found := strings.Cut(body, ":")
	if !found || key == "" || raw == "" {
		return "", "", false
	}
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	return key, raw, true
}

func (p *parser) isFree(token string) bool {
	return p.opts.IsFree != nil && p.opts.IsFree(token)
}

// resolve looks every distinct name up once. Wildcards are patterns, not names.
func (p *parser) resolve(name string) string {
	if p.opts.Resolver == nil || strings.Contains(name, "*") {
		return name
	}
	if canonical, found := p.resolved[name]; found {
		return canonical
	}
	canonical := p.opts.Resolver.Resolve(name)
	if canonical == "" {
		canonical = name
	}
	p.resolved[name] = canonical
	return canonical
}

func (p *parser) predicate(k metatag.Key, occur expr.Occur, raw string, tok lex.Token) expr.Predicate {
	spec := k.Spec()
	pred := expr.Predicate{
		Key:   k,
		Occur: occur,
		Value: raw,
		Free:  spec.Free || p.isFree(tok.Val),
		Pos:   tok.Pos,
	}
	lower := strings.ToLower(raw)

	// key:"" survives splitMetatag with an empty value. It matches nothing and lowers like
	// any other unparseable value.
	if raw == "" {
		pred.Cmp = value.Cmp(value.Eq, nil)
		if k == metatag.Locked {
			pred.Cmp = value.Cmp(value.Undefined)
		}
		return pred
	}

	if spec.AnyNone {
		switch lower {
		case "any":
			pred.Cmp = value.Cmp(value.Any)
			return pred
		case "none":
			pred.Cmp = value.Cmp(value.None)
			return pred
		}
	}

	switch spec.Grammar {
	case metatag.IntRange:
		pred.Cmp = p.values.Range(raw, value.Integer)
	case metatag.FloatRange:
		pred.Cmp = p.values.Range(raw, value.Float)
	case metatag.FudgedFloat:
		pred.Cmp = p.values.RangeFudged(raw, value.Float)
	case metatag.RatioRange:
		pred.Cmp = p.values.Range(raw, value.Ratio)
	case metatag.FudgedFilesize:
		pred.Cmp = p.values.RangeFudged(raw, value.Filesize)
	case metatag.DateRange:
		pred.Cmp = p.values.DateRange(raw)
	case metatag.AgeRange:
		pred.Cmp = p.values.AgeRange(raw)
	case metatag.UserRef, metatag.PoolRef, metatag.SetRef, metatag.PostRef:
		pred.Cmp = value.Cmp(value.Eq, p.reference(spec.Grammar, raw))
	case metatag.Term:
		pred.Cmp = value.Cmp(value.Eq, lower)
	case metatag.Wildcard:
		pattern := lower
		if !strings.Contains(pattern, "*") {
			pattern += "*"
		}
		pred.Cmp = value.Cmp(value.Eq, pattern)
	case metatag.Phrase:
		pred.Cmp = value.Cmp(value.Eq, raw)
	case metatag.List:
		pred.Cmp = p.list(lower)
	case metatag.Presence:
		pred.Cmp = presence(lower)
	case metatag.Enum:
		pred.Cmp = enum(k, lower)
	case metatag.Boolean:
		pred.Cmp = value.Cmp(value.Eq, truthy(lower))
	case metatag.Directive:
		pred.Cmp = directive(k, lower)
	}
	return pred
}

// reference resolves user, pool, set and post references to ids. user:!123 is a user id.
func (p *parser) reference(g metatag.Grammar, raw string) int64 {
	if g == metatag.UserRef && strings.HasPrefix(raw, "!") {
		return parseID(raw[1:])
	}
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil && g != metatag.UserRef {
		if id <= 0 {
			return invalidID
		}
		return id
	}
	if p.opts.Directory == nil {
		if g == metatag.UserRef {
			return parseID(raw)
		}
		return invalidID
	}

	var (
		id    int64
		found bool
	)
	switch g {
	case metatag.UserRef:
		id, found = p.opts.Directory.UserID(raw)
	case metatag.PoolRef:
		id, found = p.opts.Directory.PoolID(raw)
	case metatag.SetRef:
		id, found = p.opts.Directory.SetID(raw)
	}
	if !found {
		return invalidID
	}
	return id
}

func parseID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return invalidID
	}
	return id
}

func (p *parser) list(lower string) value.Comparison {
	parts := strings.Split(lower, ",")
	if len(parts) > p.opts.MaxInValues {
		parts = parts[:p.opts.MaxInValues]
	}
	values := make([]any, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		values = append(values, part)
	}
	if len(values) == 1 {
		return value.Cmp(value.Eq, values[0])
	}
	return value.Comparison{Op: value.In, Values: values}
}

func presence(lower string) value.Comparison {
	switch lower {
	case "any", "true", "yes":
		return value.Cmp(value.Any)
	case "none", "false", "no":
		return value.Cmp(value.None)
	}
	return value.Cmp(value.Eq, nil)
}

var lockedFields = map[string]string{
	"rating": "rating_locked",
	"note":   "note_locked",
	"notes":  "note_locked",
	"status": "status_locked",
}

func enum(k metatag.Key, lower string) value.Comparison {
	switch k {
	case metatag.Rating:
		if lower == "" {
			return value.Cmp(value.Eq, nil)
		}
		switch lower[:1] {
		case "s", "q", "e":
			return value.Cmp(value.Eq, lower[:1])
		}
		return value.Cmp(value.Eq, nil)
	case metatag.Locked:
		field, found := lockedFields[lower]
		if !found {
			return value.Cmp(value.Undefined)
		}
		return value.Cmp(value.Eq, field)
	}
	return value.Cmp(value.Eq, lower)
}

func truthy(lower string) bool {
	switch lower {
	case "true", "t", "yes", "y", "1":
		return true
	}
	return false
}

func directive(k metatag.Key, lower string) value.Comparison {
	switch k {
	case metatag.Limit, metatag.RandSeed:
		n, err := strconv.ParseInt(lower, 10, 64)
		if err != nil {
			return value.Cmp(value.Eq, nil)
		}
		return value.Cmp(value.Eq, n)
	}
	return value.Cmp(value.Eq, lower)
}
