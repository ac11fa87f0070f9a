package expr

import (
	"github.com/grindlemire/go-tagquery/pkg/query/metatag"
	"github.com/pkg/errors"
)

type validator = func(n Node, depth int) error

var validators map[Kind]validator

func init() {
	validators = map[Kind]validator{
		KindInclude:   validateTag,
		KindExclude:   validateTag,
		KindOr:        validateOr,
		KindPredicate: validatePredicate,
		KindGroup:     validateGroup,
	}
}

// Validate checks that a tree is well formed: a must root, no empty names, no unknown keys
// and, when maxDepth is positive, no group nested deeper than maxDepth.
func Validate(q *Query, maxDepth int) error {
	if q == nil || q.Root == nil {
		return errors.New("query validation: root must not be nil")
	}
	if q.Root.Occur != Must {
		return errors.Errorf("query validation: root must be a %s group, not %s", Must, q.Root.Occur)
	}
	return walk(q.Root, 0, maxDepth)
}

func walk(n Node, depth, maxDepth int) error {
	if n == nil {
		return errors.New("query validation: node must not be nil")
	}
	fn, found := validators[n.Kind()]
	if !found {
		return errors.Errorf("query validation: unknown node kind %s", n.Kind())
	}
	if err := fn(n, depth); err != nil {
		return err
	}

	g, isGroup := n.(*Group)
	if !isGroup {
		return nil
	}
	if maxDepth > 0 && depth > maxDepth {
		return errors.Errorf("query validation: group depth %d exceeds %d", depth, maxDepth)
	}
	for _, child := range g.Children {
		if err := walk(child, depth+1, maxDepth); err != nil {
			return err
		}
	}
	return nil
}

func validateTag(n Node, _ int) error {
	var name string
	switch t := n.(type) {
	case Include:
		name = t.Name
	case Exclude:
		name = t.Name
	}
	if name == "" {
		return errors.Errorf("%s validation: tag name must not be empty", n.Kind())
	}
	return nil
}

func validateOr(n Node, _ int) error {
	o := n.(Or)
	if len(o.Tags) == 0 {
		return errors.New("OR validation: must have at least one tag")
	}
	for _, t := range o.Tags {
		if t.Name == "" {
			return errors.New("OR validation: tag name must not be empty")
		}
	}
	return nil
}

func validatePredicate(n Node, _ int) error {
	p := n.(Predicate)
	if p.Key == metatag.Unknown {
		return errors.Errorf("PREDICATE validation: unknown key for value %q", p.Value)
	}
	if _, found := toString[p.Occur]; !found {
		return errors.Errorf("PREDICATE validation: invalid occur %d for %s", p.Occur, p.Key)
	}
	return nil
}

func validateGroup(n Node, _ int) error {
	g := n.(*Group)
	if g == nil {
		return errors.New("GROUP validation: group must not be nil")
	}
	if _, found := toString[g.Occur]; !found {
		return errors.Errorf("GROUP validation: invalid occur %d", g.Occur)
	}
	return nil
}
