package expr

import (
	"fmt"
	"strings"
)

type renderer func(n Node, verbose bool) string

var renderers map[Kind]renderer

func init() {
	renderers = map[Kind]renderer{
		KindInclude:   renderInclude,
		KindExclude:   renderExclude,
		KindOr:        renderOr,
		KindPredicate: renderPredicate,
		KindGroup:     renderGroup,
	}
}

func render(n Node, verbose bool) string {
	if n == nil {
		return ""
	}
	fn, found := renderers[n.Kind()]
	if !found {
		return fmt.Sprintf("%s(?)", n.Kind())
	}
	return fn(n, verbose)
}

func renderInclude(n Node, verbose bool) string {
	i := n.(Include)
	if verbose {
		return fmt.Sprintf("%s(%s)", KindInclude, i.Name)
	}
	return i.Name
}

func renderExclude(n Node, verbose bool) string {
	e := n.(Exclude)
	if verbose {
		return fmt.Sprintf("%s(%s)", KindExclude, e.Name)
	}
	return "-" + e.Name
}

func renderOr(n Node, verbose bool) string {
	o := n.(Or)
	strs := make([]string, 0, len(o.Tags))
	for _, t := range o.Tags {
		if verbose {
			strs = append(strs, t.Name)
			continue
		}
		strs = append(strs, "~"+t.Name)
	}
	if verbose {
		return fmt.Sprintf("%s(%s)", KindOr, strings.Join(strs, ", "))
	}
	return strings.Join(strs, " ")
}

func renderPredicate(n Node, verbose bool) string {
	p := n.(Predicate)
	if verbose {
		return fmt.Sprintf("%s(%s%s %s %s)", KindPredicate, p.Occur.Prefix(), p.Key, p.Cmp.Op, p.Cmp)
	}
	v := p.Value
	if strings.ContainsAny(v, " \t") {
		v = `"` + v + `"`
	}
	return fmt.Sprintf("%s%s:%s", p.Occur.Prefix(), p.Key, v)
}

func renderGroup(n Node, verbose bool) string {
	g := n.(*Group)
	if verbose {
		strs := make([]string, 0, len(g.Children))
		for _, child := range g.Children {
			strs = append(strs, render(child, true))
		}
		return fmt.Sprintf("%s%s(%s)", g.Occur.Prefix(), KindGroup, strings.Join(strs, ", "))
	}
	inner := renderChildren(g.Children, false)
	if inner == "" {
		return g.Occur.Prefix() + "( )"
	}
	return fmt.Sprintf("%s( %s )", g.Occur.Prefix(), inner)
}

func renderChildren(children []Node, verbose bool) string {
	strs := make([]string, 0, len(children))
	for _, child := range children {
		strs = append(strs, render(child, verbose))
	}
	return strings.Join(strs, " ")
}
