// Package alias resolves tag names onto their canonical names before a query is lowered.
package alias

import "strings"

// Resolver maps a tag name onto its canonical name. Names without an alias map to themselves.
type Resolver interface {
	Resolve(name string) string
}

// Map is a fixed alias table keyed by antecedent name.
type Map map[string]string

// Resolve implements Resolver.
func (m Map) Resolve(name string) string {
	if canonical, found := m[strings.ToLower(name)]; found && canonical != "" {
		return canonical
	}
	return name
}

// Func adapts a plain function into a Resolver.
type Func func(name string) string

// Resolve implements Resolver.
func (f Func) Resolve(name string) string {
	return f(name)
}

// Identity resolves every name to itself.
var Identity Resolver = Func(func(name string) string { return name })
