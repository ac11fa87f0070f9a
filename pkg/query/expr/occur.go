package expr

// Occur is how a node takes part in the group that holds it.
type Occur int

// occurrences a node can have
// To add a new occur, do the following:
// 1. Add it to the iota here
// 2. Add it to the string maps below
// 3. Teach the driver how to place it in a bool query
const (
	Must Occur = iota
	MustNot
	Should
)

// String renders the occur as a string
func (o Occur) String() string {
	return toString[o]
}

// Prefix is the token prefix that produces the occur.
func (o Occur) Prefix() string {
	return toPrefix[o]
}

// Negate flips must and must not. Should is left alone.
func (o Occur) Negate() Occur {
	switch o {
	case Must:
		return MustNot
	case MustNot:
		return Must
	}
	return o
}

// OccurFromPrefix splits a leading - or ~ off of a token. A lone - or ~ is a literal, not a prefix.
func OccurFromPrefix(token string) (Occur, string) {
	if len(token) < 2 {
		return Must, token
	}
	if o, found := fromPrefix[token[0]]; found {
		return o, token[1:]
	}
	return Must, token
}

var fromPrefix = map[byte]Occur{
	'-': MustNot,
	'~': Should,
}

var toPrefix = map[Occur]string{
	Must:    "",
	MustNot: "-",
	Should:  "~",
}

var toString = map[Occur]string{
	Must:    "MUST",
	MustNot: "MUST_NOT",
	Should:  "SHOULD",
}
