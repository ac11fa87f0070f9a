package lex

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const errTemplate = "%s:\n    wanted %v\n    got    %v"

func TestLex(t *testing.T) {
	type tc struct {
		in       string
		expected []Token
	}
	tcs := map[string]tc{
		"empty_returns_nothing": {
			in:       "",
			expected: []Token{},
		},
		"only_whitespace": {
			in:       " \t\n ",
			expected: []Token{},
		},
		"single_tag": {
			in:       "canine",
			expected: []Token{tok(TTerm, "canine", 0)},
		},
		"spaces_ignored": {
			in: "  aaa   bbb ",
			expected: []Token{
				tok(TTerm, "aaa", 2),
				tok(TTerm, "bbb", 8),
			},
		},
		"prefixes_kept": {
			in: "-aaa ~bbb",
			expected: []Token{
				tok(TTerm, "-aaa", 0),
				tok(TTerm, "~bbb", 5),
			},
		},
		"metatag": {
			in:       "score:>10",
			expected: []Token{tok(TTerm, "score:>10", 0)},
		},
		"standalone_parens": {
			in: "( aaa bbb )",
			expected: []Token{
				tok(TLParen, "(", 0),
				tok(TTerm, "aaa", 2),
				tok(TTerm, "bbb", 6),
				tok(TRParen, ")", 10),
			},
		},
		"negated_and_soft_groups": {
			in: "-( aaa ) ~( bbb )",
			expected: []Token{
				tok(TLParen, "-(", 0),
				tok(TTerm, "aaa", 3),
				tok(TRParen, ")", 7),
				tok(TLParen, "~(", 9),
				tok(TTerm, "bbb", 12),
				tok(TRParen, ")", 16),
			},
		},
		"attached_parens_are_part_of_the_tag": {
			in: "(aaa) favgroup:artist_(circle)",
			expected: []Token{
				tok(TTerm, "(aaa)", 0),
				tok(TTerm, "favgroup:artist_(circle)", 6),
			},
		},
		"quoted_phrase": {
			in: `aaa description:"two words" bbb`,
			expected: []Token{
				tok(TTerm, "aaa", 0),
				tok(TTerm, `description:"two words"`, 4),
				tok(TTerm, "bbb", 28),
			},
		},
		"negated_quoted_phrase": {
			in:       `-source:"a b c"`,
			expected: []Token{tok(TTerm, `-source:"a b c"`, 0)},
		},
		"unterminated_quote_splits": {
			in: `description:"two words`,
			expected: []Token{
				tok(TTerm, `description:"two`, 0),
				tok(TTerm, "words", 17),
			},
		},
		"quote_not_after_colon": {
			in: `say"what is"`,
			expected: []Token{
				tok(TTerm, `say"what`, 0),
				tok(TTerm, `is"`, 9),
			},
		},
		"only_first_colon_opens_a_phrase": {
			in: `a:b:"c d"`,
			expected: []Token{
				tok(TTerm, `a:b:"c`, 0),
				tok(TTerm, `d"`, 7),
			},
		},
		"unicode": {
			in: "ポケモン ☆",
			expected: []Token{
				tok(TTerm, "ポケモン", 0),
				tok(TTerm, "☆", 13),
			},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			got := Scan(tc.in)
			if !reflect.DeepEqual(tc.expected, got) {
				t.Fatalf(errTemplate, "token lists do not match", tc.expected, got)
			}
		})
	}
}

func TestNormalization(t *testing.T) {
	// e followed by a combining acute accent
	decomposed := "cafe\u0301"
	composed := "caf\u00e9"

	require.Equal(t, []string{composed}, Strings(decomposed))
	require.Equal(t, Strings(composed), Strings(decomposed))
}

func TestScanRoundTrip(t *testing.T) {
	tcs := []string{
		"aaa bbb",
		"  -aaa   ~bbb ccc  ",
		"( aaa ( bbb ) ) -( ccc )",
		"score:>5 rating:s order:score_asc",
		"(aaa) favgroup:artist_(circle)",
	}

	for _, in := range tcs {
		t.Run(in, func(t *testing.T) {
			first := Strings(in)
			second := Strings(strings.Join(first, " "))
			if !reflect.DeepEqual(first, second) {
				t.Fatalf(errTemplate, "scan did not round trip", first, second)
			}
		})
	}
}

func TestPeek(t *testing.T) {
	l := Lex("aaa bbb")

	require.Equal(t, "aaa", l.Peek().Val)
	require.Equal(t, "aaa", l.Next().Val)
	require.Equal(t, "bbb", l.Peek().Val)
	require.Equal(t, "bbb", l.Next().Val)
	require.Equal(t, TEOF, l.Next().Typ)
	require.Equal(t, TEOF, l.Peek().Typ)
}

func TestTokenString(t *testing.T) {
	require.Equal(t, `"aaa"`, tok(TTerm, "aaa", 0).String())
	require.Equal(t, `"abcdefghij"...`, tok(TTerm, "abcdefghijklmnop", 0).String())
	require.Equal(t, "tLPAREN", TLParen.String())
}

func tok(typ TokType, val string, pos int) Token {
	return Token{
		Typ: typ,
		Pos: pos,
		Val: val,
	}
}
