package lex

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const eof = -1

// Token is a parsed token from the input buffer sent to the lexer
type Token struct {
	Typ TokType // the type of the item
	Pos int     // the byte offset of the item in the normalized query
	Val string  // the value of the item
}

// String is a string representation of a lex item
func (i Token) String() string {
	if len(i.Val) > 10 {
		return fmt.Sprintf("%.10q...", i.Val)
	}
	return fmt.Sprintf("%q", i.Val)
}

// TokType is an enum of token types that can be produced by the lexer.
type TokType int

// types of tokens that can be produced
const (
	TTerm TokType = iota
	TLParen
	TRParen
	TEOF
)

var tokStrings = map[TokType]string{
	TTerm:   "tTERM",
	TLParen: "tLPAREN",
	TRParen: "tRPAREN",
	TEOF:    "tEOF",
}

func (tt TokType) String() string {
	return tokStrings[tt]
}

// groupOpeners are the standalone tokens that open a group. The prefix of the token is the
// occur of the group: required, negated or soft.
var groupOpeners = map[string]struct{}{
	"(":  {},
	"-(": {},
	"~(": {},
}

type tokenStateFn func(*Lexer) tokenStateFn

// Lexer splits a tag query into whitespace delimited terms and group delimiters.
type Lexer struct {
	input string // the input to parse

	pos      int   // the position of the cursor
	start    int   // the start of the current token
	currItem Token // the current item being worked on
	atEOF    bool  // whether we have finished parsing the string or not
}

// Lex creates a lexer for an input string. The input is NFC normalized first so that
// visually identical tags compare equal.
func Lex(input string) *Lexer {
	return &Lexer{
		input: norm.NFC.String(input),
	}
}

// Input is the normalized query the token positions refer to.
func (l *Lexer) Input() string {
	return l.input
}

// Next parses and returns just the next token in the input.
func (l *Lexer) Next() Token {
	// default to returning EOF
	l.currItem = Token{
		Typ: TEOF,
		Pos: len(l.input),
		Val: "EOF",
	}

	// run the state machine until we have a token
	for state := lexSpace; state != nil; {
		state = state(l)
	}

	return l.currItem
}

// Peek looks at the the next token but does not impact the lexer state
// note this is intentionally not a pointer because we don't want any changes to take affect here.
func (l Lexer) Peek() Token {
	return l.Next()
}

// Scan returns every token of the query, not including the trailing EOF.
func Scan(query string) []Token {
	l := Lex(query)
	toks := []Token{}
	for {
		tok := l.Next()
		if tok.Typ == TEOF {
			return toks
		}
		toks = append(toks, tok)
	}
}

// Strings returns the values of every token of the query.
func Strings(query string) []string {
	toks := Scan(query)
	out := make([]string, 0, len(toks))
	for _, tok := range toks {
		out = append(out, tok.Val)
	}
	return out
}

// lexSpace is the first state that we always start with
func lexSpace(l *Lexer) tokenStateFn {
	for {
		r := l.next()
		switch {
		case r == eof:
			return nil
		case isSpace(r):
			continue
		default:
			l.backup()
			return lexWord
		}
	}
}

// lexWord consumes everything up to the next whitespace. A double quote directly after the
// first colon starts a phrase that may contain whitespace, provided it is closed.
func lexWord(l *Lexer) tokenStateFn {
	l.start = l.pos
	sawColon := false
	for {
		r := l.next()
		switch {
		case r == eof || isSpace(r):
			l.backup()
			return l.emitWord()
		case r == ':' && !sawColon:
			sawColon = true
			if l.peek() == '"' && l.closingQuote() {
				l.next()
				l.skipPhrase()
			}
		}
	}
}

// closingQuote reports whether the quote under the cursor has a partner later in the input.
func (l *Lexer) closingQuote() bool {
	return strings.IndexByte(l.input[l.pos+1:], '"') >= 0
}

// skipPhrase moves the cursor just past the closing quote.
func (l *Lexer) skipPhrase() {
	for {
		r := l.next()
		if r == '"' || r == eof {
			return
		}
	}
}

func (l *Lexer) emitWord() tokenStateFn {
	word := l.currWord()
	switch {
	case word == ")":
		return l.emit(TRParen)
	case isGroupOpener(word):
		return l.emit(TLParen)
	}
	return l.emit(TTerm)
}

func (l *Lexer) currWord() string {
	return l.input[l.start:l.pos]
}

// toTok returns the item at the current input point with the specified type
// and advances the input.
func (l *Lexer) toTok(t TokType) Token {
	i := Token{
		Typ: t,
		Pos: l.start,
		Val: l.input[l.start:l.pos],
	}
	// update the lexer's start for the next token to be the current position
	l.start = l.pos
	return i
}

// emit passes the trailing text as an item back to the parser.
func (l *Lexer) emit(t TokType) tokenStateFn {
	l.currItem = l.toTok(t)
	return nil
}

// next moves one rune forward in the input string and returns the consumed rune
func (l *Lexer) next() rune {
	if l.pos >= len(l.input) {
		l.atEOF = true
		return eof
	}
	r, width := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += width
	return r
}

// peek returns but does not consume the next rune in the input.
func (l *Lexer) peek() rune {
	r := l.next()
	l.backup()
	return r
}

// backup steps back one rune.
func (l *Lexer) backup() {
	if l.atEOF {
		l.atEOF = false
		return
	}
	if l.pos > 0 {
		_, width := utf8.DecodeLastRuneInString(l.input[:l.pos])
		l.pos -= width
	}
}

// isSpace reports whether r is a whitespace character.
func isSpace(r rune) bool {
	return r != eof && unicode.IsSpace(r)
}

func isGroupOpener(word string) bool {
	_, found := groupOpeners[word]
	return found
}
