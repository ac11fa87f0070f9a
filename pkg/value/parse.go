package value

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/now"
)

// MinInt and MaxInt bound every numeric literal. Out of range literals clamp silently.
const (
	MinInt = math.MinInt32
	MaxInt = math.MaxInt32
)

// Kind selects how the operands of a range are cast.
type Kind int

// kinds of range values
const (
	Integer Kind = iota
	Float
	Ratio
	Filesize
	Date
	Age
)

// Parser parses value literals. The clock and location only matter for dates and ages.
type Parser struct {
	now   func() time.Time
	loc   *time.Location
	maxIn int
}

// New creates a value parser. A nil clock defaults to time.Now and a nil location to UTC.
func New(clock func() time.Time, loc *time.Location, maxIn int) Parser {
	if clock == nil {
		clock = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	if maxIn <= 0 {
		maxIn = 100
	}
	return Parser{now: clock, loc: loc, maxIn: maxIn}
}

var std = New(nil, nil, 0)

// Range parses a range literal with the default parser.
func Range(in string, kind Kind) Comparison { return std.Range(in, kind) }

// RangeFudged parses a range literal with the default parser and widens it by 5%.
func RangeFudged(in string, kind Kind) Comparison { return std.RangeFudged(in, kind) }

// DateRange parses a date literal with the default parser.
func DateRange(in string) Comparison { return std.DateRange(in) }

// Range parses the range grammar:
//
//	<=x ..x  lte      <x lt
//	>=x x..  gte      >x gt
//	a..b     between  a,b,c in
//	x        eq
func (p Parser) Range(in string, kind Kind) Comparison {
	in = strings.TrimSpace(in)
	switch {
	case len(in) > 2 && (strings.HasPrefix(in, "<=") || strings.HasPrefix(in, "..")):
		return Cmp(Lte, p.cast(in[2:], kind))
	case len(in) > 1 && in[0] == '<':
		return Cmp(Lt, p.cast(in[1:], kind))
	case len(in) > 2 && strings.HasPrefix(in, ">="):
		return Cmp(Gte, p.cast(in[2:], kind))
	case len(in) > 1 && in[0] == '>':
		return Cmp(Gt, p.cast(in[1:], kind))
	}

	if lo, hi, ok := strings.Cut(in, ".."); ok && lo != "" {
		if hi == "" {
			return Cmp(Gte, p.cast(lo, kind))
		}
		return Cmp(Between, p.cast(lo, kind), p.cast(hi, kind))
	}

	if strings.Contains(in, ",") {
		parts := strings.Split(in, ",")
		if len(parts) > p.maxIn {
			parts = parts[:p.maxIn]
		}
		values := make([]any, 0, len(parts))
		for _, part := range parts {
			values = append(values, p.cast(part, kind))
		}
		return Comparison{Op: In, Values: values}
	}

	return Cmp(Eq, p.cast(in, kind))
}

// RangeFudged parses a range and widens it by 5% in the permissive direction. Equality turns
// into a between so that mpixels:2 or filesize:1mb find files that are roughly that size.
func (p Parser) RangeFudged(in string, kind Kind) Comparison {
	c := p.Range(in, kind)
	switch c.Op {
	case Eq:
		v := c.Value()
		if v == nil {
			return c
		}
		return Cmp(Between, scale(v, 0.95), scale(v, 1.05))
	case Lt, Lte:
		return Cmp(c.Op, scale(c.Value(), 1.05))
	case Gt, Gte:
		return Cmp(c.Op, scale(c.Value(), 0.95))
	case Between:
		return Cmp(Between, scale(c.Values[0], 0.95), scale(c.Values[1], 1.05))
	}
	return c
}

var relativeAgo = regexp.MustCompile(`^(\d+)_?(s(?:econds?)?|mi(?:n(?:ute)?s?)?|h(?:ours?)?|d(?:ays?)?|w(?:eeks?)?|mo(?:nths?)?|y(?:ears?)?|decades?)_?ago$`)

// DateRange parses the date grammar: today, yesterday, day/week/month/year/decade,
// N_units_ago and anything Range accepts with dates as operands.
func (p Parser) DateRange(in string) Comparison {
	s := strings.ToLower(strings.TrimSpace(in))
	current := now.With(p.now().In(p.loc))

	switch s {
	case "today":
		return Cmp(Gte, current.BeginningOfDay())
	case "yesterday":
		y := now.With(current.AddDate(0, 0, -1))
		return Cmp(Between, y.BeginningOfDay(), y.EndOfDay())
	case "day", "week", "month", "year", "decade":
		return Cmp(Gte, ago(current.Time, 1, s))
	}

	if m := relativeAgo.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return Cmp(Gte, nil)
		}
		return Cmp(Gte, ago(current.Time, n, m[2]))
	}

	return p.Range(in, Date)
}

// AgeRange parses an age literal such as <2d or 1w..1mo onto a timestamp axis.
func (p Parser) AgeRange(in string) Comparison {
	return Mirror(p.Range(in, Age))
}

func (p Parser) cast(s string, kind Kind) any {
	switch kind {
	case Integer:
		return clampInt(leadingInt(s))
	case Float:
		f, _ := leadingFloat(s)
		return clampFloat(f)
	case Ratio:
		r, ok := ParseRatio(s)
		if !ok {
			return nil
		}
		return r
	case Filesize:
		f, ok := ParseFilesize(s)
		if !ok {
			return nil
		}
		return f
	case Date:
		t, ok := p.Date(s)
		if !ok {
			return nil
		}
		return t
	case Age:
		t, ok := p.age(s)
		if !ok {
			return nil
		}
		return t
	}
	return nil
}

var (
	intPrefix   = regexp.MustCompile(`^[+-]?\d+`)
	floatPrefix = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?`)
	filesizeRe  = regexp.MustCompile(`^(\d+(?:\.\d*)?|\.\d+)([kKmM]?)[bB]?$`)
	ageRe       = regexp.MustCompile(`^(\d+)(s(?:econds?)?|mi(?:n(?:ute)?s?)?|h(?:ours?)?|d(?:ays?)?|w(?:eeks?)?|mo(?:nths?)?|y(?:ears?)?)?$`)
)

// leadingInt reads the numeric prefix of s. Anything unparsable is zero.
func leadingInt(s string) int64 {
	m := intPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0
	}
	i, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		if strings.HasPrefix(m, "-") {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return i
}

func leadingFloat(s string) (float64, bool) {
	m := floatPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil && !isRangeErr(err) {
		return 0, false
	}
	return f, true
}

func isRangeErr(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

// ParseRatio converts w:h or a decimal into a float rounded to two places. A zero height is 0.
func ParseRatio(s string) (float64, bool) {
	left, right, found := strings.Cut(strings.TrimSpace(s), ":")
	l, ok := leadingFloat(left)
	if !ok {
		return 0, false
	}
	if !found {
		return round2(l), true
	}
	r, ok := leadingFloat(right)
	if !ok {
		return 0, false
	}
	if r == 0 {
		return 0, true
	}
	return round2(l / r), true
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// ParseFilesize converts 123, 1.5kb or 2MB into bytes.
func ParseFilesize(s string) (int64, bool) {
	m := filesizeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	size, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "m":
		size *= 1024 * 1024
	case "k":
		size *= 1024
	}
	return int64(size), true
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// Date parses an ISO date. Years outside 1 to 9999 are rejected.
func (p Parser) Date(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, p.loc)
		if err != nil {
			continue
		}
		if t.Year() < 1 || t.Year() > 9999 {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

func (p Parser) age(s string) (time.Time, bool) {
	m := ageRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	return ago(p.now().In(p.loc), n, m[2]), true
}

// ago subtracts n units from t. An empty unit means seconds.
func ago(t time.Time, n int, unit string) time.Time {
	switch {
	case strings.HasPrefix(unit, "mi"):
		return t.Add(-time.Duration(n) * time.Minute)
	case strings.HasPrefix(unit, "mo"), unit == "month":
		return t.AddDate(0, -n, 0)
	case strings.HasPrefix(unit, "h"):
		return t.Add(-time.Duration(n) * time.Hour)
	case strings.HasPrefix(unit, "d") && unit != "decade" && unit != "decades":
		return t.AddDate(0, 0, -n)
	case strings.HasPrefix(unit, "w"):
		return t.AddDate(0, 0, -7*n)
	case strings.HasPrefix(unit, "y"):
		return t.AddDate(-n, 0, 0)
	case unit == "decade" || unit == "decades":
		return t.AddDate(-10*n, 0, 0)
	}
	return t.Add(-time.Duration(n) * time.Second)
}
