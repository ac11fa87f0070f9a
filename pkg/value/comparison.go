package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Op is the comparison operator of a parsed value.
type Op int

// comparison operators. Any and None are presence checks used by metatags such as pool:any.
const (
	Undefined Op = iota
	Eq
	Lt
	Lte
	Gt
	Gte
	Between
	In
	Any
	None
)

// String renders the operator as a string
func (o Op) String() string {
	return toString[o]
}

var toString = map[Op]string{
	Undefined: "UNDEFINED",
	Eq:        "EQ",
	Lt:        "LT",
	Lte:       "LTE",
	Gt:        "GT",
	Gte:       "GTE",
	Between:   "BETWEEN",
	In:        "IN",
	Any:       "ANY",
	None:      "NONE",
}

// Comparison is a typed comparison tuple. Values holds one value for Eq and the single sided
// operators, two for Between (low then high) and any number for In. A nil entry marks a value
// that failed to parse; it never matches anything.
type Comparison struct {
	Op      Op
	Values  []any
	Negated bool
}

// Cmp builds a comparison.
func Cmp(op Op, values ...any) Comparison {
	return Comparison{Op: op, Values: values}
}

// Value returns the first value, or nil.
func (c Comparison) Value() any {
	if len(c.Values) == 0 {
		return nil
	}
	return c.Values[0]
}

// Invalid reports whether nothing in the comparison parsed. An In comparison is only invalid
// when every element is nil.
func (c Comparison) Invalid() bool {
	switch c.Op {
	case Undefined:
		return true
	case Any, None:
		return false
	case In:
		for _, v := range c.Values {
			if v != nil {
				return false
			}
		}
		return true
	}
	if len(c.Values) == 0 {
		return true
	}
	for _, v := range c.Values {
		if v == nil {
			return true
		}
	}
	return false
}

// Partial reports whether an In comparison has some but not all elements invalid.
func (c Comparison) Partial() bool {
	if c.Op != In || c.Invalid() {
		return false
	}
	for _, v := range c.Values {
		if v == nil {
			return true
		}
	}
	return false
}

// Valid returns the non nil values.
func (c Comparison) Valid() []any {
	out := make([]any, 0, len(c.Values))
	for _, v := range c.Values {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

// String renders the comparison back into the query syntax it came from.
func (c Comparison) String() string {
	prefix := ""
	if c.Negated {
		prefix = "!"
	}
	switch c.Op {
	case Eq:
		return prefix + format(c.Value())
	case Lt:
		return prefix + "<" + format(c.Value())
	case Lte:
		return prefix + "<=" + format(c.Value())
	case Gt:
		return prefix + ">" + format(c.Value())
	case Gte:
		return prefix + ">=" + format(c.Value())
	case Between:
		if len(c.Values) != 2 {
			return prefix + "..."
		}
		return prefix + format(c.Values[0]) + ".." + format(c.Values[1])
	case In:
		strs := make([]string, 0, len(c.Values))
		for _, v := range c.Values {
			strs = append(strs, format(v))
		}
		return prefix + strings.Join(strs, ",")
	case Any:
		return prefix + "any"
	case None:
		return prefix + "none"
	}
	return prefix + c.Op.String()
}

func format(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format(time.RFC3339)
	}
	return fmt.Sprintf("%v", v)
}

// Invert maps a comparison to its logical negation. Single sided operators flip to their
// complement, Eq keeps its operator and toggles Negated, Between swaps its bounds to signal
// reversed semantics and In is left alone; callers negate sets with a must not wrapper.
func Invert(c Comparison) Comparison {
	out := Comparison{Op: c.Op, Values: c.Values, Negated: c.Negated}
	switch c.Op {
	case Lt:
		out.Op = Gte
	case Gte:
		out.Op = Lt
	case Lte:
		out.Op = Gt
	case Gt:
		out.Op = Lte
	case Eq:
		out.Negated = !c.Negated
	case Between:
		out.Values = swap(c.Values)
	case Any:
		out.Op = None
	case None:
		out.Op = Any
	}
	return out
}

// Mirror reverses the direction of a comparison for a reversed axis, for example ages which
// grow as timestamps shrink.
func Mirror(c Comparison) Comparison {
	out := Comparison{Op: c.Op, Values: c.Values, Negated: c.Negated}
	switch c.Op {
	case Lt:
		out.Op = Gt
	case Gt:
		out.Op = Lt
	case Lte:
		out.Op = Gte
	case Gte:
		out.Op = Lte
	case Between:
		out.Values = swap(c.Values)
	}
	return out
}

func swap(values []any) []any {
	if len(values) != 2 {
		return values
	}
	return []any{values[1], values[0]}
}

// scale multiplies a numeric value keeping its type, used for fudged ranges.
func scale(v any, f float64) any {
	switch t := v.(type) {
	case int64:
		return int64(float64(t) * f)
	case float64:
		return t * f
	}
	return v
}

func clampInt(i int64) int64 {
	if i < MinInt {
		return MinInt
	}
	if i > MaxInt {
		return MaxInt
	}
	return i
}

func clampFloat(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return math.Max(MinInt, math.Min(MaxInt, f))
}
