package parse

import "fmt"

// CountExceededError is returned when a single group holds more tokens than allowed.
type CountExceededError struct {
	Token string
	Pos   int
	Count int
	Max   int
}

func (e *CountExceededError) Error() string {
	return fmt.Sprintf("too many tokens in one group: %q at position %d is token %d, the limit is %d", e.Token, e.Pos, e.Count, e.Max)
}

// MaxGroupDepthExceededError is returned as soon as a group opens deeper than allowed.
type MaxGroupDepthExceededError struct {
	Pos   int
	Depth int
	Max   int
}

func (e *MaxGroupDepthExceededError) Error() string {
	return fmt.Sprintf("groups nested too deeply: group at position %d would be at depth %d, the limit is %d", e.Pos, e.Depth, e.Max)
}

// UnbalancedGroupError is returned for a ) without a matching open group, or for a group
// left open at the end of the query.
type UnbalancedGroupError struct {
	Pos      int
	Unclosed bool
}

func (e *UnbalancedGroupError) Error() string {
	if e.Unclosed {
		return fmt.Sprintf("group opened at position %d is never closed", e.Pos)
	}
	return fmt.Sprintf("unexpected ) at position %d", e.Pos)
}

// UnknownMetatagError is returned in strict mode for a key:value token with an unknown key.
type UnknownMetatagError struct {
	Key   string
	Token string
	Pos   int
}

func (e *UnknownMetatagError) Error() string {
	return fmt.Sprintf("unknown metatag %q in %q at position %d", e.Key, e.Token, e.Pos)
}
