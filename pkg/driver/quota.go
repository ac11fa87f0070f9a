package driver

import (
	"fmt"

	"github.com/grindlemire/go-tagquery/pkg/query/expr"
)

// TooManyTagsError is returned when a query uses more of the tag quota than the caller allows.
type TooManyTagsError struct {
	Used int
	Free int
	Max  int
}

func (e *TooManyTagsError) Error() string {
	return fmt.Sprintf("too many tags: the query uses %d, the limit is %d", e.Used, e.Max-e.Free)
}

// CountTags tallies the quota a query uses. Free tags and free metatags do not count.
func CountTags(g *expr.Group) int {
	if g == nil {
		return 0
	}
	used := 0
	for _, child := range g.Children {
		switch n := child.(type) {
		case expr.Include:
			used += cost(n.Free)
		case expr.Exclude:
			used += cost(n.Free)
		case expr.Or:
			for _, t := range n.Tags {
				used += cost(t.Free)
			}
		case expr.Predicate:
			used += cost(n.Free)
		case *expr.Group:
			used += CountTags(n)
		}
	}
	return used
}

func cost(free bool) int {
	if free {
		return 0
	}
	return 1
}

// checkQuota fails when the query uses more than max minus the tags the caller already spent.
// A max of zero disables the check.
func checkQuota(q *expr.Query, maxTags, freeTags int) error {
	if maxTags <= 0 {
		return nil
	}
	used := CountTags(q.Root)
	if used > maxTags-freeTags {
		return &TooManyTagsError{Used: used, Free: freeTags, Max: maxTags}
	}
	return nil
}
