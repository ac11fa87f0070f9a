package tagquery

import (
	"github.com/grindlemire/go-tagquery/pkg/driver"
	"github.com/grindlemire/go-tagquery/pkg/query/parse"
	"github.com/pkg/errors"
)

// errors a caller can report back to the person who typed the query
type (
	CountExceededError         = parse.CountExceededError
	MaxGroupDepthExceededError = parse.MaxGroupDepthExceededError
	UnbalancedGroupError       = parse.UnbalancedGroupError
	UnknownMetatagError        = parse.UnknownMetatagError
	TooManyTagsError           = driver.TooManyTagsError
)

// IsUserError reports whether err was caused by the query itself rather than by the compiler.
func IsUserError(err error) bool {
	var (
		count   *CountExceededError
		depth   *MaxGroupDepthExceededError
		balance *UnbalancedGroupError
		unknown *UnknownMetatagError
		tooMany *TooManyTagsError
	)
	return errors.As(err, &count) ||
		errors.As(err, &depth) ||
		errors.As(err, &balance) ||
		errors.As(err, &unknown) ||
		errors.As(err, &tooMany)
}
