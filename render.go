package tagquery

import (
	"encoding/json"

	"github.com/pkg/errors"
)

var defaultCompiler = NewCompiler(nil)

// ToElastic is a wrapper that will compile the tag query with the default config and render it
// as an elasticsearch search request body.
func ToElastic(in string, opts ...Option) (string, error) {
	c := defaultCompiler
	if len(opts) > 0 {
		c = NewCompiler(nil, opts...)
	}

	s, err := c.Compile(in)
	if err != nil {
		return "", err
	}

	src, err := s.Source()
	if err != nil {
		return "", errors.Wrap(err, "unable to render search source")
	}
	b, err := json.Marshal(src)
	if err != nil {
		return "", errors.Wrap(err, "unable to encode search source")
	}
	return string(b), nil
}
