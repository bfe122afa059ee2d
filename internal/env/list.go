// SPDX-License-Identifier: MPL-2.0

package env

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrScalarList is the sentinel error wrapped by ScalarListError.
var ErrScalarList = errors.New("scalar value where a list was expected")

// ScalarListError is returned when a same-named scalar variable exists for
// a prefix that must be a list. The plugin configuration syntax emits
// indexed keys for list options, so a bare scalar means the pipeline used
// the wrong YAML shape.
type ScalarListError struct {
	Prefix string
}

// Error implements the error interface.
func (e *ScalarListError) Error() string {
	return fmt.Sprintf("%s must be specified as an array (%s_0, %s_1, ...), not a single value",
		e.Prefix, e.Prefix, e.Prefix)
}

// Unwrap returns ErrScalarList so callers can use errors.Is for programmatic detection.
func (e *ScalarListError) Unwrap() error { return ErrScalarList }

// List decodes an ordered list spread across indexed keys for one or more
// prefixes, concatenated in prefix order.
//
// For each prefix, keys PREFIX_0, PREFIX_1, ... are read in strictly
// increasing index order; the first missing index ends that prefix's scan,
// so a gap silently truncates the list. This mirrors how the agent emits
// array-valued plugin configuration and must be preserved as-is.
//
// A scalar variable named exactly like a prefix is a configuration error.
// found is false when the concatenated result is empty, letting callers
// treat "not configured" and "configured empty" identically.
func (s *Snapshot) List(prefixes ...string) (values []string, found bool, err error) {
	for _, prefix := range prefixes {
		if _, ok := s.Get(prefix); ok {
			return nil, false, &ScalarListError{Prefix: prefix}
		}
		for i := 0; ; i++ {
			v, ok := s.Get(prefix + "_" + strconv.Itoa(i))
			if !ok {
				break
			}
			values = append(values, v)
		}
	}
	return values, len(values) > 0, nil
}
