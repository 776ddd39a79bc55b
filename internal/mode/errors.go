package mode

import "errors"

// ErrMissingDependency is returned by New when a required port is nil.
var ErrMissingDependency = errors.New("mode: missing dependency")
