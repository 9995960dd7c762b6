package compare

import "errors"

// ErrEmptyQuery is returned by Compare when the query is empty or blank.
// It is the only error the comparison pipeline surfaces to callers: vendor
// failures, cache failures, and empty vendor responses all degrade to
// cached or synthetic data instead.
var ErrEmptyQuery = errors.New("compare: empty query")
