package reader

import "errors"

// ErrLookupMiss marks a failed id or surface-form lookup. The vm
// package's interpreter treats it as a miss that contributes nothing
// to the node-set rather than propagating it as a hard error.
var ErrLookupMiss = errors.New("lookup miss")
