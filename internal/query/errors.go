package query

import "errors"

// ErrCompile marks a chain rejected during validation: an empty chain,
// a type-incompatible sequence, or an operand outside its declared
// range. It is surfaced before any execution, never partially.
var ErrCompile = errors.New("compile error")
