package store

import "engram/internal/idgen"

// newID allocates a new 128-bit, lexicographically-sortable identifier.
func newID() string { return idgen.New() }
