package store

import "errors"

// ErrNotFound is returned by mutating operations that target a document
// which does not exist. Plain lookups return nil instead.
var ErrNotFound = errors.New("document not found")
