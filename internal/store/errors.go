package store

import "errors"

// Sentinel errors for page-store operations, in periwiki's wiki/errors.go
// flat-list style.
var (
	ErrEmptyTitle    = errors.New("store: page title must not be empty")
	ErrPageNotFound  = errors.New("store: page not found")
	ErrMustReanalyze = errors.New("store: page re-added after analysis ran; template analysis must be rerun")
)
