package slsconfig

import "github.com/goliatone/go-slsconfig/resolve"

// Error is the located failure type returned by resolution.
type Error = resolve.Error

var (
	ErrInfiniteLoop         = resolve.ErrInfiniteLoop
	ErrMissingOption        = resolve.ErrMissingOption
	ErrMissingSelfTarget    = resolve.ErrMissingSelfTarget
	ErrMissingFile          = resolve.ErrMissingFile
	ErrEmptyFile            = resolve.ErrEmptyFile
	ErrMissingFileValue     = resolve.ErrMissingFileValue
	ErrMalformedDocument    = resolve.ErrMalformedDocument
	ErrStructuredSplice     = resolve.ErrStructuredSplice
	ErrUnsupportedReference = resolve.ErrUnsupportedReference
	ErrUnresolved           = resolve.ErrUnresolved
)

// IsInfiniteLoop reports whether err was caused by a reference cycle or a
// counter ceiling.
func IsInfiniteLoop(err error) bool {
	return resolve.IsInfiniteLoop(err)
}
