package perfectpitch

import "errors"

// Fatal conditions surfaced by the pipeline. They are always wrapped with
// the offending key, pitch or byte offset; match them with errors.Is.
var (
	ErrConfigMismatch   = errors.New("configuration mismatch")
	ErrPitchOutOfRange  = errors.New("pitch is not in valid range")
	ErrMalformedScore   = errors.New("malformed score")
	ErrMismatchedArrays = errors.New("note arrays have different lengths")
	ErrIndexOutOfRange  = errors.New("example index out of range")
	ErrExampleNotFound  = errors.New("example not found")
)
