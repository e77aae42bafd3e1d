package pdfunlock

import "errors"

var (
	// ErrCodecUnavailable means the codec module could not be fetched,
	// compiled, instantiated, or initialized. It is not retried
	// internally, but a later call may retry the load.
	ErrCodecUnavailable = errors.New("pdfunlock: codec unavailable")

	// ErrPassword means the password is missing or wrong. This is the
	// only failure worth retrying with different input.
	ErrPassword = errors.New("pdfunlock: incorrect or missing password")

	// ErrInvalidDocument means the document opened but is unusable
	// (page count reported as zero or negative).
	ErrInvalidDocument = errors.New("pdfunlock: invalid document")

	// ErrSaveFailed means the codec rejected the save operation or a
	// sink copy failed mid-stream.
	ErrSaveFailed = errors.New("pdfunlock: save failed")

	// ErrOutOfMemory means the codec's allocator returned a null pointer.
	ErrOutOfMemory = errors.New("pdfunlock: codec out of memory")
)
