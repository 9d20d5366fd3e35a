package arrayfile

import "errors"

var (
	// ErrCorruptHeader is returned by Open when the signature or version
	// does not match. Fatal: the caller must not continue using the file.
	ErrCorruptHeader = errors.New("arrayfile: corrupt header")
	// ErrClosed is returned by operations invoked after Close.
	ErrClosed = errors.New("arrayfile: closed")
	// ErrLengthMismatch is returned by Load when the destination's
	// capacity does not equal the file's recorded array length.
	ErrLengthMismatch = errors.New("arrayfile: length mismatch")
)
