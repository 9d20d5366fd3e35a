package krati

import "errors"

var (
	// ErrNotOpen is returned when an operation requiring the OPEN state
	// is invoked on a CLOSED or never-opened Array.
	ErrNotOpen = errors.New("krati: array is not open")
	// ErrIndexOutOfRange is returned by Get for a negative index or one
	// at or beyond Length(). Set returns it only for a negative index —
	// an index at or beyond Length() auto-expands.
	ErrIndexOutOfRange = errors.New("krati: index out of range")
)
