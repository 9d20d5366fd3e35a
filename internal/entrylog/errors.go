package entrylog

import "errors"

var (
	// ErrClosed is returned by operations invoked on a closed Entry.
	ErrClosed = errors.New("entrylog: closed")
	// ErrEntryFull is internal: it triggers rollover in EntryPool and is
	// never surfaced to a RecoverableArray caller.
	ErrEntryFull = errors.New("entrylog: entry full")
	// ErrCorruptEntry indicates a malformed or checksum-mismatched
	// record was found during replay. Replay stops for that Entry and
	// the remaining records are treated as lost.
	ErrCorruptEntry = errors.New("entrylog: corrupt entry")
	// ErrPoolExhausted is returned when, after the whole FULL backlog has
	// been applied and recycled, no RECYCLED slot is left for a new
	// current Entry.
	ErrPoolExhausted = errors.New("entrylog: pool exhausted")
)
