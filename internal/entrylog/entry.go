// Package entrylog implements the write-absorption layer of a Krati
// array: bounded, append-only log segments (Entry) managed by an
// EntryPool, glued to water-mark bookkeeping and crash recovery by
// EntryManager.
package entrylog

import (
	"bytes"
	"log"
	"os"

	"github.com/natefinch/atomic"

	"github.com/krati-go/krati/internal/arrayfile"
)

// State is an Entry's position in its OPEN -> FULL -> APPLIED ->
// RECYCLED lifecycle.
type State int

const (
	StateOpen State = iota
	StateFull
	StateApplied
	StateRecycled
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateFull:
		return "FULL"
	case StateApplied:
		return "APPLIED"
	case StateRecycled:
		return "RECYCLED"
	default:
		return "UNKNOWN"
	}
}

// Applier is the subset of arrayfile.File that Entry.Apply needs.
type Applier interface {
	PutBulk(records []arrayfile.Record) error
	Flush() error
}

// Entry is one bounded, append-only log segment: up to maxSize records
// of (index, value, scn) in append order, backed by its own file. Scn
// order is not enforced; see Append.
type Entry struct {
	path    string
	file    *os.File
	maxSize int

	state  State
	count  int
	minScn uint64
	maxScn uint64
	hasAny bool
}

// create truncates (or creates) the file at path to a fresh, empty
// Entry and returns it in the OPEN state.
func create(path string, maxSize int) (*Entry, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	e := &Entry{path: path, file: f, maxSize: maxSize, state: StateOpen}
	if err := e.writeHeaderLocked(); err != nil {
		f.Close()
		return nil, err
	}
	return e, nil
}

// openExisting reads an on-disk Entry file and its records and returns
// the Entry marked FULL; the caller (EntryManager's recovery path)
// replays or discards the records, after which every slot is recycled.
func openExisting(path string, maxSize int) (*Entry, []record, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, nil, err
	}

	hbuf := make([]byte, entryHeaderSize)
	n, err := f.ReadAt(hbuf, 0)
	if err != nil || n < entryHeaderSize {
		// Empty or never-initialized slot: treat as a fresh, empty Entry.
		f.Close()
		e, cerr := create(path, maxSize)
		return e, nil, cerr
	}
	h, err := decodeEntryHeader(hbuf)
	if err != nil {
		f.Close()
		e, cerr := create(path, maxSize)
		return e, nil, cerr
	}

	e := &Entry{path: path, file: f, maxSize: maxSize, state: StateFull}
	records := make([]record, 0, h.recordCount)

	off := int64(entryHeaderSize)
	rbuf := make([]byte, recordSize)
	for i := uint32(0); i < h.recordCount; i++ {
		if _, err := f.ReadAt(rbuf, off); err != nil {
			// Truncated file: stop replaying this Entry, keep what we have.
			log.Printf("entrylog: %s: truncated after %d of %d records", path, i, h.recordCount)
			break
		}
		rec, ok := decodeRecord(rbuf)
		if !ok {
			// Corrupt record: stop replaying the rest of this Entry
			// (the recovery protocol CorruptEntry policy).
			log.Printf("entrylog: %s: corrupt record %d of %d, dropping the rest", path, i, h.recordCount)
			break
		}
		records = append(records, rec)
		off += recordSize
	}

	if len(records) > 0 {
		e.hasAny = true
		e.count = len(records)
		e.minScn = records[0].scn
		for _, r := range records {
			if r.scn > e.maxScn {
				e.maxScn = r.scn
			}
		}
	}

	return e, records, nil
}

// writeHeaderLocked persists the current header fields in place.
func (e *Entry) writeHeaderLocked() error {
	h := entryHeader{
		kind:        KindData,
		recordCount: uint32(e.count),
		minScn:      e.minScn,
		maxScn:      e.maxScn,
	}
	if _, err := e.file.WriteAt(h.encode(), 0); err != nil {
		return err
	}
	return nil
}

// MaxScn returns the highest SCN appended so far, or 0 if empty.
func (e *Entry) MaxScn() uint64 { return e.maxScn }

// Count returns the number of records appended.
func (e *Entry) Count() int { return e.count }

// State returns the Entry's current lifecycle state.
func (e *Entry) State() State { return e.state }

// IsFull reports whether the Entry has reached its capacity.
func (e *Entry) IsFull() bool { return e.count >= e.maxSize }

// Append adds one record. Returns ErrEntryFull once the Entry is at
// capacity — the caller (Manager.AddRecord) rolls over to a fresh Entry
// through Pool.Rollover and retries.
//
// scn is expected to increase across calls but this is not enforced:
// a caller that supplies a scn at or below the Entry's running maximum
// still gets the record written in append order. Replay applies records
// in that same order, so an out-of-order scn's value still wins if it
// was appended last — the in-memory array sees it immediately through
// RecoverableArray.Set, and hwmScn only ever moves forward, so this
// does not roll back what GetHWMark reports. It is a known hazard for
// callers that do not generate strictly increasing scns themselves.
func (e *Entry) Append(index uint32, value int64, scn uint64) error {
	if e.state != StateOpen {
		return ErrClosed
	}
	if e.IsFull() {
		return ErrEntryFull
	}

	r := record{index: index, value: value, scn: scn}
	off := int64(entryHeaderSize) + int64(e.count)*recordSize
	if _, err := e.file.WriteAt(r.encode(), off); err != nil {
		return err
	}

	e.count++
	if !e.hasAny {
		e.minScn = scn
		e.hasAny = true
	}
	if scn > e.maxScn {
		e.maxScn = scn
	}

	return e.writeHeaderLocked()
}

// Flush fsyncs the Entry file.
func (e *Entry) Flush() error {
	return e.file.Sync()
}

// Seal transitions an OPEN Entry to FULL. Called by EntryPool on
// rollover, when the Entry is at capacity, and by Drain, when it is
// closed out early on Sync.
func (e *Entry) Seal() error {
	if e.state == StateOpen {
		e.state = StateFull
	}
	return e.Flush()
}

// records reads back every record currently stored, in append order.
func (e *Entry) records() ([]record, error) {
	out := make([]record, 0, e.count)
	rbuf := make([]byte, recordSize)
	off := int64(entryHeaderSize)
	for i := 0; i < e.count; i++ {
		if _, err := e.file.ReadAt(rbuf, off); err != nil {
			return nil, err
		}
		rec, ok := decodeRecord(rbuf)
		if !ok {
			return nil, ErrCorruptEntry
		}
		out = append(out, rec)
		off += recordSize
	}
	return out, nil
}

// Apply iterates the Entry's records in order, writes each one to dst,
// fsyncs dst, then transitions the Entry to APPLIED. Advancing the low
// water mark is left to the caller (Pool.Rollover reports MaxScn).
func (e *Entry) Apply(dst Applier) error {
	recs, err := e.records()
	if err != nil {
		return err
	}

	batch := make([]arrayfile.Record, len(recs))
	for i, r := range recs {
		batch[i] = arrayfile.Record{Index: r.index, Value: r.value}
	}
	if err := dst.PutBulk(batch); err != nil {
		return err
	}
	if err := dst.Flush(); err != nil {
		return err
	}

	e.state = StateApplied
	return nil
}

// Recycle truncates the Entry back to a fresh, empty header and marks
// it RECYCLED. The rewrite goes through natefinch/atomic.WriteFile
// rather than an in-place truncate+rewrite: an Entry file is small and
// bounded (maxEntrySize records), so replacing it wholesale is cheap,
// and it means a crash mid-recycle can never leave a file with a
// header claiming N records but fewer than N actually present — the
// rename either lands the old full Entry or the new empty one, nothing
// in between.
func (e *Entry) Recycle() error {
	h := entryHeader{kind: KindData}
	if err := atomic.WriteFile(e.path, bytes.NewReader(h.encode())); err != nil {
		return err
	}

	if err := e.file.Close(); err != nil {
		return err
	}
	f, err := os.OpenFile(e.path, os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	e.file = f

	e.state = StateRecycled
	e.count = 0
	e.minScn, e.maxScn = 0, 0
	e.hasAny = false
	return nil
}

// reopenAsCurrent transitions a RECYCLED Entry back to OPEN for reuse
// by EntryPool.acquireFree.
func (e *Entry) reopenAsCurrent() {
	e.state = StateOpen
}

// Close releases the Entry's file descriptor.
func (e *Entry) Close() error {
	if e.file == nil {
		return nil
	}
	err := e.file.Close()
	e.file = nil
	return err
}

// Path returns the Entry's backing file path.
func (e *Entry) Path() string { return e.path }
