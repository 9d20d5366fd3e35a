// Package krati implements a persistent, recoverable array of
// fixed-width integers addressable by a 32-bit index.
//
// Durability works like a write-ahead log: every Set is appended to an
// Entry before the in-memory copy is updated, Sync/Persist replays
// pending Entries onto the backing ArrayFile and advances the water
// marks, and a crash between writes and the next Sync is repaired by
// replaying on the next Open. Get/Set/Length answer out of the
// in-memory MemoryArray, which is why reads never touch disk.
//
// Grounded on pkg/kv/kv.go: a thin facade wrapping the internal engine
// (memtable+wal+sstable there, memarray+entrylog+arrayfile here),
// serializing lifecycle transitions behind one mutex. The package
// defines its own ErrNotOpen and ErrIndexOutOfRange; errors from the
// internal packages are returned as they are, not translated or wrapped.
package krati

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/krati-go/krati/internal/arrayfile"
	"github.com/krati-go/krati/internal/entrylog"
	"github.com/krati-go/krati/internal/memarray"
)

// arrayFileName is the single data file living in an Array's directory.
// Entries live alongside it as entry_<N>.dat (internal/entrylog).
const arrayFileName = "indexes.dat"

// Width is an element's on-disk size: Width4 for 32-bit elements,
// Width8 for 64-bit elements.
type Width = arrayfile.Width

const (
	Width4 = arrayfile.Width4
	Width8 = arrayfile.Width8
)

type state int32

const (
	stateInit state = iota
	stateOpen
	stateClosed
)

// Options configures a new or reopened Array.
type Options struct {
	// Directory holds indexes.dat and the Entry files. Created if
	// absent on a fresh Open.
	Directory string

	// ElementWidth is arrayfile.Width4 or arrayfile.Width8. Ignored on
	// reopen — the value recorded in the existing header always wins.
	ElementWidth arrayfile.Width

	// SubArrayBits sizes both the MemoryArray's sub-arrays and the
	// file-length growth quantum: 1<<SubArrayBits elements. Defaults to
	// 16 (65536 elements) when zero.
	SubArrayBits uint

	// MaxEntries bounds the Entry pool. Defaults to 5 when zero.
	MaxEntries int

	// MaxEntrySize bounds records per Entry before it seals. Defaults
	// to 10000 when zero.
	MaxEntrySize int
}

func (o *Options) setDefaults() {
	if o.SubArrayBits == 0 {
		o.SubArrayBits = 16
	}
	if o.MaxEntries == 0 {
		o.MaxEntries = 5
	}
	if o.MaxEntrySize == 0 {
		o.MaxEntrySize = 10000
	}
	if o.ElementWidth == 0 {
		o.ElementWidth = arrayfile.Width8
	}
}

// Array is a recoverable array of fixed-width integers. The zero value
// is not usable; construct with Open.
type Array struct {
	lifecycle sync.Mutex
	state     atomic.Int32

	opts Options
	dir  string

	arr *arrayfile.File
	mem *memarray.Array
	mgr *entrylog.Manager

	// expandErr carries an ArrayFile growth failure out of the
	// MemoryArray expand listener, which has no error return of its
	// own. Only ExpandCapacity reads it, under lifecycle.
	expandErr error
}

// Open creates Directory if it does not exist, or recovers an existing
// one, and returns a ready-to-use Array in the OPEN state.
func Open(opts Options) (*Array, error) {
	opts.setDefaults()

	if err := os.MkdirAll(opts.Directory, 0o755); err != nil {
		return nil, err
	}

	a := &Array{opts: opts, dir: opts.Directory}
	a.mem = memarray.New(opts.SubArrayBits)
	a.mem.SetExpandListener(a.onMemExpand)

	path := filepath.Join(a.dir, arrayFileName)
	arr, err := openOrCreateArrayFile(path, opts)
	if err != nil {
		return nil, err
	}
	a.arr = arr

	// Recovery must run before Load: EntryManager.Open replays any
	// surviving Entry records onto arr (the ArrayFile) before memory
	// ever sees the file, so Load below picks up the replayed values
	// instead of the stale pre-replay contents.
	mgr, err := entrylog.Open(a.dir, arr, opts.MaxEntries, opts.MaxEntrySize)
	if err != nil {
		arr.Close()
		return nil, err
	}
	a.mgr = mgr

	initial := int(arr.Length())
	if initial > 0 {
		a.mem.ExpandCapacity(initial - 1)
		if err := arr.Load(a.mem); err != nil {
			arr.Close()
			return nil, err
		}
	}

	a.state.Store(int32(stateOpen))
	return a, nil
}

func openOrCreateArrayFile(path string, opts Options) (*arrayfile.File, error) {
	if _, err := os.Stat(path); err == nil {
		return arrayfile.Open(path, opts.ElementWidth)
	}
	initialLength := uint32(1) << opts.SubArrayBits
	return arrayfile.Create(path, initialLength, opts.ElementWidth)
}

// onMemExpand is MemoryArray's single ExpandListener: it forces the
// ArrayFile to the same length. Growth failures cannot be reverted —
// MemoryArray never removes a segment once appended — so the error is
// recorded for ExpandCapacity to surface to its caller instead.
func (a *Array) onMemExpand(newLength int) {
	if err := a.arr.SetArrayLength(uint32(newLength)); err != nil {
		a.expandErr = err
	}
}

// IsOpen reports whether the array currently accepts reads and writes.
func (a *Array) IsOpen() bool {
	return state(a.state.Load()) == stateOpen
}

func (a *Array) checkOpen() error {
	if state(a.state.Load()) != stateOpen {
		return ErrNotOpen
	}
	return nil
}

// Get returns the value stored at i. i must be less than Length().
func (a *Array) Get(i int) (int64, error) {
	if err := a.checkOpen(); err != nil {
		return 0, err
	}
	if i < 0 || i >= a.mem.Length() {
		return 0, ErrIndexOutOfRange
	}
	return a.mem.Get(i), nil
}

// Set appends (i, value, scn) to the current Entry, without an fsync,
// and then applies value to the in-memory array. scn should increase on every call; a caller that
// passes a scn at or below one already seen is not rejected — the
// record is still appended and still wins the in-memory value if it
// was the last Set call, but GetHWMark never reports anything lower
// than the highest scn seen so far. i at or beyond Length() triggers
// ExpandCapacity first.
func (a *Array) Set(i int, value int64, scn uint64) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	if i < 0 {
		return ErrIndexOutOfRange
	}
	if i >= a.mem.Length() {
		if err := a.ExpandCapacity(i); err != nil {
			return err
		}
	}
	if err := a.mgr.AddRecord(uint32(i), value, scn); err != nil {
		return err
	}
	a.mem.SetRaw(i, value)
	return nil
}

// Length returns the current addressable length. Indices in
// [0, Length()) are valid for Get.
func (a *Array) Length() (int, error) {
	if err := a.checkOpen(); err != nil {
		return 0, err
	}
	return a.mem.Length(), nil
}

// ExpandCapacity grows the array so that index i is addressable,
// rounding up to the next multiple of 1<<SubArrayBits. Growing
// MemoryArray cannot meaningfully fail; growing the backing ArrayFile
// can (disk full, permissions), in which case the memory side has
// already grown — callers should treat a non-nil error here as fatal to
// the Array rather than retry.
func (a *Array) ExpandCapacity(i int) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.expandErr = nil
	a.mem.ExpandCapacity(i)
	return a.expandErr
}

// GetLWMark returns the durable low water mark: every scn at or below
// it is guaranteed applied to the ArrayFile.
func (a *Array) GetLWMark() (uint64, error) {
	if err := a.checkOpen(); err != nil {
		return 0, err
	}
	return a.mgr.LowWaterMark(), nil
}

// GetHWMark returns the high water mark: every scn at or below it has
// been accepted by Set, whether or not it is yet durable.
func (a *Array) GetHWMark() (uint64, error) {
	if err := a.checkOpen(); err != nil {
		return 0, err
	}
	return a.mgr.HighWaterMark(), nil
}

// SaveHWMark advances or rewinds the high water mark without an
// associated value change. end > current hwm appends a no-op record
// (re-writing index 0's current value under scn=end) to push hwm
// forward — used by callers that track scn externally and want
// GetHWMark to reflect a batch boundary with no corresponding Set. A
// 0 < end < lwm forces a rewind: Sync drains any pending Entries first,
// then both water marks are pinned to end directly, discarding the
// accepted-but-not-yet-applied distinction for anything above end.
func (a *Array) SaveHWMark(end uint64) error {
	if err := a.checkOpen(); err != nil {
		return err
	}

	hwm := a.mgr.HighWaterMark()
	lwm := a.mgr.LowWaterMark()

	switch {
	case end > hwm:
		if a.mem.Length() == 0 {
			if err := a.ExpandCapacity(0); err != nil {
				return err
			}
		}
		current := a.mem.Get(0)
		return a.mgr.AddRecord(0, current, end)
	case end > 0 && end < lwm:
		if err := a.Sync(); err != nil {
			return err
		}
		return a.mgr.SetWaterMarks(end, end)
	default:
		return nil
	}
}

// Sync drains pending Entries onto the ArrayFile and advances lwmScn to
// hwmScn. Persist is a synonym kept for callers that prefer that name.
func (a *Array) Sync() error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	return a.mgr.Sync()
}

// Persist is a synonym for Sync.
func (a *Array) Persist() error {
	return a.Sync()
}

// Clear zeroes every element in place, on disk and in memory, and
// recycles every Entry. Length is unchanged.
func (a *Array) Clear() error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	a.mem.Clear()
	if err := a.mgr.Clear(); err != nil {
		return err
	}
	return a.arr.ZeroFill()
}

// Close flushes the current Entry and releases file descriptors. A
// closed Array can be reopened with Open against the same directory.
func (a *Array) Close() error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	if state(a.state.Load()) != stateOpen {
		return nil
	}
	if err := a.mgr.Close(); err != nil {
		return err
	}
	if err := a.arr.Close(); err != nil {
		return err
	}
	a.state.Store(int32(stateClosed))
	return nil
}
