// Package arrayfile implements the on-disk backing store for a Krati
// array: a fixed header (signature, version, element width, water marks,
// length) followed by a dense vector of fixed-width elements.
//
// It is the leaf component of the engine: it knows nothing
// about Entries, SCNs as a recovery concept, or the in-memory segmented
// view — it only persists bytes at offsets and keeps the header durable
// on request.
package arrayfile

import (
	"encoding/binary"
	"os"
)

// Width is the element width in bytes. Krati supports 32-bit and 64-bit
// signed integer elements.
type Width uint32

const (
	Width4 Width = 4
	Width8 Width = 8
)

// Record is a single (index, value) pair used by PutBulk.
type Record struct {
	Index uint32
	Value int64
}

// Destination receives the bulk-loaded contents of an ArrayFile. It is
// satisfied by *memarray.Array without either package importing the
// other.
type Destination interface {
	Length() int
	SetRaw(index int, value int64)
}

// File is the on-disk ArrayFile: header + length*elementWidth bytes.
type File struct {
	f      *os.File
	path   string
	width  Width
	length uint32
	lwm    uint64
	hwm    uint64
	closed bool
}

// Create allocates a new ArrayFile of the given length and element
// width. The body is zero-filled (sparse file); the header is written
// with lwmScn = hwmScn = 0.
func Create(path string, length uint32, width Width) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}

	size := int64(headerSize) + int64(length)*int64(width)
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, err
	}

	af := &File{f: f, path: path, width: width, length: length}
	if err := af.writeHeaderLocked(); err != nil {
		f.Close()
		return nil, err
	}
	return af, nil
}

// Open opens an existing ArrayFile and validates its header. The width
// recorded in the header wins over whatever the caller asks for — a
// reopen doesn't get to change an array's element width after the
// fact, so the header is authoritative and this never fails on a width
// mismatch.
func Open(path string, width Width) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, headerSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		f.Close()
		return nil, ErrCorruptHeader
	}
	h, err := decodeHeader(buf)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &File{
		f:      f,
		path:   path,
		width:  Width(h.elementWidth),
		length: h.length,
		lwm:    h.lwmScn,
		hwm:    h.hwmScn,
	}, nil
}

// Width returns the element width recorded in the header.
func (af *File) Width() Width { return af.width }

// writeHeaderLocked overwrites the header in place and fsyncs it. The
// header lives inside the same file as the element vector, so a
// whole-file atomic replace is not an option here — that primitive is
// reserved for entrylog.Entry.Recycle, where the backing file is small
// and bounded (see DESIGN.md). A torn header write is still bounded:
// the water marks recorded by the last successful WriteWaterMarks are
// exactly what recovery falls back to.
func (af *File) writeHeaderLocked() error {
	h := header{
		version:      currentVersion,
		elementWidth: uint32(af.width),
		lwmScn:       af.lwm,
		hwmScn:       af.hwm,
		length:       af.length,
	}
	if _, err := af.f.WriteAt(h.encode(), 0); err != nil {
		return err
	}
	return af.f.Sync()
}

// Length returns the current element count.
func (af *File) Length() uint32 { return af.length }

// LowWaterMark returns the durable water mark recorded in the header.
func (af *File) LowWaterMark() uint64 { return af.lwm }

// HighWaterMark returns the accepted water mark recorded in the header.
func (af *File) HighWaterMark() uint64 { return af.hwm }

// Load copies the file body into dst, one element at a time. dst's
// Length() must equal the file's recorded array length.
func (af *File) Load(dst Destination) error {
	if af.closed {
		return ErrClosed
	}
	if dst.Length() != int(af.length) {
		return ErrLengthMismatch
	}

	buf := make([]byte, af.width)
	for i := 0; i < int(af.length); i++ {
		off := int64(headerSize) + int64(i)*int64(af.width)
		if _, err := af.f.ReadAt(buf, off); err != nil {
			return err
		}
		dst.SetRaw(i, decodeElement(buf, af.width))
	}
	return nil
}

// Put writes a single element at index, in place. No fsync; callers
// batch durability through Flush/WriteWaterMarks.
func (af *File) Put(index uint32, value int64) error {
	if af.closed {
		return ErrClosed
	}
	buf := make([]byte, af.width)
	encodeElement(buf, af.width, value)
	off := int64(headerSize) + int64(index)*int64(af.width)
	_, err := af.f.WriteAt(buf, off)
	return err
}

// PutBulk applies an ordered batch of records. Records are written in
// order, so a later record for the same index overwrites an earlier one
// — last value per index wins, by construction.
func (af *File) PutBulk(records []Record) error {
	if af.closed {
		return ErrClosed
	}
	buf := make([]byte, af.width)
	for _, r := range records {
		encodeElement(buf, af.width, r.Value)
		off := int64(headerSize) + int64(r.Index)*int64(af.width)
		if _, err := af.f.WriteAt(buf, off); err != nil {
			return err
		}
	}
	return nil
}

// SetArrayLength extends (zero-filling the tail) or truncates the file
// and durably updates the header length before returning.
func (af *File) SetArrayLength(newLength uint32) error {
	if af.closed {
		return ErrClosed
	}
	size := int64(headerSize) + int64(newLength)*int64(af.width)
	if err := af.f.Truncate(size); err != nil {
		return err
	}
	if err := af.f.Sync(); err != nil {
		return err
	}

	af.length = newLength
	return af.writeHeaderLocked()
}

// WriteWaterMarks durably records the low/high water marks in the
// header and fsyncs the file.
func (af *File) WriteWaterMarks(lwm, hwm uint64) error {
	if af.closed {
		return ErrClosed
	}
	if err := af.f.Sync(); err != nil {
		return err
	}
	af.lwm, af.hwm = lwm, hwm
	return af.writeHeaderLocked()
}

// ZeroFill overwrites every element with zero and fsyncs the file. Used
// by the RecoverableArray facade's Clear to keep the on-disk body
// consistent with the in-memory MemoryArray.Clear (the facade's Clear is
// MemoryArray.Clear + entrylog.Manager.Clear + ZeroFill).
func (af *File) ZeroFill() error {
	if af.closed {
		return ErrClosed
	}
	zero := make([]byte, af.width)
	for i := 0; i < int(af.length); i++ {
		off := int64(headerSize) + int64(i)*int64(af.width)
		if _, err := af.f.WriteAt(zero, off); err != nil {
			return err
		}
	}
	return af.f.Sync()
}

// Flush fsyncs the file's data and metadata.
func (af *File) Flush() error {
	if af.closed {
		return ErrClosed
	}
	return af.f.Sync()
}

// Close releases the underlying file descriptor.
func (af *File) Close() error {
	if af.closed {
		return nil
	}
	af.closed = true
	return af.f.Close()
}

func encodeElement(buf []byte, width Width, v int64) {
	switch width {
	case Width4:
		binary.BigEndian.PutUint32(buf, uint32(v))
	case Width8:
		binary.BigEndian.PutUint64(buf, uint64(v))
	}
}

func decodeElement(buf []byte, width Width) int64 {
	switch width {
	case Width4:
		return int64(int32(binary.BigEndian.Uint32(buf)))
	case Width8:
		return int64(binary.BigEndian.Uint64(buf))
	}
	return 0
}
