package entrylog

import "encoding/binary"

// Entry file header, bit-exact, big-endian:
//
//	magic(4) | version(4) | kind(4) | recordCount(4) | minScn(8) | maxScn(8)
const entryHeaderSize = 32

const (
	entryMagic   = 0x4B454E54 // "KENT"
	entryVersion = 1
)

// Kind distinguishes plain data Entries from compaction Entries. Krati's
// dense array has no compaction concept (that belongs to the
// hash-partitioned stores explicitly out of scope), so only
// KindData is ever written; the field exists for on-disk format parity
// with the wider Entry format family it is cut from.
type Kind uint32

const (
	KindData       Kind = 0
	KindCompaction Kind = 1
)

type entryHeader struct {
	kind        Kind
	recordCount uint32
	minScn      uint64
	maxScn      uint64
}

func (h entryHeader) encode() []byte {
	buf := make([]byte, entryHeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], entryMagic)
	binary.BigEndian.PutUint32(buf[4:8], entryVersion)
	binary.BigEndian.PutUint32(buf[8:12], uint32(h.kind))
	binary.BigEndian.PutUint32(buf[12:16], h.recordCount)
	binary.BigEndian.PutUint64(buf[16:24], h.minScn)
	binary.BigEndian.PutUint64(buf[24:32], h.maxScn)
	return buf
}

func decodeEntryHeader(buf []byte) (entryHeader, error) {
	if len(buf) < entryHeaderSize {
		return entryHeader{}, ErrCorruptEntry
	}
	if binary.BigEndian.Uint32(buf[0:4]) != entryMagic {
		return entryHeader{}, ErrCorruptEntry
	}
	if binary.BigEndian.Uint32(buf[4:8]) != entryVersion {
		return entryHeader{}, ErrCorruptEntry
	}
	return entryHeader{
		kind:        Kind(binary.BigEndian.Uint32(buf[8:12])),
		recordCount: binary.BigEndian.Uint32(buf[12:16]),
		minScn:      binary.BigEndian.Uint64(buf[16:24]),
		maxScn:      binary.BigEndian.Uint64(buf[24:32]),
	}, nil
}

// recordSize is the fixed on-disk size of one Entry record:
//
//	checksum(4) | index(4) | value(8) | scn(8)
//
// The checksum narrows corruption to individual records the way
// internal/wal's crc32-per-record framing does, letting replay stop at
// the first bad record instead of the whole Entry.
const recordSize = 24

type record struct {
	index uint32
	value int64
	scn   uint64
}

func (r record) encode() []byte {
	buf := make([]byte, recordSize)
	binary.BigEndian.PutUint32(buf[4:8], r.index)
	binary.BigEndian.PutUint64(buf[8:16], uint64(r.value))
	binary.BigEndian.PutUint64(buf[16:24], r.scn)
	sum := crc32Checksum(buf[4:])
	binary.BigEndian.PutUint32(buf[0:4], sum)
	return buf
}

func decodeRecord(buf []byte) (record, bool) {
	if len(buf) < recordSize {
		return record{}, false
	}
	expect := binary.BigEndian.Uint32(buf[0:4])
	actual := crc32Checksum(buf[4:recordSize])
	if expect != actual {
		return record{}, false
	}
	return record{
		index: binary.BigEndian.Uint32(buf[4:8]),
		value: int64(binary.BigEndian.Uint64(buf[8:16])),
		scn:   binary.BigEndian.Uint64(buf[16:24]),
	}, true
}
