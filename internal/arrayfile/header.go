package arrayfile

import "encoding/binary"

// headerSize is the fixed, bit-exact size of the ArrayFile header.
//
//	magic(4) | version(4) | elementWidth(4) | reserved(4) |
//	lwmScn(8) | hwmScn(8) | length(4) | reserved(4)
const headerSize = 40

const (
	magic         = 0x4B524154 // "KRAT"
	currentVersion = 1
)

// header mirrors the on-disk ArrayFile header. All integers are big-endian.
type header struct {
	version      uint32
	elementWidth uint32
	lwmScn       uint64
	hwmScn       uint64
	length       uint32
}

// encode writes h into a freshly allocated headerSize-byte buffer.
func (h header) encode() []byte {
	buf := make([]byte, headerSize)
	binary.BigEndian.PutUint32(buf[0:4], magic)
	binary.BigEndian.PutUint32(buf[4:8], h.version)
	binary.BigEndian.PutUint32(buf[8:12], h.elementWidth)
	// buf[12:16] reserved
	binary.BigEndian.PutUint64(buf[16:24], h.lwmScn)
	binary.BigEndian.PutUint64(buf[24:32], h.hwmScn)
	binary.BigEndian.PutUint32(buf[32:36], h.length)
	// buf[36:40] reserved
	return buf
}

// decodeHeader validates the magic/version and parses buf into a header.
func decodeHeader(buf []byte) (header, error) {
	if len(buf) < headerSize {
		return header{}, ErrCorruptHeader
	}
	if binary.BigEndian.Uint32(buf[0:4]) != magic {
		return header{}, ErrCorruptHeader
	}
	version := binary.BigEndian.Uint32(buf[4:8])
	if version != currentVersion {
		return header{}, ErrCorruptHeader
	}
	return header{
		version:      version,
		elementWidth: binary.BigEndian.Uint32(buf[8:12]),
		lwmScn:       binary.BigEndian.Uint64(buf[16:24]),
		hwmScn:       binary.BigEndian.Uint64(buf[24:32]),
		length:       binary.BigEndian.Uint32(buf[32:36]),
	}, nil
}
