package entrylog

import "hash/crc32"

// crc32Checksum checksums a record the same way internal/wal checksums
// a WAL record: crc32.ChecksumIEEE over the post-checksum bytes.
func crc32Checksum(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}
