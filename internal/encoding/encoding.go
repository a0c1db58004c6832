// Package encoding reads and writes the flat dataset record format:
// an 8-byte native-endian key immediately followed by an 8-byte
// native-endian payload, with no header.
package encoding

import "encoding/binary"

// RecordSize is the on-disk size of one key/payload record.
const RecordSize = 16

// PutRecord writes key and payload into buf[0:RecordSize].
// Precondition: len(buf) >= RecordSize.
func PutRecord(buf []byte, key, payload uint64) {
	_ = buf[RecordSize-1]
	binary.NativeEndian.PutUint64(buf[0:8], key)
	binary.NativeEndian.PutUint64(buf[8:16], payload)
}

// ReadRecord decodes the record at buf[0:RecordSize].
// Precondition: len(buf) >= RecordSize.
func ReadRecord(buf []byte) (key, payload uint64) {
	_ = buf[RecordSize-1]
	return binary.NativeEndian.Uint64(buf[0:8]), binary.NativeEndian.Uint64(buf[8:16])
}

// RecordCount returns the number of whole records in a file of size bytes
// and whether size is an exact multiple of RecordSize.
func RecordCount(size int64) (uint64, bool) {
	if size < 0 {
		return 0, false
	}
	return uint64(size) / RecordSize, size%RecordSize == 0
}
