package sim

import (
	"encoding/binary"
	"sync"
)

// Buffer is a raw read/write buffer. Reads past the end return zero and
// writes past the end are dropped.
type Buffer struct {
	mu   sync.Mutex
	data []byte
}

// NewBuffer wraps data; the buffer writes into it in place.
func NewBuffer(data []byte) *Buffer { return &Buffer{data: data} }

// Bytes returns the buffer contents.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

func (b *Buffer) load(off uint64, size int) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if off+uint64(size) > uint64(len(b.data)) {
		return 0
	}
	return readLE(b.data[off:], size)
}

func (b *Buffer) store(off uint64, size int, bits uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if off+uint64(size) > uint64(len(b.data)) {
		return
	}
	writeLE(b.data[off:], size, bits)
}

func readLE(b []byte, size int) uint64 {
	switch size {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	default:
		return binary.LittleEndian.Uint64(b)
	}
}

func writeLE(b []byte, size int, bits uint64) {
	switch size {
	case 1:
		b[0] = byte(bits)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(bits)) //nolint:gosec // truncation intended
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(bits)) //nolint:gosec // truncation intended
	default:
		binary.LittleEndian.PutUint64(b, bits)
	}
}
