package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
	"sync"

	"ampcap/internal/diag"
)

// Binding is where the capture buffer lives.
type Binding struct {
	Space uint32
	// Size is the byte size of the buffer behind the binding.
	Size uint64
}

// Dispatch is the group count of the dispatch being captured.
type Dispatch [3]uint32

// Groups returns the total number of groups.
func (d Dispatch) Groups() (uint64, error) {
	if d[0] == 0 || d[1] == 0 || d[2] == 0 {
		return 0, fmt.Errorf("dispatch %dx%dx%d has an empty dimension", d[0], d[1], d[2])
	}
	if uint64(d[0])*uint64(d[1]) > math.MaxUint32 {
		return 0, fmt.Errorf("dispatch %dx%dx%d overflows the slot index", d[0], d[1], d[2])
	}
	return uint64(d[0]) * uint64(d[1]) * uint64(d[2]), nil
}

func (d Dispatch) String() string { return fmt.Sprintf("%dx%dx%d", d[0], d[1], d[2]) }

// SlotIndex linearizes a group id: x + y*dimX + z*dimX*dimY.
func (d Dispatch) SlotIndex(group [3]uint32) uint64 {
	return uint64(group[0]) + uint64(group[1])*uint64(d[0]) + uint64(group[2])*uint64(d[0])*uint64(d[1])
}

// GroupOf inverts SlotIndex.
func (d Dispatch) GroupOf(slot uint64) [3]uint32 {
	xy := uint64(d[0]) * uint64(d[1])
	z := slot / xy
	rem := slot % xy
	return [3]uint32{uint32(rem % uint64(d[0])), uint32(rem / uint64(d[0])), uint32(z)} //nolint:gosec // bounded by d
}

// MaxBufferBytes is the largest capture buffer a pass accepts. Slot offsets
// are computed in 32-bit arithmetic inside the rewritten program.
const MaxBufferBytes uint64 = 0xFFFF0000

// RequiredBytes is the capture buffer size for dims groups. It saturates at
// math.MaxUint64.
func RequiredBytes(dims Dispatch, payloadSize uint32) uint64 {
	groups, err := dims.Groups()
	if err != nil {
		return 0
	}
	hi, lo := bits.Mul64(groups, uint64(payloadSize)+uint64(HeaderSize))
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}

// BufferProvider sizes and binds the capture buffer.
type BufferProvider interface {
	Ensure(ctx context.Context, size uint64) (Binding, error)
}

// HostBuffers is a BufferProvider backed by host memory.
type HostBuffers struct {
	Space uint32

	mu  sync.Mutex
	buf []byte
}

// Ensure grows the buffer to at least size bytes. Existing contents are kept.
func (h *HostBuffers) Ensure(ctx context.Context, size uint64) (Binding, error) {
	if err := ctx.Err(); err != nil {
		return Binding{}, err
	}
	if size > math.MaxInt32 {
		return Binding{}, fmt.Errorf("capture buffer of %d bytes is too large", size)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if uint64(len(h.buf)) < size {
		grown := make([]byte, size)
		copy(grown, h.buf)
		h.buf = grown
	}
	return Binding{Space: h.Space, Size: uint64(len(h.buf))}, nil
}

// Bytes returns the buffer contents.
func (h *HostBuffers) Bytes() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf
}

// Record is one decoded slot of a filled capture buffer.
type Record struct {
	Group  [3]uint32
	Dims   [3]uint32
	Offset uint32
	// Payload holds the packed payload leaves followed by padding up to the
	// declared payload size.
	Payload []byte
}

// DecodeRecords splits a filled capture buffer into per-group records.
func DecodeRecords(buf []byte, dims Dispatch, payloadSize uint32) ([]Record, error) {
	groups, err := dims.Groups()
	if err != nil {
		return nil, diag.Errorf(diag.CapBadDispatch, diag.NoLocation, "%w", err)
	}
	stride := uint64(payloadSize) + uint64(HeaderSize)
	if groups > uint64(len(buf))/stride {
		return nil, diag.Errorf(diag.CapPayloadSize, diag.NoLocation,
			"capture buffer holds %d bytes, %d groups need %d", len(buf), groups, RequiredBytes(dims, payloadSize))
	}
	le := binary.LittleEndian
	out := make([]Record, 0, groups)
	for slot := range groups {
		lo, hi := slot*stride, (slot+1)*stride
		rec := buf[lo:hi:hi]
		out = append(out, Record{
			Group:   dims.GroupOf(slot),
			Dims:    [3]uint32{le.Uint32(rec[0:]), le.Uint32(rec[4:]), le.Uint32(rec[8:])},
			Offset:  le.Uint32(rec[12:]),
			Payload: rec[HeaderSize:],
		})
	}
	return out, nil
}
