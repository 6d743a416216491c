package container

import (
	"fmt"

	"fortio.org/safecast"

	"ampcap/internal/diag"
)

// Stage values stored in the pipeline state chunk.
const (
	StageCompute       uint32 = 5
	StageMesh          uint32 = 13
	StageAmplification uint32 = 14
)

// Resource types of the pipeline state resource table.
const (
	ResourceInvalid uint32 = iota
	ResourceSampler
	ResourceCBV
	ResourceSRVTyped
	ResourceSRVRaw
	ResourceSRVStructured
	ResourceUAVTyped
	ResourceUAVRaw
	ResourceUAVStructured
)

// ShapeRawBuffer is the resource shape of byte address buffers.
const ShapeRawBuffer uint32 = 11

// PipelineResource is one binding of the resource table.
type PipelineResource struct {
	Type       uint32
	Space      uint32
	LowerBound uint32
	UpperBound uint32
	Shape      uint32
	Flags      uint32
}

// PipelineState is the decoded pipeline state chunk.
type PipelineState struct {
	LayoutVersion uint32
	Stage         uint32
	NumThreads    [3]uint32
	PayloadSize   uint32
	Resources     []PipelineResource
	EntryName     string
	// Trailing is carried through untouched.
	Trailing []byte
}

const (
	pipelineFixed    = 4 * 7
	pipelineResource = 4 * 6
)

func pipelineErr(format string, args ...any) *diag.Error {
	return diag.Errorf(diag.BlobBadPipeline, diag.NoLocation.InChunk(ChunkPipeline.String()), format, args...)
}

// DecodePipelineState parses the pipeline state chunk.
func DecodePipelineState(data []byte) (*PipelineState, error) {
	if len(data) < pipelineFixed {
		return nil, pipelineErr("chunk is %d bytes, need %d", len(data), pipelineFixed)
	}
	ps := &PipelineState{
		LayoutVersion: le.Uint32(data[0:]),
		Stage:         le.Uint32(data[4:]),
		NumThreads:    [3]uint32{le.Uint32(data[8:]), le.Uint32(data[12:]), le.Uint32(data[16:])},
		PayloadSize:   le.Uint32(data[20:]),
	}
	count := uint64(le.Uint32(data[24:]))
	off := uint64(pipelineFixed)
	if off+count*pipelineResource+4 > uint64(len(data)) {
		return nil, pipelineErr("resource table of %d entries exceeds chunk", count)
	}
	ps.Resources = make([]PipelineResource, 0, count)
	for range count {
		ps.Resources = append(ps.Resources, PipelineResource{
			Type:       le.Uint32(data[off:]),
			Space:      le.Uint32(data[off+4:]),
			LowerBound: le.Uint32(data[off+8:]),
			UpperBound: le.Uint32(data[off+12:]),
			Shape:      le.Uint32(data[off+16:]),
			Flags:      le.Uint32(data[off+20:]),
		})
		off += pipelineResource
	}
	nameLen := uint64(le.Uint32(data[off:]))
	off += 4
	if off+nameLen > uint64(len(data)) {
		return nil, pipelineErr("entry name of %d bytes exceeds chunk", nameLen)
	}
	ps.EntryName = string(data[off : off+nameLen])
	off += nameLen
	if off < uint64(len(data)) {
		ps.Trailing = append([]byte(nil), data[off:]...)
	}
	return ps, nil
}

// Encode serializes the pipeline state.
func (ps *PipelineState) Encode() ([]byte, error) {
	count, err := safecast.Conv[uint32](len(ps.Resources))
	if err != nil {
		return nil, pipelineErr("resource count: %w", err)
	}
	nameLen, err := safecast.Conv[uint32](len(ps.EntryName))
	if err != nil {
		return nil, pipelineErr("entry name: %w", err)
	}
	out := make([]byte, 0, pipelineFixed+len(ps.Resources)*pipelineResource+4+len(ps.EntryName)+len(ps.Trailing))
	out = le.AppendUint32(out, ps.LayoutVersion)
	out = le.AppendUint32(out, ps.Stage)
	for _, n := range ps.NumThreads {
		out = le.AppendUint32(out, n)
	}
	out = le.AppendUint32(out, ps.PayloadSize)
	out = le.AppendUint32(out, count)
	for _, r := range ps.Resources {
		out = le.AppendUint32(out, r.Type)
		out = le.AppendUint32(out, r.Space)
		out = le.AppendUint32(out, r.LowerBound)
		out = le.AppendUint32(out, r.UpperBound)
		out = le.AppendUint32(out, r.Shape)
		out = le.AppendUint32(out, r.Flags)
	}
	out = le.AppendUint32(out, nameLen)
	out = append(out, ps.EntryName...)
	out = append(out, ps.Trailing...)
	return out, nil
}

// FindResource returns the index of the binding covering (typ, space, reg).
func (ps *PipelineState) FindResource(typ, space, reg uint32) (int, bool) {
	for i, r := range ps.Resources {
		if r.Type == typ && r.Space == space && r.LowerBound <= reg && reg <= r.UpperBound {
			return i, true
		}
	}
	return -1, false
}

func (ps *PipelineState) String() string {
	return fmt.Sprintf("stage=%d threads=%v payload=%d resources=%d entry=%q",
		ps.Stage, ps.NumThreads, ps.PayloadSize, len(ps.Resources), ps.EntryName)
}
