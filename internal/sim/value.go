package sim

import (
	"math"

	"ampcap/internal/ir"
	"ampcap/internal/types"
)

// Pointer addresses groupshared memory.
type Pointer struct {
	Global ir.GlobalID
	Offset int
}

// Value is a runtime value. Scalars keep their zero-extended bits in Bits,
// floats their IEEE bits. Aggregates of scalars keep their members in Elems.
type Value struct {
	Bits  uint64
	Elems []uint64
	Ptr   *Pointer
	Res   *Buffer
}

func widthMask(w types.Width) uint64 {
	if w >= 64 {
		return math.MaxUint64
	}
	return 1<<w - 1
}

func toFloat(bits uint64, w types.Width) float64 {
	if w == types.Width32 {
		return float64(math.Float32frombits(uint32(bits))) //nolint:gosec // f32 bits
	}
	return math.Float64frombits(bits)
}

func fromFloat(f float64, w types.Width) uint64 {
	if w == types.Width32 {
		return uint64(math.Float32bits(float32(f)))
	}
	return math.Float64bits(f)
}
