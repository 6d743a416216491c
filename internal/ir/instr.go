package ir

import (
	"math/bits"

	"ampcap/internal/types"
)

// InstrFlags carries wrap flags of arithmetic instructions.
type InstrFlags uint8

const (
	FlagNoSignedWrap InstrFlags = 1 << iota
	FlagNoUnsignedWrap
)

// Instr is an entry of the instruction pool. Operand layouts:
//
//	br         [target] or [then, else, cond]
//	switch     [cond, default, caseConst0, target0, ...]
//	ret        [] or [value]
//	load       [ptr]
//	store      [ptr, value]
//	extract    [aggregate, literal index]
//	casts      [value]
//	call       arguments in order; the callee is in Callee
type Instr struct {
	Op     Op
	Type   types.TypeID
	Args   []Value
	Callee FuncID
	Align  uint8
	Flags  InstrFlags
}

// EncodeAlign converts a byte alignment to the log2+1 form stored in Align.
func EncodeAlign(bytes uint32) uint8 {
	if bytes == 0 {
		return 0
	}
	return uint8(bits.Len32(bytes)) & 0xff
}

// DecodeAlign converts a stored Align back to bytes; 0 means unspecified.
func DecodeAlign(a uint8) uint32 {
	if a == 0 {
		return 0
	}
	return 1 << (a - 1)
}

// IsCallTo reports whether the instruction calls fn.
func (in *Instr) IsCallTo(fn FuncID) bool {
	return in.Op == OpCall && in.Callee == fn
}
