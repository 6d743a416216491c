package ir

import "fmt"

// Op is an instruction opcode.
type Op uint8

const (
	OpInvalid Op = iota
	OpRet
	OpBr
	OpSwitch
	OpUnreachable
	OpAdd
	OpSub
	OpMul
	OpUDiv
	OpURem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpLShr
	OpFAdd
	OpFMul
	OpICmpEq
	OpICmpNe
	OpICmpULT
	OpLoad
	OpStore
	OpExtractValue
	OpCall
	OpTrunc
	OpZExt
	OpUIToFP
	opCount
)

var opNames = [...]string{
	OpInvalid:      "invalid",
	OpRet:          "ret",
	OpBr:           "br",
	OpSwitch:       "switch",
	OpUnreachable:  "unreachable",
	OpAdd:          "add",
	OpSub:          "sub",
	OpMul:          "mul",
	OpUDiv:         "udiv",
	OpURem:         "urem",
	OpAnd:          "and",
	OpOr:           "or",
	OpXor:          "xor",
	OpShl:          "shl",
	OpLShr:         "lshr",
	OpFAdd:         "fadd",
	OpFMul:         "fmul",
	OpICmpEq:       "icmp eq",
	OpICmpNe:       "icmp ne",
	OpICmpULT:      "icmp ult",
	OpLoad:         "load",
	OpStore:        "store",
	OpExtractValue: "extractvalue",
	OpCall:         "call",
	OpTrunc:        "trunc",
	OpZExt:         "zext",
	OpUIToFP:       "uitofp",
}

func (op Op) String() string {
	if op < opCount {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", op)
}

// Valid reports whether op is a known opcode.
func (op Op) Valid() bool { return op > OpInvalid && op < opCount }

// IsTerminator reports whether op ends a basic block.
func (op Op) IsTerminator() bool {
	switch op {
	case OpRet, OpBr, OpSwitch, OpUnreachable:
		return true
	}
	return false
}

// IsBinary reports whether op takes two operands of the result type.
func (op Op) IsBinary() bool {
	return op >= OpAdd && op <= OpFMul
}

// IsCompare reports whether op is an integer comparison producing i1.
func (op Op) IsCompare() bool {
	return op >= OpICmpEq && op <= OpICmpULT
}

// IsCast reports whether op converts its single operand to the result type.
func (op Op) IsCast() bool {
	return op >= OpTrunc && op <= OpUIToFP
}
