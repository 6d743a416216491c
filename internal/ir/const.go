package ir

import (
	"strconv"
	"strings"

	"ampcap/internal/types"
)

// ConstKind distinguishes constant kinds.
type ConstKind uint8

const (
	// ConstInt is an integer literal; Bits holds the zero-extended value.
	ConstInt ConstKind = iota
	// ConstFloat is a float literal; Bits holds the IEEE bits.
	ConstFloat
	// ConstUndef is an undefined value of Type.
	ConstUndef
	// ConstNull is a null pointer or zero aggregate.
	ConstNull
	// ConstAggregate lists member constants in Elems.
	ConstAggregate
	// ConstGEP is a constant address: Elems[0] is the base global, the rest
	// are constant indices.
	ConstGEP
)

func (k ConstKind) String() string {
	switch k {
	case ConstInt:
		return "int"
	case ConstFloat:
		return "float"
	case ConstUndef:
		return "undef"
	case ConstNull:
		return "null"
	case ConstAggregate:
		return "aggregate"
	case ConstGEP:
		return "gep"
	default:
		return "ConstKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Const is an entry of the constant pool.
type Const struct {
	Kind  ConstKind
	Type  types.TypeID
	Bits  uint64
	Elems []Value
}

type constKey struct {
	Kind  ConstKind
	Type  types.TypeID
	Bits  uint64
	Elems string
}

func keyOfConst(c Const) constKey {
	key := constKey{Kind: c.Kind, Type: c.Type, Bits: c.Bits}
	if len(c.Elems) > 0 {
		var sb strings.Builder
		for _, v := range c.Elems {
			sb.WriteString(strconv.Itoa(int(v.Kind)))
			sb.WriteByte(':')
			sb.WriteString(strconv.FormatUint(uint64(v.ID), 10))
			sb.WriteByte(',')
		}
		key.Elems = sb.String()
	}
	return key
}
