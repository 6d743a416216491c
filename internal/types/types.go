package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates all supported kinds of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVoid
	KindInt
	KindFloat
	KindPointer
	KindArray
	KindStruct
	KindVector
	KindFunc
	KindLabel
	KindMetadata
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindVoid:
		return "void"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindPointer:
		return "pointer"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindVector:
		return "vector"
	case KindFunc:
		return "func"
	case KindLabel:
		return "label"
	case KindMetadata:
		return "metadata"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// AddrSpace is the address space of a pointer.
type AddrSpace uint8

const (
	AddrDefault     AddrSpace = 0
	AddrDevice      AddrSpace = 1
	AddrConstant    AddrSpace = 2
	AddrGroupShared AddrSpace = 3
)

// Width captures the precision of integers/floats in bits.
type Width uint8

const (
	Width1  Width = 1
	Width8  Width = 8
	Width16 Width = 16
	Width32 Width = 32
	Width64 Width = 64
)

// Type is a compact descriptor for any supported type.
type Type struct {
	Kind    Kind
	Width   Width     // for scalars
	Elem    TypeID    // pointee, array/vector element, function result
	Count   uint32    // for arrays and vectors
	Space   AddrSpace // for pointers
	Name    string    // for named structs
	Members []TypeID  // struct members, function params
}

// IsScalar reports whether t is an integer or float.
func (t Type) IsScalar() bool {
	return t.Kind == KindInt || t.Kind == KindFloat
}

// Bytes returns the storage size of a scalar in bytes.
func (t Type) Bytes() uint32 {
	return uint32(t.Width) / 8
}

// Descriptor helpers ---------------------------------------------------------

// MakeInt describes an integer of the given width.
func MakeInt(width Width) Type {
	return Type{Kind: KindInt, Width: width}
}

// MakeFloat describes a floating-point type.
func MakeFloat(width Width) Type {
	return Type{Kind: KindFloat, Width: width}
}

// MakeArray describes a fixed-size array.
func MakeArray(elem TypeID, count uint32) Type {
	return Type{Kind: KindArray, Elem: elem, Count: count}
}

// MakeVector describes a fixed-size vector.
func MakeVector(elem TypeID, count uint32) Type {
	return Type{Kind: KindVector, Elem: elem, Count: count}
}

// MakePointer describes a pointer into the given address space.
func MakePointer(elem TypeID, space AddrSpace) Type {
	return Type{Kind: KindPointer, Elem: elem, Space: space}
}

// MakeStruct describes a named aggregate. An empty name makes a literal struct
// which is interned structurally.
func MakeStruct(name string, members ...TypeID) Type {
	return Type{Kind: KindStruct, Name: name, Members: members}
}

// MakeFunc describes a function signature.
func MakeFunc(result TypeID, params ...TypeID) Type {
	return Type{Kind: KindFunc, Elem: result, Members: params}
}
