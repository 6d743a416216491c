package editor

import (
	"math"

	"ampcap/internal/diag"
	"ampcap/internal/ir"
	"ampcap/internal/types"
)

// Types -----------------------------------------------------------------------

func (e *Editor) Void() types.TypeID { return e.prog.Types.Void() }
func (e *Editor) Bool() types.TypeID { return e.prog.Types.Bool() }
func (e *Editor) I8() types.TypeID   { return e.prog.Types.Int(types.Width8) }
func (e *Editor) I32() types.TypeID  { return e.prog.Types.Int(types.Width32) }
func (e *Editor) I64() types.TypeID  { return e.prog.Types.Int(types.Width64) }

// Int interns an integer type of width w.
func (e *Editor) Int(w types.Width) types.TypeID { return e.prog.Types.Int(w) }

// Float interns a float type of width w.
func (e *Editor) Float(w types.Width) types.TypeID { return e.prog.Types.Float(w) }

// Pointer interns a pointer to elem in space.
func (e *Editor) Pointer(elem types.TypeID, space types.AddrSpace) types.TypeID {
	return e.prog.Types.Pointer(elem, space)
}

// Array interns a fixed-size array type.
func (e *Editor) Array(elem types.TypeID, count uint32) types.TypeID {
	return e.prog.Types.Array(elem, count)
}

// InternStruct returns the named aggregate called name, creating it with
// members when absent. A second registration returns the first definition.
func (e *Editor) InternStruct(name string, members ...types.TypeID) types.TypeID {
	return e.prog.Types.Struct(name, members...)
}

// AppendMembers grows the named struct id in place.
func (e *Editor) AppendMembers(id types.TypeID, members ...types.TypeID) error {
	if err := e.prog.Types.AppendMembers(id, members...); err != nil {
		return e.errorf(diag.EdtTypeMismatch, "%w", err)
	}
	e.touch("append_members", e.prog.Types.String(id))
	return nil
}

// TypeOf returns the type descriptor behind id.
func (e *Editor) TypeOf(id types.TypeID) types.Type {
	t, _ := e.prog.Types.Lookup(id)
	return t
}

// ValueType returns the type of v. Blocks, literals and unknown references
// yield NoTypeID.
func (e *Editor) ValueType(v ir.Value) types.TypeID {
	switch v.Kind {
	case ir.ValConst:
		if c := e.prog.Const(ir.ConstID(v.ID)); c != nil {
			return c.Type
		}
	case ir.ValInstr:
		if in := e.prog.Instr(ir.InstrID(v.ID)); in != nil {
			return in.Type
		}
	case ir.ValGlobal:
		if g := e.prog.Global(ir.GlobalID(v.ID)); g != nil {
			return g.Type
		}
	}
	return types.NoTypeID
}

// Constants -------------------------------------------------------------------

// ConstInt interns an integer constant of type t.
func (e *Editor) ConstInt(t types.TypeID, bits uint64) ir.Value {
	return ir.ConstValue(e.prog.AddConst(ir.Const{Kind: ir.ConstInt, Type: t, Bits: bits}))
}

func (e *Editor) ConstU32(n uint32) ir.Value { return e.ConstInt(e.I32(), uint64(n)) }
func (e *Editor) ConstU8(n uint8) ir.Value   { return e.ConstInt(e.I8(), uint64(n)) }
func (e *Editor) ConstI64(n uint64) ir.Value { return e.ConstInt(e.I64(), n) }

// ConstBool interns an i1 constant.
func (e *Editor) ConstBool(b bool) ir.Value {
	var bits uint64
	if b {
		bits = 1
	}
	return e.ConstInt(e.Bool(), bits)
}

// ConstF32 interns a float constant.
func (e *Editor) ConstF32(f float32) ir.Value {
	return ir.ConstValue(e.prog.AddConst(ir.Const{
		Kind: ir.ConstFloat, Type: e.Float(types.Width32), Bits: uint64(math.Float32bits(f)),
	}))
}

// Undef interns an undefined value of type t.
func (e *Editor) Undef(t types.TypeID) ir.Value {
	return ir.ConstValue(e.prog.AddConst(ir.Const{Kind: ir.ConstUndef, Type: t}))
}

// Aggregate interns a constant aggregate of type t.
func (e *Editor) Aggregate(t types.TypeID, elems ...ir.Value) ir.Value {
	return ir.ConstValue(e.prog.AddConst(ir.Const{Kind: ir.ConstAggregate, Type: t, Elems: elems}))
}

// GEP interns a constant address into global g. ptr is the pointer type of
// the addressed element; indices are i32 constants.
func (e *Editor) GEP(ptr types.TypeID, g ir.GlobalID, indices ...uint32) ir.Value {
	elems := make([]ir.Value, 0, len(indices)+1)
	elems = append(elems, ir.GlobalValue(g))
	for _, idx := range indices {
		elems = append(elems, e.ConstU32(idx))
	}
	return ir.ConstValue(e.prog.AddConst(ir.Const{Kind: ir.ConstGEP, Type: ptr, Elems: elems}))
}

// HandleType interns the opaque resource handle type.
func (e *Editor) HandleType() types.TypeID {
	return e.InternStruct(ir.TypeHandle, e.Pointer(e.I8(), types.AddrDefault))
}
