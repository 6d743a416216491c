package payload

import (
	"errors"
	"fmt"
	"slices"

	"ampcap/internal/diag"
	"ampcap/internal/editor"
	"ampcap/internal/ir"
	"ampcap/internal/trace"
	"ampcap/internal/types"
)

// Direction selects which way a Copier moves data.
type Direction uint8

const (
	// BufferToPayload loads from the raw buffer and stores into the payload.
	BufferToPayload Direction = iota
	// PayloadToBuffer loads from the payload and stores into the raw buffer.
	PayloadToBuffer
)

func (d Direction) String() string {
	switch d {
	case BufferToPayload:
		return "buffer->payload"
	case PayloadToBuffer:
		return "payload->buffer"
	default:
		return fmt.Sprintf("Direction(%d)", d)
	}
}

// Copier emits the per-leaf copy sequence between a groupshared payload
// variable and a raw buffer. Leaves are packed in the buffer without padding
// starting at Cursor bytes past Base.
type Copier struct {
	Editor *editor.Editor
	Dir    Direction
	// Handle is the raw buffer handle.
	Handle ir.Value
	// Base is the i32 byte offset of the record in the buffer.
	Base ir.Value
	// Payload is the groupshared variable.
	Payload ir.GlobalID
	// Cursor is the byte offset of the next leaf relative to Base.
	Cursor uint32
}

// CopyMember copies member idx of the payload type at the cursor position.
func (c *Copier) CopyMember(at *editor.Cursor, payloadType types.TypeID, idx uint32) error {
	pt := c.Editor.TypeOf(payloadType)
	if pt.Kind != types.KindStruct || int(idx) >= len(pt.Members) {
		return c.errorf(diag.CpyBadPath, "member %d of %s", idx, c.Editor.Types().String(payloadType))
	}
	return c.Copy(at, pt.Members[idx], []uint32{idx})
}

// Copy copies every leaf of t, which lives at path below the payload root.
func (c *Copier) Copy(at *editor.Cursor, t types.TypeID, path []uint32) error {
	leaves, err := Leaves(c.Editor.Types(), t)
	if err != nil {
		var ue *UnsupportedError
		if errors.As(err, &ue) {
			full := append(slices.Clone(path), ue.Path...)
			return c.errorf(diag.CpyUnsupportedLeaf, "%s (%s) at %v", ue.Name, ue.Kind, full)
		}
		return c.errorf(diag.CpyUnsupportedLeaf, "%w", err)
	}
	_, span := trace.Start(c.Editor.Context(), trace.ScopeInstr, "copy_"+c.Dir.String())
	defer span.End("")
	for _, leaf := range leaves {
		full := append(slices.Clone(path), leaf.Path...)
		if err := c.copyLeaf(at, leaf, full); err != nil {
			return err
		}
	}
	span.WithExtra("leaves", fmt.Sprint(len(leaves)))
	return nil
}

func (c *Copier) errorf(code diag.Code, format string, args ...any) error {
	err := diag.Errorf(code, c.Editor.Location(), format, args...)
	diag.ReportErr(c.Editor.Reporter(), code, err)
	return err
}

// Suffix returns the overload suffix of a scalar type: f or i followed by the
// bit width.
func Suffix(t types.Type) string {
	if t.Kind == types.KindFloat {
		return fmt.Sprintf("f%d", t.Width)
	}
	return fmt.Sprintf("i%d", t.Width)
}

// DeclareBufferLoad declares dx.op.rawBufferLoad for scalar type t.
func DeclareBufferLoad(ed *editor.Editor, t types.TypeID) (ir.FuncID, error) {
	sfx := Suffix(ed.TypeOf(t))
	i32 := ed.I32()
	ret := ed.InternStruct(ir.TypeResRetPrefix+sfx, t, t, t, t, i32)
	return ed.DeclareFunction("dx.op.rawBufferLoad."+sfx, ret,
		[]types.TypeID{i32, ed.HandleType(), i32, i32, ed.I8(), i32},
		ir.AttrNoUnwind|ir.AttrReadOnly)
}

// DeclareBufferStore declares dx.op.rawBufferStore for scalar type t.
func DeclareBufferStore(ed *editor.Editor, t types.TypeID) (ir.FuncID, error) {
	i32 := ed.I32()
	return ed.DeclareFunction("dx.op.rawBufferStore."+Suffix(ed.TypeOf(t)), ed.Void(),
		[]types.TypeID{i32, ed.HandleType(), i32, i32, t, t, t, t, ed.I8(), i32},
		ir.AttrNoUnwind)
}

func (c *Copier) copyLeaf(at *editor.Cursor, leaf Leaf, path []uint32) error {
	ed := c.Editor
	align := max(4, leaf.Bytes())
	g := ed.Program().Global(c.Payload)
	if g == nil {
		return c.errorf(diag.CpyBadPath, "payload global %d not found", c.Payload)
	}
	gep := ed.GEP(ed.Pointer(leaf.Type, g.Space), c.Payload, append([]uint32{0}, path...)...)
	offset := ed.AddNSW(c.Base, ed.ConstU32(c.Cursor))

	switch c.Dir {
	case BufferToPayload:
		load, err := DeclareBufferLoad(ed, leaf.Type)
		if err != nil {
			return err
		}
		off, err := at.Emit(offset)
		if err != nil {
			return err
		}
		ret, err := at.Emit(ed.Call(load, ir.DXOpRawBufferLoad,
			c.Handle, off, ed.Undef(ed.I32()), ed.ConstU8(0x1), ed.ConstU32(align)))
		if err != nil {
			return err
		}
		v, err := at.Emit(ed.Extract(leaf.Type, ret, 0))
		if err != nil {
			return err
		}
		if _, err := at.Emit(ed.Store(gep, v, align)); err != nil {
			return err
		}
	case PayloadToBuffer:
		store, err := DeclareBufferStore(ed, leaf.Type)
		if err != nil {
			return err
		}
		v, err := at.Emit(ed.Load(leaf.Type, gep, align))
		if err != nil {
			return err
		}
		off, err := at.Emit(offset)
		if err != nil {
			return err
		}
		undef := ed.Undef(leaf.Type)
		if _, err := at.Emit(ed.Call(store, ir.DXOpRawBufferStore,
			c.Handle, off, ed.Undef(ed.I32()), v, undef, undef, undef, ed.ConstU8(0x1), ed.ConstU32(align))); err != nil {
			return err
		}
	default:
		return c.errorf(diag.CpyBadPath, "unknown direction %s", c.Dir)
	}
	c.Cursor += leaf.Bytes()
	return nil
}
