package capture

import (
	"ampcap/internal/container"
	"ampcap/internal/editor"
	"ampcap/internal/ir"
	"ampcap/internal/types"
)

// HandleBuilder emits the instructions that produce a handle for a declared
// resource.
type HandleBuilder interface {
	Build(cur *editor.Cursor, decl editor.ResourceDecl) (ir.Value, error)
}

// NewHandleBuilder picks the builder matching the shader model of ed.
func NewHandleBuilder(ed *editor.Editor) HandleBuilder {
	if ed.Version().AtLeast(container.HandleFromBinding) {
		return BindingHandleBuilder{Editor: ed}
	}
	return LegacyHandleBuilder{Editor: ed}
}

// LegacyHandleBuilder creates handles from the resource slot id.
type LegacyHandleBuilder struct {
	Editor *editor.Editor
}

func (b LegacyHandleBuilder) Build(cur *editor.Cursor, decl editor.ResourceDecl) (ir.Value, error) {
	ed := b.Editor
	fn, err := ed.DeclareFunction("dx.op.createHandle", ed.HandleType(),
		[]types.TypeID{ed.I32(), ed.I8(), ed.I32(), ed.I32(), ed.Bool()},
		ir.AttrNoUnwind|ir.AttrReadOnly)
	if err != nil {
		return ir.Value{}, err
	}
	return cur.Emit(ed.Call(fn, ir.DXOpCreateHandle,
		ed.ConstU8(ir.HandleKindUAV),
		ed.ConstU32(decl.Slot),
		ed.ConstU32(decl.Base),
		ed.ConstBool(false),
	))
}

// BindingHandleBuilder creates handles from a binding constant and annotates
// them as raw read/write buffers.
type BindingHandleBuilder struct {
	Editor *editor.Editor
}

func (b BindingHandleBuilder) Build(cur *editor.Cursor, decl editor.ResourceDecl) (ir.Value, error) {
	ed := b.Editor
	i32 := ed.I32()
	handle := ed.HandleType()
	resBind := ed.InternStruct(ir.TypeResBind, i32, i32, i32, ed.I8())
	props := ed.InternStruct(ir.TypeResourceProperties, i32, i32)

	create, err := ed.DeclareFunction("dx.op.createHandleFromBinding", handle,
		[]types.TypeID{i32, resBind, i32, ed.Bool()}, ir.AttrNoUnwind|ir.AttrReadNone)
	if err != nil {
		return ir.Value{}, err
	}
	annotate, err := ed.DeclareFunction("dx.op.annotateHandle", handle,
		[]types.TypeID{i32, handle, props}, ir.AttrNoUnwind|ir.AttrReadNone)
	if err != nil {
		return ir.Value{}, err
	}

	bind := ed.Aggregate(resBind,
		ed.ConstU32(decl.Base),
		ed.ConstU32(decl.Base+decl.Count-1),
		ed.ConstU32(decl.Space),
		ed.ConstU8(ir.HandleKindUAV),
	)
	raw, err := cur.Emit(ed.Call(create, ir.DXOpCreateHandleFromBinding, bind, ed.ConstU32(decl.Base), ed.ConstBool(false)))
	if err != nil {
		return ir.Value{}, err
	}
	properties := ed.Aggregate(props, ed.ConstU32(ir.ResourcePropertyUAV|decl.Shape), ed.ConstU32(0))
	return cur.Emit(ed.Call(annotate, ir.DXOpAnnotateHandle, raw, properties))
}
