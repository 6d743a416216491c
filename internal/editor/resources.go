package editor

import (
	"fmt"
	"math"

	"ampcap/internal/container"
	"ampcap/internal/diag"
	"ampcap/internal/ir"
	"ampcap/internal/types"
)

// Binding describes a resource to declare.
type Binding struct {
	// Type is the pipeline state resource type, e.g. container.ResourceUAVRaw.
	Type  uint32
	Space uint32
	Base  uint32
	Count uint32
	Shape uint32
}

// ResourceDecl is a declared resource and the slot id it received.
type ResourceDecl struct {
	Binding
	Slot   uint32
	Record ir.MetaID
}

// resourceList returns the resource list of the entry point, creating and
// wiring an empty one when absent.
func (e *Editor) resourceList(entry Entry) (ir.MetaID, error) {
	cur := e.prog.MetaNode(entry.Node).Children[ir.EntryResources]
	if cur != ir.NoMetaID {
		if _, err := e.list(cur, "resource list"); err != nil {
			return ir.NoMetaID, err
		}
		return cur, nil
	}
	if named := e.prog.NamedMeta(ir.MetaResources); named != nil && len(named.Roots) > 0 {
		if _, err := e.list(named.Roots[0], "resource list"); err != nil {
			return ir.NoMetaID, err
		}
		cur = named.Roots[0]
	} else {
		nulls := make([]ir.MetaID, ir.ResClassCount)
		for i := range nulls {
			nulls[i] = ir.NoMetaID
		}
		cur = e.MetaList(nulls...)
		if named := e.prog.NamedMeta(ir.MetaResources); named != nil {
			named.Roots = append(named.Roots, cur)
		} else {
			e.prog.Named = append(e.prog.Named, ir.NamedMeta{Name: ir.MetaResources, Roots: []ir.MetaID{cur}})
		}
	}
	e.setEntryField(entry, ir.EntryResources, cur)
	return cur, nil
}

// uavList returns the UAV class list of reslist, creating an empty one.
func (e *Editor) uavList(reslist ir.MetaID) (ir.MetaID, error) {
	n := e.prog.MetaNode(reslist)
	if len(n.Children) < ir.ResClassCount {
		return ir.NoMetaID, e.errorf(diag.EdtBadMetadata, "resource list has %d classes, want %d", len(n.Children), ir.ResClassCount)
	}
	if uavs := n.Children[ir.ResClassUAV]; uavs != ir.NoMetaID {
		if _, err := e.list(uavs, "UAV list"); err != nil {
			return ir.NoMetaID, err
		}
		return uavs, nil
	}
	uavs := e.MetaList()
	e.prog.MetaNode(reslist).Children[ir.ResClassUAV] = uavs
	return uavs, nil
}

// NextUAVSlot scans the UAV records and returns one past the largest id.
// Records with a non-constant id are skipped; ids that disagree with their
// position are tolerated. Both produce warnings.
func (e *Editor) NextUAVSlot(uavs ir.MetaID) (uint32, error) {
	var next uint32
	for i, rec := range e.prog.MetaNode(uavs).Children {
		n := e.prog.MetaNode(rec)
		if n == nil || n.Kind != ir.MetaList || len(n.Children) == 0 {
			e.warnf(diag.EdtResourceSlot, "UAV record %d is malformed, skipped", i)
			continue
		}
		id, ok := e.prog.MetaU32(n.Children[ir.UAVFieldID])
		if !ok {
			e.warnf(diag.EdtResourceSlot, "UAV record %d has a non-constant id, skipped", i)
			continue
		}
		if int(id) != i {
			e.warnf(diag.EdtResourceSlot, "UAV record %d has id %d", i, id)
		}
		if id == math.MaxUint32 {
			return 0, e.errorf(diag.EdtResourceSlot, "UAV id space exhausted")
		}
		next = max(next, id+1)
	}
	return next, nil
}

// RegisterResourceBinding declares a raw read/write buffer: a UAV record in
// the entry resource list and, at Finish, the matching pipeline state entry.
func (e *Editor) RegisterResourceBinding(b Binding) (ResourceDecl, error) {
	if b.Count == 0 {
		return ResourceDecl{}, e.errorf(diag.EdtResourceMismatch, "resource binding with zero registers")
	}
	entry, err := e.EntryPoint()
	if err != nil {
		return ResourceDecl{}, err
	}
	reslist, err := e.resourceList(entry)
	if err != nil {
		return ResourceDecl{}, err
	}
	uavs, err := e.uavList(reslist)
	if err != nil {
		return ResourceDecl{}, err
	}
	slot, err := e.NextUAVSlot(uavs)
	if err != nil {
		return ResourceDecl{}, err
	}

	buffer := e.InternStruct(ir.TypeRWByteAddress, e.I32())
	fields := make([]ir.MetaID, ir.UAVFieldTotal)
	fields[ir.UAVFieldID] = e.MetaU32(slot)
	fields[ir.UAVFieldVariable] = e.MetaValue(e.Undef(e.Pointer(buffer, types.AddrDefault)))
	fields[ir.UAVFieldName] = e.MetaString("")
	fields[ir.UAVFieldSpace] = e.MetaU32(b.Space)
	fields[ir.UAVFieldBase] = e.MetaU32(b.Base)
	fields[ir.UAVFieldCount] = e.MetaU32(b.Count)
	fields[ir.UAVFieldShape] = e.MetaU32(b.Shape)
	fields[ir.UAVFieldGloballyCoherent] = e.MetaValue(e.ConstBool(false))
	fields[ir.UAVFieldHiddenCounter] = e.MetaValue(e.ConstBool(false))
	fields[ir.UAVFieldRasterOrder] = e.MetaValue(e.ConstBool(false))
	fields[ir.UAVFieldTags] = ir.NoMetaID
	rec := e.MetaList(fields...)

	n := e.prog.MetaNode(uavs)
	n.Children = append(n.Children, rec)

	decl := ResourceDecl{Binding: b, Slot: slot, Record: rec}
	e.pending = append(e.pending, decl)
	e.touch("register_resource", fmt.Sprintf("space=%d reg=%d slot=%d", b.Space, b.Base, slot))
	return decl, nil
}

// applyResources cross-checks every pending declaration against its
// metadata record and appends it to the pipeline state.
func (e *Editor) applyResources() error {
	ps, err := e.PipelineState()
	if err != nil {
		return err
	}
	for _, d := range e.pending {
		if err := e.checkRecord(d); err != nil {
			return err
		}
		ps.Resources = append(ps.Resources, pipelineResource(d))
	}
	e.pending = nil
	e.psvDirty = true
	return nil
}

func (e *Editor) checkRecord(d ResourceDecl) error {
	n := e.prog.MetaNode(d.Record)
	if n == nil || n.Kind != ir.MetaList || len(n.Children) != ir.UAVFieldTotal {
		return e.errorf(diag.EdtResourceMismatch, "UAV record for slot %d is gone", d.Slot)
	}
	want := [...]struct {
		field int
		value uint32
	}{
		{ir.UAVFieldID, d.Slot},
		{ir.UAVFieldSpace, d.Space},
		{ir.UAVFieldBase, d.Base},
		{ir.UAVFieldCount, d.Count},
		{ir.UAVFieldShape, d.Shape},
	}
	for _, w := range want {
		got, ok := e.prog.MetaU32(n.Children[w.field])
		if !ok || got != w.value {
			return e.errorf(diag.EdtResourceMismatch, "UAV slot %d field %d is %d, pipeline state expects %d", d.Slot, w.field, got, w.value)
		}
	}
	return nil
}

func pipelineResource(d ResourceDecl) container.PipelineResource {
	return container.PipelineResource{
		Type:       d.Type,
		Space:      d.Space,
		LowerBound: d.Base,
		UpperBound: d.Base + d.Count - 1,
		Shape:      d.Shape,
	}
}
