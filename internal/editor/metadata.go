package editor

import (
	"fmt"

	"ampcap/internal/diag"
	"ampcap/internal/ir"
	"ampcap/internal/trace"
)

// Entry is the first record of the entry point list.
type Entry struct {
	Node ir.MetaID
	Func ir.FuncID
	Name string
}

// MetaString appends a string leaf.
func (e *Editor) MetaString(s string) ir.MetaID {
	return e.prog.AddMeta(ir.MetaNode{Kind: ir.MetaString, Str: s})
}

// MetaValue appends a leaf referencing v.
func (e *Editor) MetaValue(v ir.Value) ir.MetaID {
	return e.prog.AddMeta(ir.MetaNode{Kind: ir.MetaValue, Value: v})
}

// MetaU32 appends a leaf holding an i32 constant.
func (e *Editor) MetaU32(n uint32) ir.MetaID { return e.MetaValue(e.ConstU32(n)) }

// MetaList appends a list node. NoMetaID children are null entries.
func (e *Editor) MetaList(children ...ir.MetaID) ir.MetaID {
	return e.prog.AddMeta(ir.MetaNode{Kind: ir.MetaList, Children: children})
}

// list returns the list node id or an error naming what was expected.
func (e *Editor) list(id ir.MetaID, what string) (*ir.MetaNode, error) {
	n := e.prog.MetaNode(id)
	if n == nil || n.Kind != ir.MetaList {
		return nil, e.errorf(diag.EdtBadMetadata, "%s is not a metadata list", what)
	}
	return n, nil
}

// EntryPoint decodes the first record of the entry point list. Further
// entries are ignored.
func (e *Editor) EntryPoint() (Entry, error) {
	named := e.prog.NamedMeta(ir.MetaEntryPoints)
	if named == nil || len(named.Roots) == 0 {
		return Entry{}, e.errorf(diag.EdtNoEntryPoint, "%s is missing or empty", ir.MetaEntryPoints)
	}
	id := named.Roots[0]
	n, err := e.list(id, "entry point")
	if err != nil {
		return Entry{}, err
	}
	if len(n.Children) < ir.EntryFieldCount {
		return Entry{}, e.errorf(diag.EdtBadMetadata, "entry point has %d fields, want %d", len(n.Children), ir.EntryFieldCount)
	}
	fnNode := e.prog.MetaNode(n.Children[ir.EntryFunc])
	if fnNode == nil || fnNode.Kind != ir.MetaValue {
		return Entry{}, e.errorf(diag.EdtBadMetadata, "entry point does not reference a function")
	}
	fn, ok := fnNode.Value.Func()
	if !ok || e.prog.Func(fn) == nil {
		return Entry{}, e.errorf(diag.EdtBadMetadata, "entry point does not reference a function")
	}
	entry := Entry{Node: id, Func: fn}
	if nameNode := e.prog.MetaNode(n.Children[ir.EntryName]); nameNode != nil && nameNode.Kind == ir.MetaString {
		entry.Name = nameNode.Str
	} else {
		entry.Name = e.prog.Func(fn).Name
	}
	return entry, nil
}

func (e *Editor) setEntryField(entry Entry, field int, value ir.MetaID) {
	e.prog.MetaNode(entry.Node).Children[field] = value
	e.dirty = true
}

// EntryTag returns the value node stored under tag in the entry tag list.
func (e *Editor) EntryTag(tag uint32) (ir.MetaID, bool, error) {
	entry, err := e.EntryPoint()
	if err != nil {
		return ir.NoMetaID, false, err
	}
	tags := e.prog.MetaNode(entry.Node).Children[ir.EntryTags]
	if tags == ir.NoMetaID {
		return ir.NoMetaID, false, nil
	}
	n, err := e.list(tags, "entry tag list")
	if err != nil {
		return ir.NoMetaID, false, err
	}
	for i := 0; i+1 < len(n.Children); i += 2 {
		if t, ok := e.prog.MetaU32(n.Children[i]); ok && t == tag {
			return n.Children[i+1], true, nil
		}
	}
	return ir.NoMetaID, false, nil
}

// PatchEntryTag replaces the value stored under tag, or inserts the pair at
// the front of the tag list when the tag is absent.
func (e *Editor) PatchEntryTag(tag uint32, value ir.MetaID) error {
	entry, err := e.EntryPoint()
	if err != nil {
		return err
	}
	tags := e.prog.MetaNode(entry.Node).Children[ir.EntryTags]
	if tags == ir.NoMetaID {
		list := e.MetaList(e.MetaU32(tag), value)
		e.setEntryField(entry, ir.EntryTags, list)
		e.touch("entry_tag", fmt.Sprintf("new list tag=%d", tag))
		return nil
	}
	n, err := e.list(tags, "entry tag list")
	if err != nil {
		return err
	}
	for i := 0; i+1 < len(n.Children); i += 2 {
		if t, ok := e.prog.MetaU32(n.Children[i]); ok && t == tag {
			n.Children[i+1] = value
			e.touch("entry_tag", fmt.Sprintf("replace tag=%d", tag))
			return nil
		}
	}
	key := e.MetaU32(tag)
	n = e.prog.MetaNode(tags)
	n.Children = append([]ir.MetaID{key, value}, n.Children...)
	e.touch("entry_tag", fmt.Sprintf("insert tag=%d", tag))
	return nil
}

// GlobalFlags returns the shader flags word of the entry, 0 when absent.
func (e *Editor) GlobalFlags() (uint64, error) {
	id, ok, err := e.EntryTag(ir.TagShaderFlags)
	if err != nil || !ok {
		return 0, err
	}
	v, ok := e.prog.MetaU64(id)
	if !ok {
		return 0, e.errorf(diag.EdtBadMetadata, "shader flags tag does not hold an integer")
	}
	return v, nil
}

// PatchGlobalFlags rewrites the shader flags word of the entry.
func (e *Editor) PatchGlobalFlags(patch func(uint64) uint64) error {
	cur, err := e.GlobalFlags()
	if err != nil {
		return err
	}
	next := patch(cur)
	if err := e.PatchEntryTag(ir.TagShaderFlags, e.MetaValue(e.ConstI64(next))); err != nil {
		return err
	}
	trace.Point(e.ctx, trace.ScopeEdit, "global_flags", fmt.Sprintf("%#x->%#x", cur, next))
	return nil
}

// Amplification is the decoded amplification tag value.
type Amplification struct {
	NumThreads  [3]uint32
	PayloadSize uint32
}

// AmplificationTag decodes the amplification tag of the entry.
func (e *Editor) AmplificationTag() (Amplification, error) {
	id, ok, err := e.EntryTag(ir.TagAmplification)
	if err != nil {
		return Amplification{}, err
	}
	if !ok {
		return Amplification{}, e.errorf(diag.EdtBadMetadata, "entry has no amplification tag")
	}
	n, err := e.list(id, "amplification tag")
	if err != nil {
		return Amplification{}, err
	}
	if len(n.Children) != 2 {
		return Amplification{}, e.errorf(diag.EdtBadMetadata, "amplification tag has %d fields, want 2", len(n.Children))
	}
	dims, err := e.list(n.Children[0], "amplification numthreads")
	if err != nil {
		return Amplification{}, err
	}
	var amp Amplification
	if len(dims.Children) != 3 {
		return Amplification{}, e.errorf(diag.EdtBadMetadata, "numthreads has %d fields, want 3", len(dims.Children))
	}
	for i, c := range dims.Children {
		if amp.NumThreads[i], ok = e.prog.MetaU32(c); !ok {
			return Amplification{}, e.errorf(diag.EdtBadMetadata, "numthreads[%d] is not an integer", i)
		}
	}
	if amp.PayloadSize, ok = e.prog.MetaU32(n.Children[1]); !ok {
		return Amplification{}, e.errorf(diag.EdtBadMetadata, "payload size is not an integer")
	}
	return amp, nil
}

func (e *Editor) writeAmplificationTag(amp Amplification) error {
	dims := e.MetaList(e.MetaU32(amp.NumThreads[0]), e.MetaU32(amp.NumThreads[1]), e.MetaU32(amp.NumThreads[2]))
	return e.PatchEntryTag(ir.TagAmplification, e.MetaList(dims, e.MetaU32(amp.PayloadSize)))
}
