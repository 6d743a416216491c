// Package bitcode encodes programs into the program chunk and back.
//
// The chunk is a msgpack record. Pools are written in ID order, so decoding
// reproduces every pool index; instructions are written per block and
// referenced by their position in the function's flattened stream.
package bitcode

import (
	"bytes"
	"fmt"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"

	"ampcap/internal/container"
	"ampcap/internal/diag"
	"ampcap/internal/ir"
	"ampcap/internal/types"
)

var chunkLoc = diag.NoLocation.InChunk(container.ChunkProgram.String())

func encodeErr(format string, args ...any) *diag.Error {
	return diag.Errorf(diag.BlobProgramEncode, chunkLoc, format, args...)
}

func decodeErr(format string, args ...any) *diag.Error {
	return diag.Errorf(diag.BlobProgramDecode, chunkLoc, format, args...)
}

// Encode serializes p. Blocks and instructions not reachable from a
// function's block list are not written.
func Encode(p *ir.Program) ([]byte, error) {
	rec := programRecord{Schema: schemaVersion}

	for id := 1; id < p.Types.Len(); id++ {
		t := p.Types.MustLookup(types.TypeID(id)) //nolint:gosec // bounded by Len
		members := make([]uint32, len(t.Members))
		for i, m := range t.Members {
			members[i] = uint32(m)
		}
		rec.Types = append(rec.Types, typeRecord{
			Kind: uint8(t.Kind), Width: uint8(t.Width), Elem: uint32(t.Elem),
			Count: t.Count, Space: uint8(t.Space), Name: t.Name, Members: members,
		})
	}

	for i := range p.Consts {
		c := &p.Consts[i]
		elems, err := encodeValues(c.Elems, nil)
		if err != nil {
			return nil, encodeErr("constant %d: %w", i, err)
		}
		rec.Consts = append(rec.Consts, constRecord{Kind: uint8(c.Kind), Type: uint32(c.Type), Bits: c.Bits, Elems: elems})
	}

	for i := range p.Globals {
		g := &p.Globals[i]
		init, err := encodeValue(g.Init, nil)
		if err != nil {
			return nil, encodeErr("global @%s: %w", g.Name, err)
		}
		rec.Globals = append(rec.Globals, globalRecord{Name: g.Name, Type: uint32(g.Type), Space: uint8(g.Space), Init: init, Align: g.Align})
	}

	for _, fn := range p.Funcs {
		fr, err := encodeFunc(p, fn)
		if err != nil {
			return nil, encodeErr("function @%s: %w", fn.Name, err)
		}
		rec.Funcs = append(rec.Funcs, fr)
	}

	for i := range p.Meta {
		n := &p.Meta[i]
		v, err := encodeValue(n.Value, nil)
		if err != nil {
			return nil, encodeErr("metadata !%d: %w", i, err)
		}
		children := make([]int32, len(n.Children))
		for j, c := range n.Children {
			children[j] = int32(c)
		}
		rec.Meta = append(rec.Meta, metaRecord{Kind: uint8(n.Kind), Str: n.Str, Value: v, Children: children})
	}

	for _, nm := range p.Named {
		roots := make([]int32, len(nm.Roots))
		for j, r := range nm.Roots {
			roots[j] = int32(r)
		}
		rec.Named = append(rec.Named, namedRecord{Name: nm.Name, Roots: roots})
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(&rec); err != nil {
		return nil, encodeErr("msgpack: %w", err)
	}
	return buf.Bytes(), nil
}

type localNumbering struct {
	blocks map[ir.BlockID]uint32
	instrs map[ir.InstrID]uint32
}

func encodeFunc(p *ir.Program, fn *ir.Func) (funcRecord, error) {
	params := make([]uint32, len(fn.Params))
	for i, t := range fn.Params {
		params[i] = uint32(t)
	}
	fr := funcRecord{Name: fn.Name, Result: uint32(fn.Result), Params: params, Attrs: uint32(fn.Attrs), External: fn.External}
	if fn.External {
		return fr, nil
	}

	local := &localNumbering{
		blocks: make(map[ir.BlockID]uint32, len(fn.Blocks)),
		instrs: make(map[ir.InstrID]uint32),
	}
	var n uint32
	for i, b := range fn.Blocks {
		local.blocks[b] = uint32(i) //nolint:gosec // block count fits
		for _, id := range p.Block(b).Instrs {
			local.instrs[id] = n
			n++
		}
	}

	for _, b := range fn.Blocks {
		var br blockRecord
		for _, id := range p.Block(b).Instrs {
			in := p.Instr(id)
			args, err := encodeValues(in.Args, local)
			if err != nil {
				return fr, fmt.Errorf("%%%d: %w", id, err)
			}
			br.Instrs = append(br.Instrs, instrRecord{
				Op: uint8(in.Op), Type: uint32(in.Type), Args: args,
				Callee: int32(in.Callee), Align: in.Align, Flags: uint8(in.Flags),
			})
		}
		fr.Blocks = append(fr.Blocks, br)
	}
	return fr, nil
}

func encodeValues(vs []ir.Value, local *localNumbering) ([]valueRecord, error) {
	if len(vs) == 0 {
		return nil, nil
	}
	out := make([]valueRecord, len(vs))
	for i, v := range vs {
		rv, err := encodeValue(v, local)
		if err != nil {
			return nil, err
		}
		out[i] = rv
	}
	return out, nil
}

func encodeValue(v ir.Value, local *localNumbering) (valueRecord, error) {
	switch v.Kind {
	case ir.ValInstr:
		if local == nil {
			return valueRecord{}, fmt.Errorf("instruction %%%d referenced outside a function", v.ID)
		}
		idx, ok := local.instrs[ir.InstrID(v.ID)] //nolint:gosec // IDs are pool indices
		if !ok {
			return valueRecord{}, fmt.Errorf("instruction %%%d is not placed in this function", v.ID)
		}
		return valueRecord{Kind: uint8(v.Kind), ID: idx}, nil
	case ir.ValBlock:
		if local == nil {
			return valueRecord{}, fmt.Errorf("block bb%d referenced outside a function", v.ID)
		}
		idx, ok := local.blocks[ir.BlockID(v.ID)] //nolint:gosec // IDs are pool indices
		if !ok {
			return valueRecord{}, fmt.Errorf("block bb%d does not belong to this function", v.ID)
		}
		return valueRecord{Kind: uint8(v.Kind), ID: idx}, nil
	}
	return valueRecord{Kind: uint8(v.Kind), ID: v.ID}, nil
}

// Decode parses a program chunk.
func Decode(data []byte) (*ir.Program, error) {
	var rec programRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, decodeErr("msgpack: %w", err)
	}
	if rec.Schema != schemaVersion {
		return nil, decodeErr("schema %d, want %d", rec.Schema, schemaVersion)
	}

	p := ir.NewProgram()
	for i, tr := range rec.Types {
		members := make([]types.TypeID, len(tr.Members))
		for j, m := range tr.Members {
			members[j] = types.TypeID(m)
		}
		t := types.Type{
			Kind: types.Kind(tr.Kind), Width: types.Width(tr.Width), Elem: types.TypeID(tr.Elem),
			Count: tr.Count, Space: types.AddrSpace(tr.Space), Name: tr.Name, Members: members,
		}
		if t.Kind == types.KindInvalid || t.Kind > types.KindMetadata {
			return nil, decodeErr("type %d: bad kind %d", i+1, tr.Kind)
		}
		p.Types.Append(t)
	}
	if err := p.Types.Validate(); err != nil {
		return nil, decodeErr("types: %w", err)
	}
	typeCount := p.Types.Len()
	checkType := func(id uint32) error {
		if id == 0 || int(id) >= typeCount {
			return fmt.Errorf("type %d out of range", id)
		}
		return nil
	}

	for i, cr := range rec.Consts {
		if err := checkType(cr.Type); err != nil {
			return nil, decodeErr("constant %d: %w", i, err)
		}
		elems, err := decodeValues(cr.Elems, nil)
		if err != nil {
			return nil, decodeErr("constant %d: %w", i, err)
		}
		p.AppendConst(ir.Const{Kind: ir.ConstKind(cr.Kind), Type: types.TypeID(cr.Type), Bits: cr.Bits, Elems: elems})
	}

	for _, gr := range rec.Globals {
		if err := checkType(gr.Type); err != nil {
			return nil, decodeErr("global @%s: %w", gr.Name, err)
		}
		init, err := decodeValue(gr.Init, nil)
		if err != nil {
			return nil, decodeErr("global @%s: %w", gr.Name, err)
		}
		p.AddGlobal(ir.Global{Name: gr.Name, Type: types.TypeID(gr.Type), Space: types.AddrSpace(gr.Space), Init: init, Align: gr.Align})
	}

	for _, fr := range rec.Funcs {
		if err := decodeFunc(p, fr); err != nil {
			return nil, decodeErr("function @%s: %w", fr.Name, err)
		}
	}

	for _, mr := range rec.Meta {
		v, err := decodeValue(mr.Value, nil)
		if err != nil {
			return nil, decodeErr("metadata: %w", err)
		}
		children := make([]ir.MetaID, len(mr.Children))
		for j, c := range mr.Children {
			children[j] = ir.MetaID(c)
		}
		p.AddMeta(ir.MetaNode{Kind: ir.MetaKind(mr.Kind), Str: mr.Str, Value: v, Children: children})
	}

	for _, nr := range rec.Named {
		roots := make([]ir.MetaID, len(nr.Roots))
		for j, r := range nr.Roots {
			roots[j] = ir.MetaID(r)
		}
		p.Named = append(p.Named, ir.NamedMeta{Name: nr.Name, Roots: roots})
	}

	if err := ir.Check(p); err != nil {
		return nil, decodeErr("structure: %w", err)
	}
	return p, nil
}

type localBase struct {
	blocks []ir.BlockID
	first  ir.InstrID
	count  uint32
}

func decodeFunc(p *ir.Program, fr funcRecord) error {
	params := make([]types.TypeID, len(fr.Params))
	for i, t := range fr.Params {
		params[i] = types.TypeID(t)
	}
	fn := &ir.Func{Name: fr.Name, Result: types.TypeID(fr.Result), Params: params, Attrs: ir.Attr(fr.Attrs), External: fr.External}
	p.AddFunc(fn)
	if fr.External {
		if len(fr.Blocks) != 0 {
			return fmt.Errorf("declaration has %d blocks", len(fr.Blocks))
		}
		return nil
	}

	first, err := safecast.Conv[int32](len(p.Instrs))
	if err != nil {
		return err
	}
	base := &localBase{first: ir.InstrID(first)}
	for _, br := range fr.Blocks {
		base.blocks = append(base.blocks, p.AddBlock())
		base.count += uint32(len(br.Instrs)) //nolint:gosec // bounded by the record size
	}
	fn.Blocks = base.blocks
	for bi, br := range fr.Blocks {
		blk := p.Block(base.blocks[bi])
		for _, irec := range br.Instrs {
			args, err := decodeValues(irec.Args, base)
			if err != nil {
				return fmt.Errorf("bb%d: %w", bi, err)
			}
			id := p.AddInstr(ir.Instr{
				Op: ir.Op(irec.Op), Type: types.TypeID(irec.Type), Args: args,
				Callee: ir.FuncID(irec.Callee), Align: irec.Align, Flags: ir.InstrFlags(irec.Flags),
			})
			blk.Instrs = append(blk.Instrs, id)
		}
	}
	return nil
}

func decodeValues(rs []valueRecord, base *localBase) ([]ir.Value, error) {
	if len(rs) == 0 {
		return nil, nil
	}
	out := make([]ir.Value, len(rs))
	for i, r := range rs {
		v, err := decodeValue(r, base)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func decodeValue(r valueRecord, base *localBase) (ir.Value, error) {
	kind := ir.ValueKind(r.Kind)
	switch kind {
	case ir.ValInstr:
		if base == nil {
			return ir.Value{}, fmt.Errorf("instruction reference outside a function")
		}
		if r.ID >= base.count {
			return ir.Value{}, fmt.Errorf("instruction %d beyond function end", r.ID)
		}
		return ir.InstrValue(base.first + ir.InstrID(r.ID)), nil //nolint:gosec // checked above
	case ir.ValBlock:
		if base == nil {
			return ir.Value{}, fmt.Errorf("block reference outside a function")
		}
		if int(r.ID) >= len(base.blocks) {
			return ir.Value{}, fmt.Errorf("block %d beyond function end", r.ID)
		}
		return ir.BlockValue(base.blocks[r.ID]), nil
	case ir.ValNone, ir.ValConst, ir.ValGlobal, ir.ValFunc, ir.ValLiteral:
		return ir.Value{Kind: kind, ID: r.ID}, nil
	}
	return ir.Value{}, fmt.Errorf("bad value kind %d", r.Kind)
}
