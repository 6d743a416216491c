package payload_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"ampcap/internal/diag"
	"ampcap/internal/editor"
	"ampcap/internal/ir"
	"ampcap/internal/payload"
	"ampcap/internal/samples"
	"ampcap/internal/types"
)

func TestLeavesBasic(t *testing.T) {
	in := types.NewInterner()
	p := in.Struct("struct.P", in.Float(types.Width32), in.Array(in.Int(types.Width32), 2))
	leaves, err := payload.Leaves(in, p)
	require.NoError(t, err)
	require.Len(t, leaves, 3)
	require.Equal(t, []uint32{0}, leaves[0].Path)
	require.True(t, leaves[0].Float)
	require.Equal(t, []uint32{1, 0}, leaves[1].Path)
	require.Equal(t, []uint32{1, 1}, leaves[2].Path)
	require.EqualValues(t, 12, payload.PackedSize(leaves))
}

func TestLeavesWide(t *testing.T) {
	opts := samples.DefaultOptions()
	opts.Payload = samples.PayloadWide
	p, err := samples.Program(opts)
	require.NoError(t, err)
	pt, ok := p.Types.Named(samples.PayloadType)
	require.True(t, ok)
	leaves, err := payload.Leaves(p.Types, pt)
	require.NoError(t, err)
	// six scalars, the empty array, {i16, [2 x i8]} and [2 x {i32, float}]
	require.Len(t, leaves, 6+3+4)
	require.EqualValues(t, 1+2+4+8+4+8+4+16, payload.PackedSize(leaves))
	require.Equal(t, []uint32{7, 1, 1}, leaves[8].Path)
}

func TestLeavesRejects(t *testing.T) {
	in := types.NewInterner()
	i32 := in.Int(types.Width32)
	cases := []struct {
		name string
		t    types.TypeID
	}{
		{"pointer", in.Pointer(i32, types.AddrDefault)},
		{"vector", in.Intern(types.MakeVector(i32, 4))},
		{"func", in.Intern(types.MakeFunc(in.Void()))},
		{"label", in.Label()},
		{"metadata", in.Metadata()},
		{"void", in.Void()},
		{"bool", in.Bool()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := in.Struct("struct.bad_"+tc.name, i32, tc.t)
			_, err := payload.Leaves(in, s)
			var ue *payload.UnsupportedError
			require.ErrorAs(t, err, &ue)
			require.Equal(t, []uint32{1}, ue.Path)
		})
	}

	empty := in.Struct("struct.empty", in.Array(i32, 0))
	leaves, err := payload.Leaves(in, empty)
	require.NoError(t, err)
	require.Empty(t, leaves)
}

type fixture struct {
	ed      *editor.Editor
	fn      ir.FuncID
	block   ir.BlockID
	payload ir.GlobalID
	ptype   types.TypeID
}

func newFixture(t *testing.T, kind samples.PayloadKind) fixture {
	t.Helper()
	opts := samples.DefaultOptions()
	opts.Payload = kind
	blob, err := samples.Amplification(opts)
	require.NoError(t, err)
	ed, err := editor.New(context.Background(), blob, editor.Options{File: "copy.sxbc"})
	require.NoError(t, err)
	entry, err := ed.EntryPoint()
	require.NoError(t, err)
	blk := ed.NewBlock()
	require.NoError(t, ed.InsertBlock(entry.Func, len(ed.Func(entry.Func).Blocks), blk))

	f := fixture{ed: ed, fn: entry.Func, block: blk, payload: ir.NoGlobalID}
	for i, g := range ed.Program().Globals {
		if g.Name == samples.PayloadGlobal {
			f.payload = ir.GlobalID(i)
		}
	}
	require.NotEqual(t, ir.NoGlobalID, f.payload)
	f.ptype, _ = ed.Types().Named(samples.PayloadType)
	return f
}

func (f fixture) copier(dir payload.Direction) *payload.Copier {
	return &payload.Copier{
		Editor:  f.ed,
		Dir:     dir,
		Handle:  f.ed.Undef(f.ed.HandleType()),
		Base:    f.ed.ConstU32(0),
		Payload: f.payload,
		Cursor:  16,
	}
}

func (f fixture) copyAll(t *testing.T, c *payload.Copier) {
	t.Helper()
	cur, err := f.ed.CursorAtEnd(f.fn, f.block)
	require.NoError(t, err)
	members := f.ed.TypeOf(f.ptype).Members
	for i := range members {
		require.NoError(t, c.CopyMember(cur, f.ptype, uint32(i)))
	}
}

func (f fixture) instrs(op ir.Op) []*ir.Instr {
	var out []*ir.Instr
	for _, id := range f.ed.Program().Block(f.block).Instrs {
		if in := f.ed.Instr(id); in.Op == op {
			out = append(out, in)
		}
	}
	return out
}

func (f fixture) gepPath(t *testing.T, v ir.Value) []uint64 {
	t.Helper()
	id, ok := v.Const()
	require.True(t, ok)
	c := f.ed.Program().Const(id)
	require.Equal(t, ir.ConstGEP, c.Kind)
	g, ok := c.Elems[0].Global()
	require.True(t, ok)
	require.Equal(t, f.payload, g)
	var path []uint64
	for _, e := range c.Elems[1:] {
		n, ok := f.ed.Program().IntConst(e)
		require.True(t, ok)
		path = append(path, n)
	}
	return path
}

func TestCopierBufferToPayloadOffsets(t *testing.T) {
	f := newFixture(t, samples.PayloadBasic)
	c := f.copier(payload.BufferToPayload)
	f.copyAll(t, c)
	require.EqualValues(t, 28, c.Cursor)

	adds := f.instrs(ir.OpAdd)
	require.Len(t, adds, 3)
	for i, want := range []uint64{16, 20, 24} {
		got, ok := f.ed.Program().IntConst(adds[i].Args[1])
		require.True(t, ok)
		require.Equal(t, want, got)
		require.NotZero(t, adds[i].Flags&ir.FlagNoSignedWrap)
	}

	calls := f.instrs(ir.OpCall)
	require.Len(t, calls, 3)
	require.Equal(t, "dx.op.rawBufferLoad.f32", f.ed.Func(calls[0].Callee).Name)
	require.Equal(t, "dx.op.rawBufferLoad.i32", f.ed.Func(calls[1].Callee).Name)
	mask, ok := f.ed.Program().IntConst(calls[0].Args[4])
	require.True(t, ok)
	require.EqualValues(t, 1, mask)

	stores := f.instrs(ir.OpStore)
	require.Len(t, stores, 3)
	require.Equal(t, []uint64{0, 0}, f.gepPath(t, stores[0].Args[0]))
	require.Equal(t, []uint64{0, 1, 0}, f.gepPath(t, stores[1].Args[0]))
	require.Equal(t, []uint64{0, 1, 1}, f.gepPath(t, stores[2].Args[0]))
	require.EqualValues(t, 4, ir.DecodeAlign(stores[0].Align))

	extracts := f.instrs(ir.OpExtractValue)
	require.Len(t, extracts, 3)
	require.Equal(t, f.ed.Float(types.Width32), extracts[0].Type)
}

func TestCopierPayloadToBuffer(t *testing.T) {
	f := newFixture(t, samples.PayloadWide)
	c := f.copier(payload.PayloadToBuffer)
	f.copyAll(t, c)

	leaves, err := payload.Leaves(f.ed.Types(), f.ptype)
	require.NoError(t, err)
	require.Equal(t, 16+payload.PackedSize(leaves), c.Cursor)

	calls := f.instrs(ir.OpCall)
	require.Len(t, calls, len(leaves))
	for _, call := range calls {
		require.Len(t, call.Args, 10)
		op, ok := f.ed.Program().DXOpOf(call)
		require.True(t, ok)
		require.Equal(t, ir.DXOpRawBufferStore, op)
	}
	require.Equal(t, "dx.op.rawBufferStore.i64", f.ed.Func(calls[3].Callee).Name)
	align, ok := f.ed.Program().IntConst(calls[3].Args[9])
	require.True(t, ok)
	require.EqualValues(t, 8, align)
	require.Len(t, f.instrs(ir.OpLoad), len(leaves))
}

func TestCopierRejectsUnsupported(t *testing.T) {
	bag := diag.NewBag(4)
	ed, err := editor.New(context.Background(), mustBlob(t), editor.Options{Reporter: diag.BagReporter{Bag: bag}})
	require.NoError(t, err)

	entry, err := ed.EntryPoint()
	require.NoError(t, err)
	cur, err := ed.CursorAt(entry.Func, 0)
	require.NoError(t, err)
	c := &payload.Copier{Editor: ed, Handle: ed.Undef(ed.HandleType()), Base: ed.ConstU32(0)}
	err = c.Copy(cur, ed.Pointer(ed.I32(), types.AddrDefault), []uint32{2})
	code, ok := diag.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, diag.CpyUnsupportedLeaf, code)
	require.True(t, bag.HasErrors())
}

func mustBlob(t *testing.T) []byte {
	t.Helper()
	blob, err := samples.Amplification(samples.DefaultOptions())
	require.NoError(t, err)
	return blob
}

func TestLeavesRejectsSelfContainingStruct(t *testing.T) {
	in := types.NewInterner()
	s := in.Struct("struct.Loop", in.Int(types.Width32))
	require.NoError(t, in.AppendMembers(s, in.Array(s, 2)))
	_, err := payload.Leaves(in, s)
	var re *payload.RecursiveError
	require.ErrorAs(t, err, &re)
	require.Equal(t, s, re.Type)
	require.Equal(t, []uint32{1, 0}, re.Path)
}

func TestLeavesRevisitsSharedMembers(t *testing.T) {
	in := types.NewInterner()
	pair := in.Struct("struct.Pair", in.Int(types.Width32), in.Float(types.Width32))
	s := in.Struct("struct.Two", pair, pair)
	leaves, err := payload.Leaves(in, s)
	require.NoError(t, err)
	require.Len(t, leaves, 4)
	require.Equal(t, []uint32{1, 1}, leaves[3].Path)
}
