package capture_test

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"ampcap/internal/bitcode"
	"ampcap/internal/capture"
	"ampcap/internal/container"
	"ampcap/internal/diag"
	"ampcap/internal/editor"
	"ampcap/internal/ir"
	"ampcap/internal/samples"
	"ampcap/internal/testkit"
	"ampcap/internal/types"
)

var (
	sm65 = container.Version{Major: 6, Minor: 5}
	sm66 = container.Version{Major: 6, Minor: 6}
)

func blob(t *testing.T, mutate func(*samples.Options)) []byte {
	t.Helper()
	opts := samples.DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	b, err := samples.Amplification(opts)
	require.NoError(t, err)
	return b
}

func options() capture.Options {
	return capture.Options{
		Binding:  capture.Binding{Space: 9},
		Dispatch: capture.Dispatch{3, 2, 2},
		File:     "amp.sxbc",
	}
}

func reopen(t *testing.T, b []byte) *editor.Editor {
	t.Helper()
	ed, err := editor.New(context.Background(), b, editor.Options{})
	require.NoError(t, err)
	return ed
}

func calls(ed *editor.Editor, fn ir.FuncID, op ir.DXOp) []*ir.Instr {
	var out []*ir.Instr
	for _, id := range ed.Stream(fn) {
		in := ed.Instr(id)
		if got, ok := ed.Program().DXOpOf(in); ok && in.Op == ir.OpCall && got == op {
			out = append(out, in)
		}
	}
	return out
}

// rewriteProgram re-encodes the program chunk of src after mutate, skipping
// the editor checks.
func rewriteProgram(t *testing.T, src []byte, mutate func(*ir.Program) error) []byte {
	t.Helper()
	c, err := container.Decode(src)
	require.NoError(t, err)
	data, err := c.MustChunk(container.ChunkProgram)
	require.NoError(t, err)
	p, err := bitcode.Decode(data)
	require.NoError(t, err)
	require.NoError(t, mutate(p))
	data, err = bitcode.Encode(p)
	require.NoError(t, err)
	c.SetChunk(container.ChunkProgram, data)
	out, err := c.Encode()
	require.NoError(t, err)
	return out
}

func codeOf(t *testing.T, err error) diag.Code {
	t.Helper()
	require.Error(t, err)
	code, ok := diag.CodeOf(err)
	require.True(t, ok, "not a diagnostic error: %v", err)
	return code
}

func TestInjectPayloadStores(t *testing.T) {
	for _, v := range []container.Version{sm65, sm66} {
		t.Run(v.String(), func(t *testing.T) {
			src := blob(t, func(o *samples.Options) { o.Version = v })
			orig := reopen(t, src)
			origEntry, err := orig.EntryPoint()
			require.NoError(t, err)
			origBlocks := len(orig.Func(origEntry.Func).Blocks)

			res, err := capture.InjectPayloadStores(context.Background(), src, options())
			require.NoError(t, err)
			require.EqualValues(t, 12, res.PayloadSize)
			require.EqualValues(t, 12, res.PackedSize)
			require.EqualValues(t, 28, res.Stride)
			require.EqualValues(t, 0, res.Slot)
			require.NoError(t, testkit.CheckBlobInvariants(res.Blob))

			ed := reopen(t, res.Blob)
			entry, err := ed.EntryPoint()
			require.NoError(t, err)
			require.Len(t, ed.Func(entry.Func).Blocks, origBlocks+2)

			dispatch := calls(ed, entry.Func, ir.DXOpDispatchMesh)
			require.Len(t, dispatch, 1)
			for i := 1; i <= 3; i++ {
				n, ok := ed.Program().IntConst(dispatch[0].Args[i])
				require.True(t, ok, "dimension %d is not constant", i)
				require.Zero(t, n)
			}

			barriers := calls(ed, entry.Func, ir.DXOpBarrier)
			require.Len(t, barriers, 1)
			mode, _ := ed.Program().IntConst(barriers[0].Args[1])
			require.EqualValues(t, 0x9, mode)

			// three header stores plus one per leaf
			require.Len(t, calls(ed, entry.Func, ir.DXOpRawBufferStore), 3+3)

			if v.AtLeast(container.HandleFromBinding) {
				require.Len(t, calls(ed, entry.Func, ir.DXOpCreateHandleFromBinding), 1)
				require.Len(t, calls(ed, entry.Func, ir.DXOpAnnotateHandle), 1)
				require.Empty(t, calls(ed, entry.Func, ir.DXOpCreateHandle))
			} else {
				legacy := calls(ed, entry.Func, ir.DXOpCreateHandle)
				require.Len(t, legacy, 1)
				slot, _ := ed.Program().IntConst(legacy[0].Args[2])
				require.EqualValues(t, res.Slot, slot)
				require.Empty(t, calls(ed, entry.Func, ir.DXOpCreateHandleFromBinding))
			}

			ps, err := ed.PipelineState()
			require.NoError(t, err)
			require.Len(t, ps.Resources, 1)
			_, ok := ps.FindResource(container.ResourceUAVRaw, 9, capture.Register)
			require.True(t, ok)
			require.Equal(t, [3]uint32{4, 1, 1}, ps.NumThreads)

			flags, err := ed.GlobalFlags()
			require.NoError(t, err)
			require.Equal(t, ir.ShaderFlagRawBuffers|ir.ShaderFlagUAVsAtEveryStage, flags)
		})
	}
}

func TestInjectFreshSlot(t *testing.T) {
	src := blob(t, func(o *samples.Options) { o.ExistingUAVs = []uint32{0, 2} })
	bag := diag.NewBag(8)
	opts := options()
	opts.Reporter = diag.BagReporter{Bag: bag}
	res, err := capture.InjectPayloadStores(context.Background(), src, opts)
	require.NoError(t, err)
	require.EqualValues(t, 3, res.Slot)
	require.True(t, bag.HasWarnings())
	require.False(t, bag.HasErrors())
	require.NoError(t, testkit.CheckBlobInvariants(res.Blob))

	ps, err := reopen(t, res.Blob).PipelineState()
	require.NoError(t, err)
	require.Len(t, ps.Resources, 3, "exactly one resource is added")
}

func TestSynthesizeFeeder(t *testing.T) {
	for _, v := range []container.Version{sm65, sm66} {
		t.Run(v.String(), func(t *testing.T) {
			src := blob(t, func(o *samples.Options) {
				o.Version = v
				o.Flags = ir.ShaderFlagWaveOps
				o.Features = container.FeatureWaveOps | container.FeatureDoubles
			})
			res, err := capture.SynthesizeFeeder(context.Background(), src, options())
			require.NoError(t, err)
			require.NoError(t, testkit.CheckBlobInvariants(res.Blob))

			ed := reopen(t, res.Blob)
			amp, err := ed.AmplificationTag()
			require.NoError(t, err)
			require.Equal(t, [3]uint32{1, 1, 1}, amp.NumThreads)
			require.EqualValues(t, 12+16, amp.PayloadSize)

			ps, err := ed.PipelineState()
			require.NoError(t, err)
			require.Equal(t, [3]uint32{1, 1, 1}, ps.NumThreads)
			require.EqualValues(t, 28, ps.PayloadSize)
			require.Len(t, ps.Resources, 1)

			flags, err := ed.GlobalFlags()
			require.NoError(t, err)
			require.Equal(t, ir.ShaderFlagRawBuffers|ir.ShaderFlagUAVsAtEveryStage, flags)
			features, ok, err := ed.Features()
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, container.FeatureDoubles, features)

			entry, err := ed.EntryPoint()
			require.NoError(t, err)
			require.Len(t, ed.Func(entry.Func).Blocks, 1)

			loads := calls(ed, entry.Func, ir.DXOpRawBufferLoad)
			require.Len(t, loads, 1+3, "header plus one load per leaf")
			mask, _ := ed.Program().IntConst(loads[0].Args[4])
			require.EqualValues(t, 0xf, mask)

			dispatch := calls(ed, entry.Func, ir.DXOpDispatchMesh)
			require.Len(t, dispatch, 1)
			for i := 1; i <= 3; i++ {
				id, ok := dispatch[0].Args[i].Instr()
				require.True(t, ok)
				ex := ed.Instr(id)
				require.Equal(t, ir.OpExtractValue, ex.Op)
				require.Equal(t, ir.Literal(uint32(i-1)), ex.Args[1])
			}

			pt, ok := ed.Types().Named(samples.PayloadType)
			require.True(t, ok)
			require.Len(t, ed.TypeOf(pt).Members, 2+4)
		})
	}
}

func TestPassPreconditions(t *testing.T) {
	ctx := context.Background()

	noDispatch := func(t *testing.T) []byte {
		ed := reopen(t, blob(t, nil))
		entry, err := ed.EntryPoint()
		require.NoError(t, err)
		_, err = ed.ResetBody(entry.Func)
		require.NoError(t, err)
		_, err = ed.AppendInstruction(entry.Func, ed.Ret())
		require.NoError(t, err)
		out, err := ed.Finish()
		require.NoError(t, err)
		return out
	}
	twoDispatches := func(t *testing.T) []byte {
		ed := reopen(t, blob(t, nil))
		entry, err := ed.EntryPoint()
		require.NoError(t, err)
		stream := ed.Stream(entry.Func)
		var pos int
		var call ir.Instr
		for i, id := range stream {
			if op, ok := ed.Program().DXOpOf(ed.Instr(id)); ok && op == ir.DXOpDispatchMesh {
				pos, call = i, *ed.Instr(id)
			}
		}
		_, err = ed.InsertInstruction(entry.Func, pos, call)
		require.NoError(t, err)
		out, err := ed.Finish()
		require.NoError(t, err)
		return out
	}
	tooSmall := func(t *testing.T) []byte {
		ed := reopen(t, blob(t, nil))
		require.NoError(t, ed.SetPayloadSize(8))
		out, err := ed.Finish()
		require.NoError(t, err)
		return out
	}

	cases := []struct {
		name string
		blob func(*testing.T) []byte
		dims capture.Dispatch
		want diag.Code
	}{
		{"no dispatch", noDispatch, capture.Dispatch{1, 1, 1}, diag.CapNoDispatch},
		{"two dispatches", twoDispatches, capture.Dispatch{1, 1, 1}, diag.CapMultipleDispatch},
		{"payload too large", tooSmall, capture.Dispatch{1, 1, 1}, diag.CapPayloadSize},
		{"empty dispatch", func(t *testing.T) []byte { return blob(t, nil) }, capture.Dispatch{0, 1, 1}, diag.CapBadDispatch},
		{"buffer beyond 32-bit offsets", func(t *testing.T) []byte { return blob(t, nil) }, capture.Dispatch{65535, 65535, 1}, diag.CapBadDispatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := tc.blob(t)
			opts := options()
			opts.Dispatch = tc.dims
			bag := diag.NewBag(8)
			opts.Reporter = diag.BagReporter{Bag: bag}

			_, err := capture.InjectPayloadStores(ctx, src, opts)
			require.Equal(t, tc.want, codeOf(t, err))
			require.True(t, bag.HasErrors())

			_, err = capture.SynthesizeFeeder(ctx, src, opts)
			require.Equal(t, tc.want, codeOf(t, err))
		})
	}
}

func TestPassesRejectUnboundedPayloads(t *testing.T) {
	ctx := context.Background()
	grow := func(member func(p *ir.Program) types.TypeID) func(*ir.Program) error {
		return func(p *ir.Program) error {
			pt, _ := p.Types.Named(samples.PayloadType)
			return p.Types.AppendMembers(pt, member(p))
		}
	}
	cases := []struct {
		name   string
		mutate func(*ir.Program) error
		want   diag.Code
	}{
		{"self-containing", grow(func(p *ir.Program) types.TypeID {
			pt, _ := p.Types.Named(samples.PayloadType)
			return pt
		}), diag.BlobProgramDecode},
		{"contained through array", grow(func(p *ir.Program) types.TypeID {
			pt, _ := p.Types.Named(samples.PayloadType)
			return p.Types.Array(pt, 1)
		}), diag.BlobProgramDecode},
		{"packed size overflow", grow(func(p *ir.Program) types.TypeID {
			return p.Types.Array(p.Types.Int(types.Width32), 0x40000001)
		}), diag.CapPayloadSize},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := rewriteProgram(t, blob(t, nil), tc.mutate)

			_, err := capture.InjectPayloadStores(ctx, src, options())
			var de *diag.Error
			require.ErrorAs(t, err, &de)
			require.Equal(t, tc.want, codeOf(t, err))

			_, err = capture.SynthesizeFeeder(ctx, src, options())
			require.ErrorAs(t, err, &de)
			require.Equal(t, tc.want, codeOf(t, err))
		})
	}
}

func TestSlotLinearization(t *testing.T) {
	dims := capture.Dispatch{3, 4, 5}
	groups, err := dims.Groups()
	require.NoError(t, err)
	seen := make(map[uint64]bool, groups)
	for z := range uint32(5) {
		for y := range uint32(4) {
			for x := range uint32(3) {
				g := [3]uint32{x, y, z}
				slot := dims.SlotIndex(g)
				require.Less(t, slot, groups)
				require.False(t, seen[slot], "slot %d reused", slot)
				seen[slot] = true
				require.Equal(t, g, dims.GroupOf(slot))
			}
		}
	}
	require.Len(t, seen, int(groups))
	require.EqualValues(t, 60*(12+16), capture.RequiredBytes(dims, 12))
	require.Zero(t, capture.RequiredBytes(capture.Dispatch{0, 1, 1}, 12))
	require.EqualValues(t, uint64(math.MaxUint64),
		capture.RequiredBytes(capture.Dispatch{0xFFFFFFFF, 1, 0xFFFFFFFF}, 0xFFFFFFFF))
}

func TestDecodeRecords(t *testing.T) {
	dims := capture.Dispatch{2, 1, 1}
	buf := make([]byte, capture.RequiredBytes(dims, 4))
	le := binary.LittleEndian
	for slot := range 2 {
		rec := buf[slot*20:]
		le.PutUint32(rec[0:], uint32(10+slot))
		le.PutUint32(rec[4:], 1)
		le.PutUint32(rec[8:], 2)
		le.PutUint32(rec[16:], 0xdeadbeef)
	}
	recs, err := capture.DecodeRecords(buf, dims, 4)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, [3]uint32{1, 0, 0}, recs[1].Group)
	require.Equal(t, [3]uint32{11, 1, 2}, recs[1].Dims)
	require.Equal(t, []byte{0xef, 0xbe, 0xad, 0xde}, recs[0].Payload)

	// growing one payload must not spill into the next slot
	require.Equal(t, 4, cap(recs[0].Payload))
	grown := append(recs[0].Payload, 0xaa, 0xbb)
	require.Len(t, grown, 6)
	require.EqualValues(t, 11, le.Uint32(buf[20:]))
	require.Equal(t, [3]uint32{11, 1, 2}, recs[1].Dims)

	_, err = capture.DecodeRecords(buf[:30], dims, 4)
	require.Equal(t, diag.CapPayloadSize, codeOf(t, err))
}

func TestHostBuffers(t *testing.T) {
	h := &capture.HostBuffers{Space: 9}
	b, err := h.Ensure(context.Background(), 64)
	require.NoError(t, err)
	require.EqualValues(t, 9, b.Space)
	require.EqualValues(t, 64, b.Size)
	h.Bytes()[3] = 7
	b, err = h.Ensure(context.Background(), 32)
	require.NoError(t, err)
	require.EqualValues(t, 64, b.Size, "never shrinks")
	require.EqualValues(t, 7, h.Bytes()[3])
}
