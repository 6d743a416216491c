package capture

import (
	"context"
	"fmt"

	"fortio.org/safecast"

	"ampcap/internal/container"
	"ampcap/internal/diag"
	"ampcap/internal/ir"
	"ampcap/internal/payload"
	"ampcap/internal/trace"
)

// SynthesizeFeeder rewrites blob into a single-thread program that reads
// slot flat(groupId) of a filled capture buffer back into the payload and
// dispatches with the recorded dimensions. Four i32 members (x, y, z,
// offset) are appended to the payload type.
func SynthesizeFeeder(ctx context.Context, blob []byte, opts Options) (Result, error) {
	ctx, span := trace.Start(ctx, trace.ScopePass, "synthesize_feeder")
	defer span.End("")

	ps, err := open(ctx, blob, opts)
	if err != nil {
		return Result{}, err
	}
	s, err := ps.locate()
	if err != nil {
		return Result{}, err
	}
	span.WithExtra("payload", fmt.Sprint(s.payloadSize))

	ed := ps.ed
	i32 := ed.I32()
	dims := ps.opts.Dispatch
	dimXY, err := safecast.Conv[uint32](uint64(dims[0]) * uint64(dims[1]))
	if err != nil {
		return Result{}, ps.errorf(diag.CapBadDispatch, "dispatch %s: %w", dims, err)
	}
	load, err := payload.DeclareBufferLoad(ed, i32)
	if err != nil {
		return Result{}, err
	}

	if err := ed.PatchGlobalFlags(func(f uint64) uint64 {
		return (f | ir.ShaderFlagRawBuffers | ir.ShaderFlagUAVsAtEveryStage) &^ ir.ShaderFlagWaveOps
	}); err != nil {
		return Result{}, err
	}
	if err := ed.PatchFeatures(func(f uint64) uint64 { return f &^ container.FeatureWaveOps }); err != nil {
		return Result{}, err
	}
	if err := ed.SetNumThreads(1, 1, 1); err != nil {
		return Result{}, err
	}
	if err := ed.SetPayloadSize(s.stride()); err != nil {
		return Result{}, err
	}

	members := len(ed.TypeOf(s.payloadType).Members)
	if err := ed.AppendMembers(s.payloadType, i32, i32, i32, i32); err != nil {
		return Result{}, err
	}

	blk, err := ed.ResetBody(s.fn)
	if err != nil {
		return Result{}, err
	}
	cur, err := ed.CursorAtEnd(s.fn, blk)
	if err != nil {
		return Result{}, err
	}
	handle, decl, err := ps.bindBuffer(cur)
	if err != nil {
		return Result{}, err
	}
	groups, err := ps.groupIDs(cur)
	if err != nil {
		return Result{}, err
	}
	base, err := ps.slotBase(cur, groups, ed.ConstU32(dimXY), s.stride())
	if err != nil {
		return Result{}, err
	}
	header, err := cur.Emit(ed.Call(load, ir.DXOpRawBufferLoad,
		handle, base, ed.Undef(i32), ed.ConstU8(0xf), ed.ConstU32(4)))
	if err != nil {
		return Result{}, err
	}
	var fields [4]ir.Value
	for i := range fields {
		if fields[i], err = cur.Emit(ed.Extract(i32, header, uint32(i))); err != nil {
			return Result{}, err
		}
	}

	copier := &payload.Copier{
		Editor:  ed,
		Dir:     payload.BufferToPayload,
		Handle:  handle,
		Base:    base,
		Payload: s.global,
		Cursor:  HeaderSize,
	}
	for m := range members {
		if err := copier.CopyMember(cur, s.payloadType, uint32(m)); err != nil {
			return Result{}, err
		}
	}

	space := ed.Program().Global(s.global).Space
	for i, v := range fields {
		gep := ed.GEP(ed.Pointer(i32, space), s.global, 0, uint32(members+i))
		if _, err := cur.Emit(ed.Store(gep, v, 4)); err != nil {
			return Result{}, err
		}
	}
	if _, err := cur.Emit(ed.Call(s.dispatch, ir.DXOpDispatchMesh,
		fields[0], fields[1], fields[2], ir.GlobalValue(s.global))); err != nil {
		return Result{}, err
	}
	if _, err := cur.Emit(ed.Ret()); err != nil {
		return Result{}, err
	}
	return ps.finish(s, decl)
}
