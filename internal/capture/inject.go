package capture

import (
	"context"
	"fmt"

	"ampcap/internal/diag"
	"ampcap/internal/ir"
	"ampcap/internal/payload"
	"ampcap/internal/trace"
	"ampcap/internal/types"
)

// InjectPayloadStores rewrites blob so that thread 0 of every group stores
// the dispatch dimensions and the packed payload into slot
// flat(groupId) of the capture buffer. The dispatch itself is kept with all
// dimensions set to 0.
func InjectPayloadStores(ctx context.Context, blob []byte, opts Options) (Result, error) {
	ctx, span := trace.Start(ctx, trace.ScopePass, "inject_payload_stores")
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
	barrier, err := ed.DeclareFunction("dx.op.barrier", ed.Void(), []types.TypeID{i32, i32}, ir.AttrNoUnwind|ir.AttrNoDuplicate)
	if err != nil {
		return Result{}, err
	}
	flatFn, err := ed.DeclareFunction("dx.op.flattenedThreadIdInGroup.i32", i32, []types.TypeID{i32}, ir.AttrNoUnwind|ir.AttrReadNone)
	if err != nil {
		return Result{}, err
	}
	storeI32, err := payload.DeclareBufferStore(ed, i32)
	if err != nil {
		return Result{}, err
	}

	// prelude at the top of the entry block
	cur, err := ed.CursorAt(s.fn, 0)
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
	flatTid, err := cur.Emit(ed.Call(flatFn, ir.DXOpFlattenedThreadIDInGroup))
	if err != nil {
		return Result{}, err
	}
	dimXY, err := cur.Emit(ed.Mul(ed.ConstU32(ps.opts.Dispatch[0]), ed.ConstU32(ps.opts.Dispatch[1])))
	if err != nil {
		return Result{}, err
	}
	base, err := ps.slotBase(cur, groups, dimXY, s.stride())
	if err != nil {
		return Result{}, err
	}

	// split X | Y (capture) | Z (dispatch and the rest)
	bi, off, ok := ed.Program().Find(s.fn, s.call)
	if !ok {
		return Result{}, ps.errorf(diag.CapUnavailable, "dispatch call %%%d vanished", s.call)
	}
	tail, err := ed.SplitBlock(s.fn, bi, off)
	if err != nil {
		return Result{}, err
	}
	captureBlk := ed.NewBlock()
	if err := ed.InsertBlock(s.fn, bi+1, captureBlk); err != nil {
		return Result{}, err
	}
	head := ed.Func(s.fn).Blocks[bi]
	isZero, err := ed.AppendToBlock(s.fn, head, ed.Compare(ir.OpICmpEq, flatTid, ed.ConstU32(0)))
	if err != nil {
		return Result{}, err
	}
	if _, err := ed.AppendToBlock(s.fn, head, ed.CondBr(captureBlk, tail, isZero)); err != nil {
		return Result{}, err
	}

	y, err := ed.CursorAtEnd(s.fn, captureBlk)
	if err != nil {
		return Result{}, err
	}
	if _, err := y.Emit(ed.Call(barrier, ir.DXOpBarrier, ed.ConstU32(barrierMode))); err != nil {
		return Result{}, err
	}
	call := ed.Instr(s.call)
	dims := [3]ir.Value{call.Args[1], call.Args[2], call.Args[3]}
	for i, dim := range dims {
		at := base
		if i > 0 {
			if at, err = y.Emit(ps.add(base, ed.ConstU32(uint32(4*i)))); err != nil {
				return Result{}, err
			}
		}
		undef := ed.Undef(i32)
		if _, err := y.Emit(ed.Call(storeI32, ir.DXOpRawBufferStore,
			handle, at, undef, dim, undef, undef, undef, ed.ConstU8(0x1), ed.ConstU32(4))); err != nil {
			return Result{}, err
		}
	}
	copier := &payload.Copier{
		Editor:  ed,
		Dir:     payload.PayloadToBuffer,
		Handle:  handle,
		Base:    base,
		Payload: s.global,
		Cursor:  HeaderSize,
	}
	for m := range ed.TypeOf(s.payloadType).Members {
		if err := copier.CopyMember(y, s.payloadType, uint32(m)); err != nil {
			return Result{}, err
		}
	}
	if _, err := y.Emit(ed.Br(tail)); err != nil {
		return Result{}, err
	}

	for i := 1; i <= 3; i++ {
		if err := ed.SetOperand(s.call, i, ed.ConstU32(0)); err != nil {
			return Result{}, err
		}
	}
	if err := ed.PatchGlobalFlags(func(f uint64) uint64 {
		return f | ir.ShaderFlagRawBuffers | ir.ShaderFlagUAVsAtEveryStage
	}); err != nil {
		return Result{}, err
	}
	return ps.finish(s, decl)
}
