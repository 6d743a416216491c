// Package capture rewrites amplification programs so their per-group
// dispatch payloads can be recorded into a raw buffer and replayed later.
//
// InjectPayloadStores turns the original program into a capturing one: each
// group writes its dispatch dimensions and packed payload to its own slot of
// the capture buffer and dispatches nothing. SynthesizeFeeder turns the same
// original program into a one-thread replayer that reads a slot back and
// dispatches exactly what the original did.
package capture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"ampcap/internal/container"
	"ampcap/internal/diag"
	"ampcap/internal/editor"
	"ampcap/internal/ir"
	"ampcap/internal/layout"
	"ampcap/internal/types"
)

// Register is the register the capture buffer is bound to.
const Register uint32 = 1

// HeaderSize is the size of the per-slot header: dispatch x, y, z and a
// reserved word.
const HeaderSize uint32 = 16

// Barrier mode: group sync plus groupshared memory fence.
const barrierMode uint32 = 0x1 | 0x8

// Options configures one pass invocation.
type Options struct {
	Binding  Binding
	Dispatch Dispatch
	// File names the blob in diagnostics.
	File     string
	Reporter diag.Reporter
}

// Result describes a rewritten blob.
type Result struct {
	Blob []byte
	// PayloadSize is the declared payload size of the original program.
	PayloadSize uint32
	// PackedSize is the packed leaf size of the payload type.
	PackedSize uint32
	// Stride is the slot size in the capture buffer.
	Stride uint32
	// Slot is the UAV id the capture buffer received.
	Slot uint32
}

// site is the located dispatch of the entry point.
type site struct {
	fn          ir.FuncID
	call        ir.InstrID
	dispatch    ir.FuncID
	global      ir.GlobalID
	payloadType types.TypeID
	payloadSize uint32
	packedSize  uint32
}

func (s site) stride() uint32 { return s.payloadSize + HeaderSize }

type pass struct {
	ed   *editor.Editor
	opts Options
}

func (ps *pass) errorf(code diag.Code, format string, args ...any) error {
	err := diag.Errorf(code, ps.ed.Location(), format, args...)
	diag.ReportErr(ps.opts.Reporter, code, err)
	return err
}

func open(ctx context.Context, blob []byte, opts Options) (*pass, error) {
	if opts.Reporter == nil {
		opts.Reporter = diag.NopReporter{}
	}
	ed, err := editor.New(ctx, blob, editor.Options{File: opts.File, Reporter: opts.Reporter})
	if err != nil {
		return nil, err
	}
	ps := &pass{ed: ed, opts: opts}
	if _, err := opts.Dispatch.Groups(); err != nil {
		return nil, ps.errorf(diag.CapBadDispatch, "%w", err)
	}
	return ps, nil
}

// locate finds the single dispatch of the entry point and validates the
// payload it passes.
func (ps *pass) locate() (site, error) {
	ed := ps.ed
	entry, err := ed.EntryPoint()
	if err != nil {
		return site{}, err
	}
	s := site{fn: entry.Func, call: ir.NoInstrID}
	var count int
	for _, id := range ed.Stream(entry.Func) {
		in := ed.Instr(id)
		if in.Op != ir.OpCall {
			continue
		}
		callee := ed.Func(in.Callee)
		if callee == nil || !strings.HasPrefix(callee.Name, ir.FuncDispatchMeshPrefix) {
			continue
		}
		count++
		if count == 1 {
			s.call, s.dispatch = id, in.Callee
		}
	}
	switch {
	case count == 0:
		return site{}, ps.errorf(diag.CapNoDispatch, "entry %s has no %s call", entry.Name, ir.FuncDispatchMeshPrefix)
	case count > 1:
		return site{}, ps.errorf(diag.CapMultipleDispatch, "entry %s has %d dispatch calls", entry.Name, count)
	}

	call := ed.Instr(s.call)
	if len(call.Args) != 5 {
		return site{}, ps.errorf(diag.CapDispatchArity, "dispatch has %d operands, want 5", len(call.Args))
	}
	g, ok := call.Args[4].Global()
	if !ok {
		return site{}, ps.errorf(diag.CapPayloadNotShared, "dispatch payload is a %s, not a global", call.Args[4].Kind)
	}
	global := ed.Program().Global(g)
	if global.Space != types.AddrGroupShared {
		return site{}, ps.errorf(diag.CapPayloadNotShared, "payload @%s lives in address space %d", global.Name, global.Space)
	}
	s.global = g
	s.payloadType = ed.TypeOf(global.Type).Elem
	if pt := ed.TypeOf(s.payloadType); pt.Kind != types.KindStruct {
		return site{}, ps.errorf(diag.CapPayloadType, "payload @%s has type %s", global.Name, ed.Types().String(s.payloadType))
	}

	amp, err := ed.AmplificationTag()
	if err != nil {
		return site{}, err
	}
	s.payloadSize = amp.PayloadSize
	packed, err := layout.New(layout.GroupShared(), ed.Types()).PackedSize(s.payloadType)
	if err != nil {
		code := diag.CpyUnsupportedLeaf
		var le *layout.LayoutError
		if errors.As(err, &le) {
			switch le.Kind {
			case layout.LayoutErrRecursive:
				code = diag.CapPayloadType
			case layout.LayoutErrOverflow:
				code = diag.CapPayloadSize
			}
		}
		return site{}, ps.errorf(code, "payload @%s: %w", global.Name, err)
	}
	s.packedSize = packed
	if packed > s.payloadSize || s.payloadSize > math.MaxUint32-HeaderSize {
		return site{}, ps.errorf(diag.CapPayloadSize, "packed payload is %d bytes, declared size is %d", packed, s.payloadSize)
	}
	if need := RequiredBytes(ps.opts.Dispatch, s.payloadSize); need > MaxBufferBytes {
		return site{}, ps.errorf(diag.CapBadDispatch, "dispatch %s needs a %d byte capture buffer, slot offsets are 32-bit",
			ps.opts.Dispatch, need)
	}
	return s, nil
}

// bindBuffer declares the capture buffer and emits its handle at cur.
func (ps *pass) bindBuffer(cur *editor.Cursor) (ir.Value, editor.ResourceDecl, error) {
	decl, err := ps.ed.RegisterResourceBinding(editor.Binding{
		Type:  container.ResourceUAVRaw,
		Space: ps.opts.Binding.Space,
		Base:  Register,
		Count: 1,
		Shape: container.ShapeRawBuffer,
	})
	if err != nil {
		return ir.Value{}, editor.ResourceDecl{}, err
	}
	h, err := NewHandleBuilder(ps.ed).Build(cur, decl)
	return h, decl, err
}

// groupIDs emits the three group id reads.
func (ps *pass) groupIDs(cur *editor.Cursor) ([3]ir.Value, error) {
	ed := ps.ed
	var out [3]ir.Value
	fn, err := ed.DeclareFunction("dx.op.groupId.i32", ed.I32(),
		[]types.TypeID{ed.I32(), ed.I32()}, ir.AttrNoUnwind|ir.AttrReadNone)
	if err != nil {
		return out, err
	}
	for i := range out {
		if out[i], err = cur.Emit(ed.Call(fn, ir.DXOpGroupID, ed.ConstU32(uint32(i)))); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (ps *pass) add(a, b ir.Value) ir.Instr {
	return ps.ed.Binary(ir.OpAdd, ps.ed.I32(), a, b, 0)
}

// slotBase emits flat = gx + gy*dimX + gz*dimXY and base = flat*stride.
// dimXY is an already computed product.
func (ps *pass) slotBase(cur *editor.Cursor, g [3]ir.Value, dimXY ir.Value, stride uint32) (ir.Value, error) {
	ed := ps.ed
	ymul, err := cur.Emit(ed.Mul(g[1], ed.ConstU32(ps.opts.Dispatch[0])))
	if err != nil {
		return ir.Value{}, err
	}
	zmul, err := cur.Emit(ed.Mul(g[2], dimXY))
	if err != nil {
		return ir.Value{}, err
	}
	yz, err := cur.Emit(ps.add(ymul, zmul))
	if err != nil {
		return ir.Value{}, err
	}
	flat, err := cur.Emit(ps.add(g[0], yz))
	if err != nil {
		return ir.Value{}, err
	}
	return cur.Emit(ed.Mul(flat, ed.ConstU32(stride)))
}

func (ps *pass) finish(s site, decl editor.ResourceDecl) (Result, error) {
	out, err := ps.ed.Finish()
	if err != nil {
		return Result{}, err
	}
	return Result{
		Blob:        out,
		PayloadSize: s.payloadSize,
		PackedSize:  s.packedSize,
		Stride:      s.stride(),
		Slot:        decl.Slot,
	}, nil
}

func (r Result) String() string {
	return fmt.Sprintf("payload=%d packed=%d stride=%d slot=%d bytes=%d",
		r.PayloadSize, r.PackedSize, r.Stride, r.Slot, len(r.Blob))
}
