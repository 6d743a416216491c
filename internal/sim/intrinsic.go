package sim

import (
	"ampcap/internal/diag"
	"ampcap/internal/ir"
	"ampcap/internal/types"
)

// call executes a dx.op call. Barriers and dispatches park f.
func (g *group) call(f *Frame, in *ir.Instr) (Value, error) {
	prog := g.p.prog
	op, ok := prog.DXOpOf(in)
	if !ok {
		name := "?"
		if fn := prog.Func(in.Callee); fn != nil {
			name = fn.Name
		}
		return Value{}, g.fault(f, diag.SimUnsupported, "call to @%s", name)
	}
	args := make([]Value, len(in.Args))
	for i, a := range in.Args {
		v, err := g.operand(f, a)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}
	arg := func(i int) Value {
		if i < len(args) {
			return args[i]
		}
		return Value{}
	}
	component := func() (int, error) {
		c := arg(1).Bits
		if c > 2 {
			return 0, g.fault(f, diag.SimFault, "%s component %d", op, c)
		}
		return int(c), nil
	}

	switch op {
	case ir.DXOpFlattenedThreadIDInGroup:
		return Value{Bits: uint64(f.TID)}, nil
	case ir.DXOpThreadIDInGroup:
		c, err := component()
		if err != nil {
			return Value{}, err
		}
		return Value{Bits: uint64(f.Local[c])}, nil
	case ir.DXOpGroupID:
		c, err := component()
		if err != nil {
			return Value{}, err
		}
		return Value{Bits: uint64(g.id[c])}, nil
	case ir.DXOpThreadID:
		c, err := component()
		if err != nil {
			return Value{}, err
		}
		return Value{Bits: uint64(g.id[c])*uint64(g.p.threads[c]) + uint64(f.Local[c])}, nil

	case ir.DXOpCreateHandle:
		if arg(1).Bits != ir.HandleKindUAV {
			return Value{}, g.fault(f, diag.SimUnsupported, "handle of resource class %d", arg(1).Bits)
		}
		slot := uint32(arg(2).Bits) //nolint:gosec // i32 operand
		key, ok := g.p.uavs[slot]
		if !ok {
			return Value{}, g.fault(f, diag.SimFault, "no UAV with id %d", slot)
		}
		key.Register = uint32(arg(3).Bits) //nolint:gosec // i32 operand
		return g.handle(f, key)
	case ir.DXOpCreateHandleFromBinding:
		bind := arg(1).Elems
		if len(bind) < 4 {
			return Value{}, g.fault(f, diag.SimFault, "malformed resource binding")
		}
		if bind[3] != ir.HandleKindUAV {
			return Value{}, g.fault(f, diag.SimUnsupported, "handle of resource class %d", bind[3])
		}
		reg := arg(2).Bits
		if reg < bind[0] || reg > bind[1] {
			return Value{}, g.fault(f, diag.SimFault, "register %d outside binding [%d, %d]", reg, bind[0], bind[1])
		}
		return g.handle(f, Key{Space: uint32(bind[2]), Register: uint32(reg)}) //nolint:gosec // i32 operands
	case ir.DXOpAnnotateHandle:
		if arg(1).Res == nil {
			return Value{}, g.fault(f, diag.SimFault, "annotating a non-handle")
		}
		return arg(1), nil

	case ir.DXOpRawBufferLoad:
		buf := arg(1).Res
		if buf == nil {
			return Value{}, g.fault(f, diag.SimFault, "buffer load through a non-handle")
		}
		ret := prog.Types.MustLookup(in.Type)
		if ret.Kind != types.KindStruct || len(ret.Members) < 4 {
			return Value{}, g.fault(f, diag.SimUnsupported, "buffer load returning %s", ret.Kind)
		}
		size := int(prog.Types.MustLookup(ret.Members[0]).Bytes())
		mask := arg(4).Bits
		out := Value{Elems: make([]uint64, len(ret.Members))}
		for i := range 4 {
			if mask&(1<<i) != 0 {
				out.Elems[i] = buf.load(arg(2).Bits+uint64(i*size), size)
			}
		}
		return out, nil
	case ir.DXOpRawBufferStore:
		buf := arg(1).Res
		if buf == nil {
			return Value{}, g.fault(f, diag.SimFault, "buffer store through a non-handle")
		}
		callee := prog.Func(in.Callee)
		if callee == nil || len(callee.Params) < 10 {
			return Value{}, g.fault(f, diag.SimUnsupported, "malformed buffer store declaration")
		}
		size := int(prog.Types.MustLookup(callee.Params[4]).Bytes())
		mask := arg(8).Bits
		for i := range 4 {
			if mask&(1<<i) != 0 {
				buf.store(arg(2).Bits+uint64(i*size), size, arg(4+i).Bits)
			}
		}
		return Value{}, nil

	case ir.DXOpBarrier:
		f.state = stateBarrier
		return Value{}, nil
	case ir.DXOpDispatchMesh:
		f.state = stateDispatch
		return Value{}, nil
	}
	return Value{}, g.fault(f, diag.SimUnsupported, "dx.op %d", op)
}

func (g *group) handle(f *Frame, key Key) (Value, error) {
	buf, ok := g.cfg.Buffers[key]
	if !ok || buf == nil {
		return Value{}, g.fault(f, diag.SimFault, "no buffer bound at %s", key)
	}
	return Value{Res: buf}, nil
}
