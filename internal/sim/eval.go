package sim

import (
	"ampcap/internal/diag"
	"ampcap/internal/ir"
	"ampcap/internal/types"
)

// exec runs f until it parks, returns or faults.
func (g *group) exec(f *Frame) error {
	prog := g.p.prog
	for f.state == stateRunning {
		if f.Steps >= g.cfg.StepLimit {
			return g.fault(f, diag.SimFault, "step limit %d exceeded", g.cfg.StepLimit)
		}
		f.Steps++
		in := g.current(f)
		if in == nil {
			return g.fault(f, diag.SimFault, "fell off the end of block %d", f.Block)
		}
		id := prog.Block(prog.Func(g.p.entry).Blocks[f.Block]).Instrs[f.IP]

		switch in.Op {
		case ir.OpRet:
			f.state = stateDone
		case ir.OpBr:
			if err := g.branch(f, in); err != nil {
				return err
			}
		case ir.OpSwitch:
			if err := g.switchTo(f, in); err != nil {
				return err
			}
		case ir.OpUnreachable:
			return g.fault(f, diag.SimFault, "reached unreachable")
		case ir.OpCall:
			v, err := g.call(f, in)
			if err != nil {
				return err
			}
			if f.state == stateRunning {
				f.values[id] = v
				f.IP++
			}
		case ir.OpStore:
			if err := g.store(f, in); err != nil {
				return err
			}
			f.IP++
		default:
			v, err := g.eval(f, in)
			if err != nil {
				return err
			}
			f.values[id] = v
			f.IP++
		}
	}
	return nil
}

func (g *group) jump(f *Frame, target ir.Value) error {
	b, ok := target.Block()
	if !ok {
		return g.fault(f, diag.SimFault, "branch target is a %s", target.Kind)
	}
	idx, ok := g.p.blocks[b]
	if !ok {
		return g.fault(f, diag.SimFault, "branch to foreign block bb%d", b)
	}
	f.Block, f.IP = idx, 0
	return nil
}

func (g *group) branch(f *Frame, in *ir.Instr) error {
	if len(in.Args) == 1 {
		return g.jump(f, in.Args[0])
	}
	cond, err := g.operand(f, in.Args[2])
	if err != nil {
		return err
	}
	if cond.Bits&1 != 0 {
		return g.jump(f, in.Args[0])
	}
	return g.jump(f, in.Args[1])
}

func (g *group) switchTo(f *Frame, in *ir.Instr) error {
	cond, err := g.operand(f, in.Args[0])
	if err != nil {
		return err
	}
	for i := 2; i+1 < len(in.Args); i += 2 {
		c, err := g.operand(f, in.Args[i])
		if err != nil {
			return err
		}
		if c.Bits == cond.Bits {
			return g.jump(f, in.Args[i+1])
		}
	}
	return g.jump(f, in.Args[1])
}

// eval computes a value-producing instruction other than calls.
func (g *group) eval(f *Frame, in *ir.Instr) (Value, error) {
	rt := g.p.prog.Types.MustLookup(in.Type)
	switch {
	case in.Op.IsBinary():
		a, err := g.operand(f, in.Args[0])
		if err != nil {
			return Value{}, err
		}
		b, err := g.operand(f, in.Args[1])
		if err != nil {
			return Value{}, err
		}
		return g.binary(f, in.Op, rt, a.Bits, b.Bits)
	case in.Op.IsCompare():
		a, err := g.operand(f, in.Args[0])
		if err != nil {
			return Value{}, err
		}
		b, err := g.operand(f, in.Args[1])
		if err != nil {
			return Value{}, err
		}
		var r bool
		switch in.Op {
		case ir.OpICmpEq:
			r = a.Bits == b.Bits
		case ir.OpICmpNe:
			r = a.Bits != b.Bits
		case ir.OpICmpULT:
			r = a.Bits < b.Bits
		}
		if r {
			return Value{Bits: 1}, nil
		}
		return Value{}, nil
	case in.Op.IsCast():
		v, err := g.operand(f, in.Args[0])
		if err != nil {
			return Value{}, err
		}
		switch in.Op {
		case ir.OpTrunc, ir.OpZExt:
			return Value{Bits: v.Bits & widthMask(rt.Width)}, nil
		case ir.OpUIToFP:
			return Value{Bits: fromFloat(float64(v.Bits), rt.Width)}, nil
		}
	case in.Op == ir.OpLoad:
		ptr, err := g.operand(f, in.Args[0])
		if err != nil {
			return Value{}, err
		}
		mem, off, err := g.address(f, ptr, rt.Bytes())
		if err != nil {
			return Value{}, err
		}
		return Value{Bits: readLE(mem[off:], int(rt.Bytes()))}, nil
	case in.Op == ir.OpExtractValue:
		agg, err := g.operand(f, in.Args[0])
		if err != nil {
			return Value{}, err
		}
		idx := int(in.Args[1].ID)
		if idx >= len(agg.Elems) {
			// undef aggregates have no members
			return Value{}, nil
		}
		return Value{Bits: agg.Elems[idx]}, nil
	}
	return Value{}, g.fault(f, diag.SimUnsupported, "instruction %s", in.Op)
}

func (g *group) binary(f *Frame, op ir.Op, rt types.Type, a, b uint64) (Value, error) {
	if rt.Kind == types.KindFloat {
		x, y := toFloat(a, rt.Width), toFloat(b, rt.Width)
		switch op {
		case ir.OpFAdd:
			return Value{Bits: fromFloat(x+y, rt.Width)}, nil
		case ir.OpFMul:
			return Value{Bits: fromFloat(x*y, rt.Width)}, nil
		}
		return Value{}, g.fault(f, diag.SimUnsupported, "%s on %s", op, rt.Kind)
	}
	mask := widthMask(rt.Width)
	var r uint64
	switch op {
	case ir.OpAdd:
		r = a + b
	case ir.OpSub:
		r = a - b
	case ir.OpMul:
		r = a * b
	case ir.OpUDiv, ir.OpURem:
		if b == 0 {
			return Value{}, g.fault(f, diag.SimFault, "%s by zero", op)
		}
		if op == ir.OpUDiv {
			r = a / b
		} else {
			r = a % b
		}
	case ir.OpAnd:
		r = a & b
	case ir.OpOr:
		r = a | b
	case ir.OpXor:
		r = a ^ b
	case ir.OpShl, ir.OpLShr:
		if b >= uint64(rt.Width) {
			return Value{}, nil
		}
		if op == ir.OpShl {
			r = a << b
		} else {
			r = a >> b
		}
	default:
		return Value{}, g.fault(f, diag.SimUnsupported, "%s on %s", op, rt.Kind)
	}
	return Value{Bits: r & mask}, nil
}

func (g *group) store(f *Frame, in *ir.Instr) error {
	ptr, err := g.operand(f, in.Args[0])
	if err != nil {
		return err
	}
	v, err := g.operand(f, in.Args[1])
	if err != nil {
		return err
	}
	t := g.p.prog.Types.MustLookup(g.typeOf(in.Args[1]))
	if !t.IsScalar() {
		return g.fault(f, diag.SimUnsupported, "store of %s", t.Kind)
	}
	mem, off, err := g.address(f, ptr, t.Bytes())
	if err != nil {
		return err
	}
	writeLE(mem[off:], int(t.Bytes()), v.Bits)
	return nil
}

// address checks that size bytes at ptr lie inside the global.
func (g *group) address(f *Frame, ptr Value, size uint32) ([]byte, int, error) {
	if ptr.Ptr == nil {
		return nil, 0, g.fault(f, diag.SimFault, "memory access through a non-pointer")
	}
	mem, err := g.memory(f, ptr.Ptr.Global)
	if err != nil {
		return nil, 0, err
	}
	if ptr.Ptr.Offset < 0 || ptr.Ptr.Offset+int(size) > len(mem) {
		return nil, 0, g.fault(f, diag.SimFault, "access of %d bytes at offset %d of a %d byte global",
			size, ptr.Ptr.Offset, len(mem))
	}
	return mem, ptr.Ptr.Offset, nil
}

// operand evaluates an instruction operand.
func (g *group) operand(f *Frame, v ir.Value) (Value, error) {
	switch v.Kind {
	case ir.ValInstr:
		id, _ := v.Instr()
		val, ok := f.values[id]
		if !ok {
			return Value{}, g.fault(f, diag.SimFault, "use of %%%d before its definition", id)
		}
		return val, nil
	case ir.ValConst:
		id, _ := v.Const()
		return g.constant(f, id)
	case ir.ValGlobal:
		id, _ := v.Global()
		return Value{Ptr: &Pointer{Global: id}}, nil
	case ir.ValLiteral:
		return Value{Bits: uint64(v.ID)}, nil
	}
	return Value{}, g.fault(f, diag.SimUnsupported, "operand kind %s", v.Kind)
}

func (g *group) constant(f *Frame, id ir.ConstID) (Value, error) {
	if v, ok := g.consts[id]; ok {
		return v, nil
	}
	c := g.p.prog.Const(id)
	if c == nil {
		return Value{}, g.fault(f, diag.SimFault, "unknown constant %d", id)
	}
	var v Value
	switch c.Kind {
	case ir.ConstInt, ir.ConstFloat:
		v.Bits = c.Bits
	case ir.ConstUndef, ir.ConstNull:
	case ir.ConstAggregate:
		v.Elems = make([]uint64, len(c.Elems))
		for i, e := range c.Elems {
			ev, err := g.operand(f, e)
			if err != nil {
				return Value{}, err
			}
			v.Elems[i] = ev.Bits
		}
	case ir.ConstGEP:
		gid, ok := c.Elems[0].Global()
		if !ok {
			return Value{}, g.fault(f, diag.SimUnsupported, "address not based on a global")
		}
		path := make([]uint64, 0, len(c.Elems)-1)
		for _, e := range c.Elems[1:] {
			n, ok := g.p.prog.IntConst(e)
			if !ok {
				return Value{}, g.fault(f, diag.SimUnsupported, "non-constant address index")
			}
			path = append(path, n)
		}
		base := g.p.prog.Types.MustLookup(g.p.prog.Global(gid).Type).Elem
		off, _, err := g.lay.OffsetOf(base, path)
		if err != nil {
			return Value{}, g.fault(f, diag.SimFault, "address: %v", err)
		}
		v.Ptr = &Pointer{Global: gid, Offset: off}
	default:
		return Value{}, g.fault(f, diag.SimUnsupported, "constant kind %s", c.Kind)
	}
	g.consts[id] = v
	return v, nil
}

// typeOf returns the static type of an operand.
func (g *group) typeOf(v ir.Value) types.TypeID {
	prog := g.p.prog
	switch v.Kind {
	case ir.ValInstr:
		id, _ := v.Instr()
		return prog.Instr(id).Type
	case ir.ValConst:
		id, _ := v.Const()
		return prog.Const(id).Type
	case ir.ValGlobal:
		id, _ := v.Global()
		return prog.Global(id).Type
	}
	return types.NoTypeID
}
