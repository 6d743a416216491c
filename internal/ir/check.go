package ir

import (
	"errors"
	"fmt"

	"ampcap/internal/types"
)

// Check verifies the structural invariants the passes rely on: every body
// block is non-empty and ends with its only terminator, every instruction
// belongs to exactly one block, and every operand points into its pool.
func Check(p *Program) error {
	if p == nil {
		return nil
	}
	var errs []error
	if err := p.Types.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("types: %w", err))
	}
	owner := make(map[InstrID]BlockID, len(p.Instrs))
	blockOwner := make(map[BlockID]FuncID, len(p.Blocks))
	for _, fn := range p.Funcs {
		if fn == nil {
			continue
		}
		if err := checkFunc(p, fn, owner, blockOwner); err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", fn.Name, err))
		}
	}
	for i := range p.Globals {
		g := &p.Globals[i]
		if t, ok := p.Types.Lookup(g.Type); !ok || t.Kind != types.KindPointer {
			errs = append(errs, fmt.Errorf("global @%s: type must be a pointer", g.Name))
		}
	}
	for i := range p.Meta {
		n := &p.Meta[i]
		if n.Kind == MetaValue {
			if err := checkValue(p, n.Value, nil); err != nil {
				errs = append(errs, fmt.Errorf("!%d: %w", i, err))
			}
		}
		for _, c := range n.Children {
			if c != NoMetaID && p.MetaNode(c) == nil {
				errs = append(errs, fmt.Errorf("!%d: child !%d out of range", i, c))
			}
		}
	}
	return errors.Join(errs...)
}

func checkFunc(p *Program, fn *Func, owner map[InstrID]BlockID, blockOwner map[BlockID]FuncID) error {
	if fn.External {
		if len(fn.Blocks) != 0 {
			return errors.New("declaration has a body")
		}
		return nil
	}
	if len(fn.Blocks) == 0 {
		return errors.New("definition has no blocks")
	}
	var errs []error
	local := make(map[BlockID]bool, len(fn.Blocks))
	for _, b := range fn.Blocks {
		if p.Block(b) == nil {
			errs = append(errs, fmt.Errorf("bb%d: out of range", b))
			continue
		}
		if prev, dup := blockOwner[b]; dup {
			errs = append(errs, fmt.Errorf("bb%d: already owned by function %d", b, prev))
		}
		blockOwner[b] = fn.ID
		local[b] = true
	}
	for _, b := range fn.Blocks {
		blk := p.Block(b)
		if blk == nil {
			continue
		}
		if len(blk.Instrs) == 0 {
			errs = append(errs, fmt.Errorf("bb%d: empty block", b))
			continue
		}
		for i, id := range blk.Instrs {
			in := p.Instr(id)
			if in == nil {
				errs = append(errs, fmt.Errorf("bb%d: instruction %d out of range", b, id))
				continue
			}
			if prev, dup := owner[id]; dup {
				errs = append(errs, fmt.Errorf("bb%d: instruction %%%d already placed in bb%d", b, id, prev))
			}
			owner[id] = b
			last := i == len(blk.Instrs)-1
			if in.Op.IsTerminator() != last {
				if last {
					errs = append(errs, fmt.Errorf("bb%d: unterminated block", b))
				} else {
					errs = append(errs, fmt.Errorf("bb%d: terminator %s before end of block", b, in.Op))
				}
			}
			if err := checkInstr(p, in, local); err != nil {
				errs = append(errs, fmt.Errorf("bb%d: %%%d: %w", b, id, err))
			}
		}
	}
	return errors.Join(errs...)
}

func checkInstr(p *Program, in *Instr, local map[BlockID]bool) error {
	if !in.Op.Valid() {
		return fmt.Errorf("invalid opcode %d", in.Op)
	}
	for _, v := range in.Args {
		if err := checkValue(p, v, local); err != nil {
			return err
		}
	}
	switch in.Op {
	case OpBr:
		if len(in.Args) != 1 && len(in.Args) != 3 {
			return fmt.Errorf("br expects 1 or 3 operands, got %d", len(in.Args))
		}
		if _, ok := in.Args[0].Block(); !ok {
			return errors.New("br target is not a block")
		}
		if len(in.Args) == 3 {
			if _, ok := in.Args[1].Block(); !ok {
				return errors.New("br else target is not a block")
			}
		}
	case OpStore:
		if len(in.Args) != 2 {
			return fmt.Errorf("store expects 2 operands, got %d", len(in.Args))
		}
	case OpLoad:
		if len(in.Args) != 1 {
			return fmt.Errorf("load expects 1 operand, got %d", len(in.Args))
		}
	case OpExtractValue:
		if len(in.Args) != 2 || in.Args[1].Kind != ValLiteral {
			return errors.New("extractvalue expects an aggregate and a literal index")
		}
	case OpCall:
		fn := p.Func(in.Callee)
		if fn == nil {
			return fmt.Errorf("call to unknown function %d", in.Callee)
		}
		if len(in.Args) != len(fn.Params) {
			return fmt.Errorf("call to %s: %d args, want %d", fn.Name, len(in.Args), len(fn.Params))
		}
	default:
		if in.Op.IsCast() && len(in.Args) != 1 {
			return fmt.Errorf("%s expects 1 operand, got %d", in.Op, len(in.Args))
		}
		if in.Op.IsBinary() || in.Op.IsCompare() {
			if len(in.Args) != 2 {
				return fmt.Errorf("%s expects 2 operands, got %d", in.Op, len(in.Args))
			}
		}
	}
	return nil
}

func checkValue(p *Program, v Value, local map[BlockID]bool) error {
	switch v.Kind {
	case ValConst:
		if p.Const(ConstID(v.ID)) == nil {
			return fmt.Errorf("constant %d out of range", v.ID)
		}
	case ValInstr:
		if p.Instr(InstrID(v.ID)) == nil {
			return fmt.Errorf("instruction %d out of range", v.ID)
		}
	case ValGlobal:
		if p.Global(GlobalID(v.ID)) == nil {
			return fmt.Errorf("global %d out of range", v.ID)
		}
	case ValFunc:
		if p.Func(FuncID(v.ID)) == nil {
			return fmt.Errorf("function %d out of range", v.ID)
		}
	case ValBlock:
		if local != nil && !local[BlockID(v.ID)] {
			return fmt.Errorf("branch to bb%d outside the function", v.ID)
		}
	case ValLiteral:
	default:
		return fmt.Errorf("empty operand")
	}
	return nil
}
