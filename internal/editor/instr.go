package editor

import (
	"fmt"
	"slices"

	"ampcap/internal/diag"
	"ampcap/internal/ir"
	"ampcap/internal/types"
)

// Instruction descriptors. None of these touch the program; place the result
// with InsertInstruction, AppendInstruction, AppendToBlock or a Cursor.

// Call calls the dx.op intrinsic fn with op prepended to args.
func (e *Editor) Call(fn ir.FuncID, op ir.DXOp, args ...ir.Value) ir.Instr {
	all := make([]ir.Value, 0, len(args)+1)
	all = append(all, e.ConstU32(uint32(op)))
	all = append(all, args...)
	return e.CallFunc(fn, all...)
}

// CallFunc calls fn with args as given.
func (e *Editor) CallFunc(fn ir.FuncID, args ...ir.Value) ir.Instr {
	ret := types.NoTypeID
	if f := e.prog.Func(fn); f != nil {
		ret = f.Result
	}
	return ir.Instr{Op: ir.OpCall, Type: ret, Callee: fn, Args: args}
}

// Binary builds an arithmetic instruction of type t.
func (e *Editor) Binary(op ir.Op, t types.TypeID, a, b ir.Value, flags ir.InstrFlags) ir.Instr {
	return ir.Instr{Op: op, Type: t, Args: []ir.Value{a, b}, Flags: flags}
}

// AddNSW builds `add nsw i32 a, b`.
func (e *Editor) AddNSW(a, b ir.Value) ir.Instr {
	return e.Binary(ir.OpAdd, e.I32(), a, b, ir.FlagNoSignedWrap)
}

// Mul builds `mul i32 a, b`.
func (e *Editor) Mul(a, b ir.Value) ir.Instr {
	return e.Binary(ir.OpMul, e.I32(), a, b, 0)
}

// Compare builds an integer comparison producing i1.
func (e *Editor) Compare(op ir.Op, a, b ir.Value) ir.Instr {
	return ir.Instr{Op: op, Type: e.Bool(), Args: []ir.Value{a, b}}
}

// Cast converts v to t.
func (e *Editor) Cast(op ir.Op, t types.TypeID, v ir.Value) ir.Instr {
	return ir.Instr{Op: op, Type: t, Args: []ir.Value{v}}
}

// Load reads a value of type t from ptr.
func (e *Editor) Load(t types.TypeID, ptr ir.Value, align uint32) ir.Instr {
	return ir.Instr{Op: ir.OpLoad, Type: t, Args: []ir.Value{ptr}, Align: ir.EncodeAlign(align)}
}

// Store writes v to ptr.
func (e *Editor) Store(ptr, v ir.Value, align uint32) ir.Instr {
	return ir.Instr{Op: ir.OpStore, Type: e.Void(), Args: []ir.Value{ptr, v}, Align: ir.EncodeAlign(align)}
}

// Extract reads member idx of an aggregate value; t is the member type.
func (e *Editor) Extract(t types.TypeID, agg ir.Value, idx uint32) ir.Instr {
	return ir.Instr{Op: ir.OpExtractValue, Type: t, Args: []ir.Value{agg, ir.Literal(idx)}}
}

// Br jumps to target.
func (e *Editor) Br(target ir.BlockID) ir.Instr {
	return ir.Instr{Op: ir.OpBr, Type: e.Void(), Args: []ir.Value{ir.BlockValue(target)}}
}

// CondBr jumps to then when cond holds and to els otherwise.
func (e *Editor) CondBr(then, els ir.BlockID, cond ir.Value) ir.Instr {
	return ir.Instr{Op: ir.OpBr, Type: e.Void(), Args: []ir.Value{ir.BlockValue(then), ir.BlockValue(els), cond}}
}

// Ret returns from a void function.
func (e *Editor) Ret() ir.Instr {
	return ir.Instr{Op: ir.OpRet, Type: e.Void()}
}

// Placement -------------------------------------------------------------------

// InsertInstruction inserts in before the instruction at flattened position
// pos of fn. pos equal to the stream length appends to the last block.
func (e *Editor) InsertInstruction(fn ir.FuncID, pos int, in ir.Instr) (ir.Value, error) {
	bi, off, err := e.prog.Locate(fn, pos)
	if err != nil {
		return ir.Value{}, e.errorfIn(diag.EdtBadPosition, fn, "%w", err)
	}
	return e.insertAt(fn, e.prog.Func(fn).Blocks[bi], off, in)
}

// AppendInstruction appends in to the last block of fn.
func (e *Editor) AppendInstruction(fn ir.FuncID, in ir.Instr) (ir.Value, error) {
	f := e.prog.Func(fn)
	if f == nil || len(f.Blocks) == 0 {
		return ir.Value{}, e.errorfIn(diag.EdtBadPosition, fn, "function %d has no blocks", fn)
	}
	last := f.Blocks[len(f.Blocks)-1]
	return e.insertAt(fn, last, len(e.prog.Block(last).Instrs), in)
}

// AppendToBlock appends in to block, which must belong to fn.
func (e *Editor) AppendToBlock(fn ir.FuncID, block ir.BlockID, in ir.Instr) (ir.Value, error) {
	if err := e.ownsBlock(fn, block); err != nil {
		return ir.Value{}, err
	}
	return e.insertAt(fn, block, len(e.prog.Block(block).Instrs), in)
}

func (e *Editor) ownsBlock(fn ir.FuncID, block ir.BlockID) error {
	f := e.prog.Func(fn)
	if f == nil || !slices.Contains(f.Blocks, block) {
		return e.errorfIn(diag.EdtBadPosition, fn, "block bb%d is not part of function %d", block, fn)
	}
	return nil
}

func (e *Editor) insertAt(fn ir.FuncID, block ir.BlockID, off int, in ir.Instr) (ir.Value, error) {
	blk := e.prog.Block(block)
	if off < len(blk.Instrs) {
		if in.Op.IsTerminator() {
			return ir.Value{}, e.errorfIn(diag.EdtBlockTerminated, fn,
				"%s inserted before the end of bb%d", in.Op, block)
		}
	} else if e.prog.Terminated(block) {
		return ir.Value{}, e.errorfIn(diag.EdtBlockTerminated, fn, "bb%d is already terminated", block)
	}
	id := e.prog.AddInstr(in)
	blk = e.prog.Block(block)
	blk.Instrs = slices.Insert(blk.Instrs, off, id)
	e.dirty = true
	return ir.InstrValue(id), nil
}

// SetOperand replaces operand i of instruction id.
func (e *Editor) SetOperand(id ir.InstrID, i int, v ir.Value) error {
	in := e.prog.Instr(id)
	if in == nil {
		return e.errorf(diag.EdtBadPosition, "instruction %%%d not found", id)
	}
	if i < 0 || i >= len(in.Args) {
		return e.errorf(diag.EdtBadOperandArity, "%s has %d operands, cannot set #%d", in.Op, len(in.Args), i)
	}
	in.Args[i] = v
	e.touch("set_operand", fmt.Sprintf("%%%d#%d", id, i))
	return nil
}

// Cursor emits instructions at a fixed point of a function, advancing past
// each one.
type Cursor struct {
	e     *Editor
	fn    ir.FuncID
	block ir.BlockID
	off   int
	atEnd bool
}

// CursorAt returns a cursor before the instruction at flattened position pos.
func (e *Editor) CursorAt(fn ir.FuncID, pos int) (*Cursor, error) {
	bi, off, err := e.prog.Locate(fn, pos)
	if err != nil {
		return nil, e.errorfIn(diag.EdtBadPosition, fn, "%w", err)
	}
	return &Cursor{e: e, fn: fn, block: e.prog.Func(fn).Blocks[bi], off: off}, nil
}

// CursorAtEnd returns a cursor appending to block.
func (e *Editor) CursorAtEnd(fn ir.FuncID, block ir.BlockID) (*Cursor, error) {
	if err := e.ownsBlock(fn, block); err != nil {
		return nil, err
	}
	return &Cursor{e: e, fn: fn, block: block, atEnd: true}, nil
}

// Func returns the function the cursor emits into.
func (c *Cursor) Func() ir.FuncID { return c.fn }

// Block returns the block the cursor emits into.
func (c *Cursor) Block() ir.BlockID { return c.block }

// Emit places in at the cursor and returns its value.
func (c *Cursor) Emit(in ir.Instr) (ir.Value, error) {
	off := c.off
	if c.atEnd {
		off = len(c.e.prog.Block(c.block).Instrs)
	}
	v, err := c.e.insertAt(c.fn, c.block, off, in)
	if err != nil {
		return ir.Value{}, err
	}
	c.off++
	return v, nil
}
