package editor

import (
	"fmt"
	"slices"

	"ampcap/internal/diag"
	"ampcap/internal/ir"
)

// NewBlock allocates an empty block outside any function.
func (e *Editor) NewBlock() ir.BlockID {
	id := e.prog.AddBlock()
	e.dirty = true
	return id
}

// InsertBlock places block at index in the block list of fn.
func (e *Editor) InsertBlock(fn ir.FuncID, index int, block ir.BlockID) error {
	f := e.prog.Func(fn)
	if f == nil {
		return e.errorf(diag.EdtFuncNotFound, "function %d not found", fn)
	}
	if e.prog.Block(block) == nil {
		return e.errorfIn(diag.EdtBadPosition, fn, "block bb%d does not exist", block)
	}
	if slices.Contains(f.Blocks, block) {
		return e.errorfIn(diag.EdtBadPosition, fn, "block bb%d is already placed", block)
	}
	if index < 0 || index > len(f.Blocks) {
		return e.errorfIn(diag.EdtBadPosition, fn, "block index %d out of range [0, %d]", index, len(f.Blocks))
	}
	f.Blocks = slices.Insert(f.Blocks, index, block)
	e.touch("insert_block", fmt.Sprintf("%s:bb%d@%d", f.Name, block, index))
	return nil
}

// SplitBlock moves the instructions of the block at blockIdx starting at
// offset at into a new block placed right after it. The head keeps its ID
// and is left without a terminator. It returns the tail block.
func (e *Editor) SplitBlock(fn ir.FuncID, blockIdx, at int) (ir.BlockID, error) {
	f := e.prog.Func(fn)
	if f == nil {
		return ir.NoBlockID, e.errorf(diag.EdtFuncNotFound, "function %d not found", fn)
	}
	if blockIdx < 0 || blockIdx >= len(f.Blocks) {
		return ir.NoBlockID, e.errorfIn(diag.EdtBadPosition, fn, "block index %d out of range", blockIdx)
	}
	head := f.Blocks[blockIdx]
	if n := len(e.prog.Block(head).Instrs); at < 0 || at > n {
		return ir.NoBlockID, e.errorfIn(diag.EdtBadPosition, fn, "split offset %d outside bb%d (%d instructions)", at, head, n)
	}
	tail := e.prog.AddBlock()
	hb := e.prog.Block(head)
	moved := slices.Clone(hb.Instrs[at:])
	hb.Instrs = hb.Instrs[:at:at]
	e.prog.Block(tail).Instrs = moved
	f.Blocks = slices.Insert(f.Blocks, blockIdx+1, tail)
	e.touch("split_block", fmt.Sprintf("%s:bb%d@%d->bb%d", f.Name, head, at, tail))
	return tail, nil
}

// ResetBody drops every block of fn and gives it a single empty block.
func (e *Editor) ResetBody(fn ir.FuncID) (ir.BlockID, error) {
	f := e.prog.Func(fn)
	if f == nil {
		return ir.NoBlockID, e.errorf(diag.EdtFuncNotFound, "function %d not found", fn)
	}
	b := e.prog.AddBlock()
	f.Blocks = []ir.BlockID{b}
	f.External = false
	e.touch("reset_body", f.Name)
	return b, nil
}

// BlockIndex returns the position of block in the block list of fn.
func (e *Editor) BlockIndex(fn ir.FuncID, block ir.BlockID) (int, bool) {
	f := e.prog.Func(fn)
	if f == nil {
		return 0, false
	}
	i := slices.Index(f.Blocks, block)
	return i, i >= 0
}
