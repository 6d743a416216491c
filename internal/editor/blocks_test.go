package editor_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ampcap/internal/diag"
	"ampcap/internal/ir"
)

func TestInsertInstructionShiftsStream(t *testing.T) {
	ed := open(t, sample(t, nil), nil)
	entry, err := ed.EntryPoint()
	require.NoError(t, err)
	before := ed.Stream(entry.Func)

	v, err := ed.InsertInstruction(entry.Func, 0, ed.AddNSW(ed.ConstU32(1), ed.ConstU32(2)))
	require.NoError(t, err)
	id, ok := v.Instr()
	require.True(t, ok)

	after := ed.Stream(entry.Func)
	require.Len(t, after, len(before)+1)
	require.Equal(t, id, after[0])
	require.Equal(t, before, after[1:])
	require.True(t, ed.Modified())
}

func TestInsertTerminatorMidBlock(t *testing.T) {
	ed := open(t, sample(t, nil), nil)
	entry, err := ed.EntryPoint()
	require.NoError(t, err)

	_, err = ed.InsertInstruction(entry.Func, 0, ed.Ret())
	require.Equal(t, diag.EdtBlockTerminated, codeOf(t, err))

	_, err = ed.AppendInstruction(entry.Func, ed.Ret())
	require.Equal(t, diag.EdtBlockTerminated, codeOf(t, err))

	_, err = ed.InsertInstruction(entry.Func, len(ed.Stream(entry.Func))+1, ed.Ret())
	require.Equal(t, diag.EdtBadPosition, codeOf(t, err))
}

func TestSplitBlock(t *testing.T) {
	ed := open(t, sample(t, nil), nil)
	entry, err := ed.EntryPoint()
	require.NoError(t, err)
	fn := ed.Func(entry.Func)
	lastIdx := len(fn.Blocks) - 1
	head := fn.Blocks[lastIdx]
	dispatch, ok := ed.FuncByPrefix(ir.FuncDispatchMeshPrefix)
	require.True(t, ok)
	calls := ed.CallsTo(entry.Func, dispatch)
	require.Len(t, calls, 1)
	_, at, ok := ed.Program().Find(entry.Func, calls[0])
	require.True(t, ok)

	tail, err := ed.SplitBlock(entry.Func, lastIdx, at)
	require.NoError(t, err)
	fn = ed.Func(entry.Func)
	require.Equal(t, tail, fn.Blocks[lastIdx+1])
	require.Len(t, ed.Program().Block(head).Instrs, at)
	require.Equal(t, calls[0], ed.Program().Block(tail).Instrs[0])
	require.False(t, ed.Program().Terminated(head))

	_, err = ed.Finish()
	require.Equal(t, diag.EdtStructure, codeOf(t, err), "head is unterminated")

	_, err = ed.AppendToBlock(entry.Func, head, ed.Br(tail))
	require.NoError(t, err)
	_, err = ed.Finish()
	require.NoError(t, err)
}

func TestInsertBlockAndCursor(t *testing.T) {
	ed := open(t, sample(t, nil), nil)
	entry, err := ed.EntryPoint()
	require.NoError(t, err)

	blk := ed.NewBlock()
	require.NoError(t, ed.InsertBlock(entry.Func, 1, blk))
	require.Equal(t, diag.EdtBadPosition, codeOf(t, ed.InsertBlock(entry.Func, 1, blk)))

	cur, err := ed.CursorAtEnd(entry.Func, blk)
	require.NoError(t, err)
	a, err := cur.Emit(ed.Mul(ed.ConstU32(3), ed.ConstU32(4)))
	require.NoError(t, err)
	b, err := cur.Emit(ed.AddNSW(a, ed.ConstU32(1)))
	require.NoError(t, err)
	_, err = cur.Emit(ed.Ret())
	require.NoError(t, err)
	_, err = cur.Emit(ed.Ret())
	require.Equal(t, diag.EdtBlockTerminated, codeOf(t, err))

	instrs := ed.Program().Block(blk).Instrs
	require.Len(t, instrs, 3)
	bi, _ := b.Instr()
	require.Equal(t, bi, instrs[1])

	at, err := ed.CursorAt(entry.Func, 0)
	require.NoError(t, err)
	x, err := at.Emit(ed.Mul(ed.ConstU32(5), ed.ConstU32(6)))
	require.NoError(t, err)
	y, err := at.Emit(ed.Mul(x, x))
	require.NoError(t, err)
	stream := ed.Stream(entry.Func)
	xi, _ := x.Instr()
	yi, _ := y.Instr()
	require.Equal(t, []ir.InstrID{xi, yi}, stream[:2])

	_, err = ed.Finish()
	require.NoError(t, err)
}

func TestResetBody(t *testing.T) {
	ed := open(t, sample(t, nil), nil)
	entry, err := ed.EntryPoint()
	require.NoError(t, err)
	blk, err := ed.ResetBody(entry.Func)
	require.NoError(t, err)
	require.Equal(t, []ir.BlockID{blk}, ed.Func(entry.Func).Blocks)
	require.Empty(t, ed.Stream(entry.Func))

	_, err = ed.AppendInstruction(entry.Func, ed.Ret())
	require.NoError(t, err)
	out, err := ed.Finish()
	require.NoError(t, err)

	again := open(t, out, nil)
	e2, err := again.EntryPoint()
	require.NoError(t, err)
	require.Len(t, again.Stream(e2.Func), 1)
}

func TestSetOperand(t *testing.T) {
	ed := open(t, sample(t, nil), nil)
	entry, err := ed.EntryPoint()
	require.NoError(t, err)
	first := ed.Stream(entry.Func)[0]
	require.Equal(t, diag.EdtBadOperandArity, codeOf(t, ed.SetOperand(first, 5, ed.ConstU32(0))))
	require.NoError(t, ed.SetOperand(first, 0, ed.ConstU32(uint32(ir.DXOpFlattenedThreadIDInGroup))))
}
