package ir

// Block is a basic block: an ordered instruction list whose last element is
// the block's only terminator.
type Block struct {
	ID     BlockID
	Instrs []InstrID
}

// Terminated reports whether the block already ends with a terminator.
func (p *Program) Terminated(b BlockID) bool {
	blk := p.Block(b)
	if blk == nil || len(blk.Instrs) == 0 {
		return false
	}
	return p.Instr(blk.Instrs[len(blk.Instrs)-1]).Op.IsTerminator()
}
