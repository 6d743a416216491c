package ir

import (
	"fmt"
	"math"
	"strings"

	"fortio.org/safecast"

	"ampcap/internal/types"
)

// Program owns every pool of a shader program. Pools are append-only:
// an ID, once handed out, keeps naming the same entry for the life of the
// Program.
type Program struct {
	Types   *types.Interner
	Consts  []Const
	Globals []Global
	Funcs   []*Func
	Blocks  []Block
	Instrs  []Instr
	Meta    []MetaNode
	Named   []NamedMeta

	constIndex map[constKey]ConstID
	funcIndex  map[string]FuncID
}

// NewProgram returns an empty program.
func NewProgram() *Program {
	return &Program{
		Types:      types.NewInterner(),
		constIndex: make(map[constKey]ConstID, 64),
		funcIndex:  make(map[string]FuncID, 16),
	}
}

func nextID(n int) int32 {
	id, err := safecast.Conv[int32](n)
	if err != nil {
		panic(fmt.Errorf("ir: pool overflow: %w", err))
	}
	return id
}

// Constants -------------------------------------------------------------------

// AddConst interns c and returns its ID.
func (p *Program) AddConst(c Const) ConstID {
	key := keyOfConst(c)
	if id, ok := p.constIndex[key]; ok {
		return id
	}
	return p.appendConst(c)
}

// AppendConst stores c without interning; the first occurrence owns the key.
func (p *Program) AppendConst(c Const) ConstID {
	return p.appendConst(c)
}

func (p *Program) appendConst(c Const) ConstID {
	id := ConstID(nextID(len(p.Consts)))
	c.Elems = append([]Value(nil), c.Elems...)
	p.Consts = append(p.Consts, c)
	key := keyOfConst(c)
	if _, ok := p.constIndex[key]; !ok {
		p.constIndex[key] = id
	}
	return id
}

// Const returns the constant with the given ID.
func (p *Program) Const(id ConstID) *Const {
	if id < 0 || int(id) >= len(p.Consts) {
		return nil
	}
	return &p.Consts[id]
}

// IntConst returns the constant behind v when it is an integer literal.
func (p *Program) IntConst(v Value) (uint64, bool) {
	id, ok := v.Const()
	if !ok {
		return 0, false
	}
	c := p.Const(id)
	if c == nil || c.Kind != ConstInt {
		return 0, false
	}
	return c.Bits, true
}

// Functions -------------------------------------------------------------------

// AddFunc appends fn and indexes it by name.
func (p *Program) AddFunc(fn *Func) FuncID {
	id := FuncID(nextID(len(p.Funcs)))
	fn.ID = id
	p.Funcs = append(p.Funcs, fn)
	if _, ok := p.funcIndex[fn.Name]; !ok {
		p.funcIndex[fn.Name] = id
	}
	return id
}

// Func returns the function with the given ID.
func (p *Program) Func(id FuncID) *Func {
	if id < 0 || int(id) >= len(p.Funcs) {
		return nil
	}
	return p.Funcs[id]
}

// FuncByName looks a function up by exact name.
func (p *Program) FuncByName(name string) (FuncID, bool) {
	id, ok := p.funcIndex[name]
	return id, ok
}

// FuncByPrefix returns the first function whose name starts with prefix.
func (p *Program) FuncByPrefix(prefix string) (FuncID, bool) {
	for _, fn := range p.Funcs {
		if strings.HasPrefix(fn.Name, prefix) {
			return fn.ID, true
		}
	}
	return NoFuncID, false
}

// Globals ---------------------------------------------------------------------

// AddGlobal appends g.
func (p *Program) AddGlobal(g Global) GlobalID {
	id := GlobalID(nextID(len(p.Globals)))
	p.Globals = append(p.Globals, g)
	return id
}

// Global returns the global with the given ID.
func (p *Program) Global(id GlobalID) *Global {
	if id < 0 || int(id) >= len(p.Globals) {
		return nil
	}
	return &p.Globals[id]
}

// Blocks and instructions -----------------------------------------------------

// AddBlock allocates an empty block that belongs to no function yet.
func (p *Program) AddBlock() BlockID {
	id := BlockID(nextID(len(p.Blocks)))
	p.Blocks = append(p.Blocks, Block{ID: id})
	return id
}

// Block returns the block with the given ID.
func (p *Program) Block(id BlockID) *Block {
	if id < 0 || int(id) >= len(p.Blocks) {
		return nil
	}
	return &p.Blocks[id]
}

// AddInstr stores in and returns its ID; it is not placed in any block.
func (p *Program) AddInstr(in Instr) InstrID {
	id := InstrID(nextID(len(p.Instrs)))
	in.Args = append([]Value(nil), in.Args...)
	if in.Op != OpCall {
		in.Callee = NoFuncID
	}
	p.Instrs = append(p.Instrs, in)
	return id
}

// Instr returns the instruction with the given ID.
func (p *Program) Instr(id InstrID) *Instr {
	if id < 0 || int(id) >= len(p.Instrs) {
		return nil
	}
	return &p.Instrs[id]
}

// Stream returns the flattened instruction stream of fn: the concatenation
// of its blocks in order.
func (p *Program) Stream(fn FuncID) []InstrID {
	f := p.Func(fn)
	if f == nil {
		return nil
	}
	var out []InstrID
	for _, b := range f.Blocks {
		out = append(out, p.Block(b).Instrs...)
	}
	return out
}

// Locate maps a flattened position to the block index within fn and the
// offset inside that block. A position equal to the stream length maps to
// the end of the last block.
func (p *Program) Locate(fn FuncID, pos int) (int, int, error) {
	f := p.Func(fn)
	if f == nil {
		return 0, 0, fmt.Errorf("ir: function %d not found", fn)
	}
	if len(f.Blocks) == 0 {
		return 0, 0, fmt.Errorf("ir: function %s has no blocks", f.Name)
	}
	if pos < 0 {
		return 0, 0, fmt.Errorf("ir: negative position %d", pos)
	}
	rem := pos
	for i, b := range f.Blocks {
		n := len(p.Block(b).Instrs)
		if rem < n {
			return i, rem, nil
		}
		rem -= n
	}
	if rem == 0 {
		last := len(f.Blocks) - 1
		return last, len(p.Block(f.Blocks[last]).Instrs), nil
	}
	return 0, 0, fmt.Errorf("ir: position %d beyond end of %s", pos, f.Name)
}

// Find returns the block index and offset of instruction id within fn.
func (p *Program) Find(fn FuncID, id InstrID) (int, int, bool) {
	f := p.Func(fn)
	if f == nil {
		return 0, 0, false
	}
	for bi, b := range f.Blocks {
		for ii, cur := range p.Block(b).Instrs {
			if cur == id {
				return bi, ii, true
			}
		}
	}
	return 0, 0, false
}

// Metadata --------------------------------------------------------------------

// AddMeta appends a node to the metadata arena.
func (p *Program) AddMeta(n MetaNode) MetaID {
	id := MetaID(nextID(len(p.Meta)))
	n.Children = append([]MetaID(nil), n.Children...)
	p.Meta = append(p.Meta, n)
	return id
}

// MetaNode returns the node with the given ID, or nil for NoMetaID.
func (p *Program) MetaNode(id MetaID) *MetaNode {
	if id < 0 || int(id) >= len(p.Meta) {
		return nil
	}
	return &p.Meta[id]
}

// NamedMeta returns the named metadata entry, if present.
func (p *Program) NamedMeta(name string) *NamedMeta {
	for i := range p.Named {
		if p.Named[i].Name == name {
			return &p.Named[i]
		}
	}
	return nil
}

// MetaU32 reads a metadata leaf holding an integer constant.
func (p *Program) MetaU32(id MetaID) (uint32, bool) {
	n := p.MetaNode(id)
	if n == nil || n.Kind != MetaValue {
		return 0, false
	}
	bits, ok := p.IntConst(n.Value)
	if !ok || bits > math.MaxUint32 {
		return 0, false
	}
	return uint32(bits), true
}

// MetaU64 reads a metadata leaf holding an integer constant of any width.
func (p *Program) MetaU64(id MetaID) (uint64, bool) {
	n := p.MetaNode(id)
	if n == nil || n.Kind != MetaValue {
		return 0, false
	}
	return p.IntConst(n.Value)
}
