package ir

import "fmt"

// ValueKind distinguishes the pool a Value points into.
type ValueKind uint8

const (
	// ValNone is the zero Value.
	ValNone ValueKind = iota
	// ValConst references Program.Consts.
	ValConst
	// ValInstr references the result of Program.Instrs.
	ValInstr
	// ValGlobal references Program.Globals.
	ValGlobal
	// ValFunc references Program.Funcs.
	ValFunc
	// ValBlock references Program.Blocks (branch targets).
	ValBlock
	// ValLiteral is an immediate stored in ID (extractvalue indices).
	ValLiteral
)

func (k ValueKind) String() string {
	switch k {
	case ValNone:
		return "none"
	case ValConst:
		return "const"
	case ValInstr:
		return "instr"
	case ValGlobal:
		return "global"
	case ValFunc:
		return "func"
	case ValBlock:
		return "block"
	case ValLiteral:
		return "literal"
	default:
		return fmt.Sprintf("ValueKind(%d)", k)
	}
}

// Value is a non-owning operand reference into one of the program pools.
type Value struct {
	Kind ValueKind
	ID   uint32
}

func ConstValue(id ConstID) Value   { return Value{Kind: ValConst, ID: uint32(id)} }
func InstrValue(id InstrID) Value   { return Value{Kind: ValInstr, ID: uint32(id)} }
func GlobalValue(id GlobalID) Value { return Value{Kind: ValGlobal, ID: uint32(id)} }
func FuncValue(id FuncID) Value     { return Value{Kind: ValFunc, ID: uint32(id)} }
func BlockValue(id BlockID) Value   { return Value{Kind: ValBlock, ID: uint32(id)} }
func Literal(n uint32) Value        { return Value{Kind: ValLiteral, ID: n} }

// IsValid reports whether v references anything.
func (v Value) IsValid() bool { return v.Kind != ValNone }

func (v Value) Const() (ConstID, bool)   { return ConstID(v.ID), v.Kind == ValConst }
func (v Value) Instr() (InstrID, bool)   { return InstrID(v.ID), v.Kind == ValInstr }
func (v Value) Global() (GlobalID, bool) { return GlobalID(v.ID), v.Kind == ValGlobal }
func (v Value) Func() (FuncID, bool)     { return FuncID(v.ID), v.Kind == ValFunc }
func (v Value) Block() (BlockID, bool)   { return BlockID(v.ID), v.Kind == ValBlock }
