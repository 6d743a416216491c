package ir

type FuncID int32
type BlockID int32
type InstrID int32
type ConstID int32
type GlobalID int32
type MetaID int32

const (
	NoFuncID   FuncID   = -1
	NoBlockID  BlockID  = -1
	NoInstrID  InstrID  = -1
	NoConstID  ConstID  = -1
	NoGlobalID GlobalID = -1
	NoMetaID   MetaID   = -1
)
