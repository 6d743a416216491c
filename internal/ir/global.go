package ir

import "ampcap/internal/types"

// Global is a named storage location outside any function. Type is the
// pointer type of the symbol; Space mirrors its address space.
type Global struct {
	Name  string
	Type  types.TypeID
	Space types.AddrSpace
	Init  Value
	Align uint8
}
