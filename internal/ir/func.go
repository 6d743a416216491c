package ir

import (
	"strings"

	"ampcap/internal/types"
)

// Attr is the set of call-site attributes of a declared function.
type Attr uint32

const (
	AttrNoUnwind Attr = 1 << iota
	AttrReadNone
	AttrReadOnly
	AttrNoDuplicate
)

func (a Attr) String() string {
	var parts []string
	if a&AttrNoUnwind != 0 {
		parts = append(parts, "nounwind")
	}
	if a&AttrReadNone != 0 {
		parts = append(parts, "readnone")
	}
	if a&AttrReadOnly != 0 {
		parts = append(parts, "readonly")
	}
	if a&AttrNoDuplicate != 0 {
		parts = append(parts, "noduplicate")
	}
	return strings.Join(parts, " ")
}

// Func is either an external declaration or a defined body.
type Func struct {
	ID       FuncID
	Name     string
	Result   types.TypeID
	Params   []types.TypeID
	Attrs    Attr
	External bool
	Blocks   []BlockID
}
