package diag

import (
	"fmt"
	"strings"
)

// Location points at the part of a program blob a diagnostic is about. Any
// field may be left empty; Block and Instr use -1 for "not applicable".
type Location struct {
	File  string
	Chunk string
	Func  string
	Block int32
	Instr int32
}

// NoLocation is the location of diagnostics not tied to any program element.
var NoLocation = Location{Block: -1, Instr: -1}

// At returns a location inside file.
func At(file string) Location {
	return Location{File: file, Block: -1, Instr: -1}
}

// InChunk narrows l to a container chunk.
func (l Location) InChunk(fourcc string) Location {
	l.Chunk = fourcc
	return l
}

// InFunc narrows l to a function.
func (l Location) InFunc(name string) Location {
	l.Func = name
	return l
}

// InBlock narrows l to a block of the current function.
func (l Location) InBlock(b int32) Location {
	l.Block = b
	return l
}

// AtInstr narrows l to an instruction.
func (l Location) AtInstr(i int32) Location {
	l.Instr = i
	return l
}

func (l Location) String() string {
	var parts []string
	if l.File != "" {
		parts = append(parts, l.File)
	}
	if l.Chunk != "" {
		parts = append(parts, l.Chunk)
	}
	if l.Func != "" {
		parts = append(parts, "@"+l.Func)
	}
	if l.Block >= 0 {
		parts = append(parts, fmt.Sprintf("bb%d", l.Block))
	}
	if l.Instr >= 0 {
		parts = append(parts, fmt.Sprintf("%%%d", l.Instr))
	}
	if len(parts) == 0 {
		return "<unknown>"
	}
	return strings.Join(parts, ":")
}
