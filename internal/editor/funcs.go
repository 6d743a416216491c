package editor

import (
	"slices"

	"ampcap/internal/diag"
	"ampcap/internal/ir"
	"ampcap/internal/types"
)

// DeclareFunction returns the function called name, declaring it as external
// when absent. Redeclaring with a different signature is an error.
func (e *Editor) DeclareFunction(name string, ret types.TypeID, params []types.TypeID, attrs ir.Attr) (ir.FuncID, error) {
	if id, ok := e.prog.FuncByName(name); ok {
		fn := e.prog.Func(id)
		if fn.Result != ret || !slices.Equal(fn.Params, params) {
			return ir.NoFuncID, e.errorf(diag.EdtTypeMismatch, "function %s redeclared with a different signature", name)
		}
		return id, nil
	}
	id := e.prog.AddFunc(&ir.Func{
		Name:     name,
		Result:   ret,
		Params:   slices.Clone(params),
		Attrs:    attrs,
		External: true,
	})
	e.touch("declare", name)
	return id, nil
}

// FuncByName looks a function up by exact name.
func (e *Editor) FuncByName(name string) (ir.FuncID, error) {
	if id, ok := e.prog.FuncByName(name); ok {
		return id, nil
	}
	return ir.NoFuncID, e.errorf(diag.EdtFuncNotFound, "function %s not found", name)
}

// FuncByPrefix returns the first function whose name starts with prefix.
func (e *Editor) FuncByPrefix(prefix string) (ir.FuncID, bool) {
	return e.prog.FuncByPrefix(prefix)
}

// Func returns the function with the given ID.
func (e *Editor) Func(id ir.FuncID) *ir.Func { return e.prog.Func(id) }

// Stream returns the flattened instruction stream of fn.
func (e *Editor) Stream(fn ir.FuncID) []ir.InstrID { return e.prog.Stream(fn) }

// Instr returns the instruction with the given ID.
func (e *Editor) Instr(id ir.InstrID) *ir.Instr { return e.prog.Instr(id) }

// CallsTo returns every call to callee inside fn in stream order.
func (e *Editor) CallsTo(fn, callee ir.FuncID) []ir.InstrID {
	var out []ir.InstrID
	for _, id := range e.prog.Stream(fn) {
		if e.prog.Instr(id).IsCallTo(callee) {
			out = append(out, id)
		}
	}
	return out
}
