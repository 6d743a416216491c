package ir

import (
	"fmt"
	"io"
	"math"
	"strings"

	"ampcap/internal/types"
)

// DumpOptions configures program dumping.
type DumpOptions struct {
	// Metadata includes the metadata arena in the dump.
	Metadata bool
}

// DumpProgram writes a human-readable listing of p.
func DumpProgram(w io.Writer, p *Program, opts DumpOptions) error {
	if w == nil || p == nil {
		return nil
	}
	d := dumper{p: p}
	var sb strings.Builder
	for i := range p.Globals {
		g := &p.Globals[i]
		fmt.Fprintf(&sb, "@%s = global %s", g.Name, p.Types.String(g.Type))
		if g.Init.IsValid() {
			fmt.Fprintf(&sb, " init %s", d.value(g.Init))
		}
		if g.Align != 0 {
			fmt.Fprintf(&sb, ", align %d", DecodeAlign(g.Align))
		}
		sb.WriteByte('\n')
	}
	for _, fn := range p.Funcs {
		d.dumpFunc(&sb, fn)
	}
	if opts.Metadata {
		for _, nm := range p.Named {
			fmt.Fprintf(&sb, "!%s = !{", nm.Name)
			for i, r := range nm.Roots {
				if i > 0 {
					sb.WriteString(", ")
				}
				fmt.Fprintf(&sb, "!%d", r)
			}
			sb.WriteString("}\n")
		}
		for i := range p.Meta {
			fmt.Fprintf(&sb, "!%d = %s\n", i, d.meta(&p.Meta[i]))
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

type dumper struct {
	p *Program
}

func (d dumper) dumpFunc(sb *strings.Builder, fn *Func) {
	params := make([]string, len(fn.Params))
	for i, t := range fn.Params {
		params[i] = d.p.Types.String(t)
	}
	ret := d.p.Types.String(fn.Result)
	if fn.External {
		fmt.Fprintf(sb, "\ndeclare %s @%s(%s)", ret, fn.Name, strings.Join(params, ", "))
		if fn.Attrs != 0 {
			fmt.Fprintf(sb, " %s", fn.Attrs)
		}
		sb.WriteByte('\n')
		return
	}
	fmt.Fprintf(sb, "\ndefine %s @%s(%s) {\n", ret, fn.Name, strings.Join(params, ", "))
	for _, b := range fn.Blocks {
		fmt.Fprintf(sb, "bb%d:\n", b)
		for _, id := range d.p.Block(b).Instrs {
			fmt.Fprintf(sb, "  %s\n", d.instr(id))
		}
	}
	sb.WriteString("}\n")
}

func (d dumper) instr(id InstrID) string {
	in := d.p.Instr(id)
	if in == nil {
		return fmt.Sprintf("<bad instr %d>", id)
	}
	var sb strings.Builder
	if rt, ok := d.p.Types.Lookup(in.Type); ok && rt.Kind != types.KindVoid {
		fmt.Fprintf(&sb, "%%%d = ", id)
	}
	sb.WriteString(in.Op.String())
	if in.Flags&FlagNoUnsignedWrap != 0 {
		sb.WriteString(" nuw")
	}
	if in.Flags&FlagNoSignedWrap != 0 {
		sb.WriteString(" nsw")
	}
	switch in.Op {
	case OpCall:
		name := "?"
		if fn := d.p.Func(in.Callee); fn != nil {
			name = fn.Name
		}
		fmt.Fprintf(&sb, " %s @%s(%s)", d.p.Types.String(in.Type), name, d.values(in.Args))
	case OpRet, OpUnreachable:
		if len(in.Args) > 0 {
			fmt.Fprintf(&sb, " %s", d.values(in.Args))
		}
	default:
		if rt, ok := d.p.Types.Lookup(in.Type); ok && rt.Kind != types.KindVoid {
			fmt.Fprintf(&sb, " %s", d.p.Types.String(in.Type))
		}
		if len(in.Args) > 0 {
			fmt.Fprintf(&sb, " %s", d.values(in.Args))
		}
	}
	if in.Align != 0 {
		fmt.Fprintf(&sb, ", align %d", DecodeAlign(in.Align))
	}
	return sb.String()
}

func (d dumper) values(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = d.value(v)
	}
	return strings.Join(parts, ", ")
}

func (d dumper) value(v Value) string {
	switch v.Kind {
	case ValConst:
		return d.constant(ConstID(v.ID))
	case ValInstr:
		return fmt.Sprintf("%%%d", v.ID)
	case ValGlobal:
		if g := d.p.Global(GlobalID(v.ID)); g != nil {
			return "@" + g.Name
		}
	case ValFunc:
		if fn := d.p.Func(FuncID(v.ID)); fn != nil {
			return "@" + fn.Name
		}
	case ValBlock:
		return fmt.Sprintf("label bb%d", v.ID)
	case ValLiteral:
		return fmt.Sprintf("%d", v.ID)
	case ValNone:
		return "none"
	}
	return fmt.Sprintf("<bad %s %d>", v.Kind, v.ID)
}

func (d dumper) constant(id ConstID) string {
	c := d.p.Const(id)
	if c == nil {
		return fmt.Sprintf("<bad const %d>", id)
	}
	ty := d.p.Types.String(c.Type)
	switch c.Kind {
	case ConstInt:
		return fmt.Sprintf("%s %d", ty, c.Bits)
	case ConstFloat:
		if t, _ := d.p.Types.Lookup(c.Type); t.Width == types.Width32 {
			return fmt.Sprintf("%s %g", ty, math.Float32frombits(uint32(c.Bits)))
		}
		return fmt.Sprintf("%s %g", ty, math.Float64frombits(c.Bits))
	case ConstUndef:
		return ty + " undef"
	case ConstNull:
		return ty + " null"
	case ConstAggregate:
		return fmt.Sprintf("%s {%s}", ty, d.values(c.Elems))
	case ConstGEP:
		return fmt.Sprintf("%s getelementptr(%s)", ty, d.values(c.Elems))
	}
	return fmt.Sprintf("<const kind %s>", c.Kind)
}

func (d dumper) meta(n *MetaNode) string {
	switch n.Kind {
	case MetaString:
		return fmt.Sprintf("!%q", n.Str)
	case MetaValue:
		return d.value(n.Value)
	case MetaList:
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			if c == NoMetaID {
				parts[i] = "null"
				continue
			}
			parts[i] = fmt.Sprintf("!%d", c)
		}
		return "!{" + strings.Join(parts, ", ") + "}"
	}
	return "<bad meta>"
}
