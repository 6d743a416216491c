package sim

import (
	"fmt"

	"ampcap/internal/diag"
	"ampcap/internal/ir"
	"ampcap/internal/layout"
)

// group runs the threads of one workgroup.
type group struct {
	p      *Program
	cfg    Config
	id     [3]uint32
	lay    *layout.LayoutEngine
	frames []*Frame
	shared map[ir.GlobalID][]byte
	consts map[ir.ConstID]Value

	dispatched bool
	dispatch   Dispatch
}

func newGroup(p *Program, cfg Config, id [3]uint32) *group {
	g := &group{
		p:      p,
		cfg:    cfg,
		id:     id,
		lay:    layout.New(layout.GroupShared(), p.prog.Types),
		shared: make(map[ir.GlobalID][]byte),
		consts: make(map[ir.ConstID]Value),
	}
	n := p.threads[0] * p.threads[1] * p.threads[2]
	g.frames = make([]*Frame, n)
	for tid := range n {
		g.frames[tid] = newFrame(tid, p.threads)
	}
	return g
}

func (g *group) loc(f *Frame) diag.Location {
	return diag.At(g.p.file).InFunc(g.p.name).InBlock(int32(f.Block)).AtInstr(int32(f.IP)) //nolint:gosec // small
}

func (g *group) fault(f *Frame, code diag.Code, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return diag.Errorf(code, g.loc(f), "group %v thread %d: %s", g.id, f.TID, msg)
}

// run schedules the threads until all of them return.
func (g *group) run() (Dispatch, error) {
	for {
		for _, f := range g.frames {
			if f.state != stateRunning {
				continue
			}
			if err := g.exec(f); err != nil {
				return Dispatch{}, err
			}
		}

		var live, barrier int
		for _, f := range g.frames {
			if !f.live() {
				continue
			}
			live++
			if f.state == stateBarrier {
				barrier++
			}
		}
		switch {
		case live == 0:
			if !g.dispatched {
				return Dispatch{}, diag.Errorf(diag.SimFault, diag.At(g.p.file).InFunc(g.p.name),
					"group %v returned without dispatching", g.id)
			}
			return g.dispatch, nil
		case barrier > 0:
			g.release(stateBarrier)
		default:
			if err := g.dispatchMesh(); err != nil {
				return Dispatch{}, err
			}
			g.release(stateDispatch)
		}
	}
}

func (g *group) release(state frameState) {
	for _, f := range g.frames {
		if f.state == state {
			f.state = stateRunning
			f.IP++
		}
	}
}

// dispatchMesh performs the collective dispatch with the operands of the
// lowest parked thread.
func (g *group) dispatchMesh() error {
	var f *Frame
	for _, cand := range g.frames {
		if cand.state == stateDispatch {
			f = cand
			break
		}
	}
	if g.dispatched {
		return g.fault(f, diag.SimFault, "dispatched twice")
	}
	in := g.current(f)
	if len(in.Args) != 5 {
		return g.fault(f, diag.SimFault, "dispatch has %d operands", len(in.Args))
	}
	d := Dispatch{Group: g.id}
	for i := range 3 {
		v, err := g.operand(f, in.Args[i+1])
		if err != nil {
			return err
		}
		d.Dims[i] = uint32(v.Bits) //nolint:gosec // i32 operand
	}
	ptr, err := g.operand(f, in.Args[4])
	if err != nil {
		return err
	}
	if ptr.Ptr == nil {
		return g.fault(f, diag.SimFault, "dispatch payload is not an address")
	}
	mem, err := g.memory(f, ptr.Ptr.Global)
	if err != nil {
		return err
	}
	d.Payload = append([]byte(nil), mem...)
	d.PayloadType = g.p.prog.Types.MustLookup(g.p.prog.Global(ptr.Ptr.Global).Type).Elem
	g.dispatch, g.dispatched = d, true
	return nil
}

// memory returns the backing bytes of a groupshared global.
func (g *group) memory(f *Frame, id ir.GlobalID) ([]byte, error) {
	if mem, ok := g.shared[id]; ok {
		return mem, nil
	}
	gl := g.p.prog.Global(id)
	if gl == nil {
		return nil, g.fault(f, diag.SimFault, "unknown global %d", id)
	}
	elem := g.p.prog.Types.MustLookup(gl.Type).Elem
	size, err := g.lay.SizeOf(elem)
	if err != nil {
		return nil, g.fault(f, diag.SimUnsupported, "global @%s: %v", gl.Name, err)
	}
	mem := make([]byte, size)
	g.shared[id] = mem
	return mem, nil
}

func (g *group) current(f *Frame) *ir.Instr {
	fn := g.p.prog.Func(g.p.entry)
	if f.Block >= len(fn.Blocks) {
		return nil
	}
	blk := g.p.prog.Block(fn.Blocks[f.Block])
	if f.IP >= len(blk.Instrs) {
		return nil
	}
	return g.p.prog.Instr(blk.Instrs[f.IP])
}
