package sim

import "ampcap/internal/ir"

type frameState uint8

const (
	stateRunning frameState = iota
	stateBarrier
	stateDispatch
	stateDone
)

// Frame is the execution state of one thread.
type Frame struct {
	TID   uint32
	Local [3]uint32
	Block int // index into the entry function blocks
	IP    int // index into the block instructions
	Steps int

	state  frameState
	values map[ir.InstrID]Value
}

func newFrame(tid uint32, threads [3]uint32) *Frame {
	return &Frame{
		TID: tid,
		Local: [3]uint32{
			tid % threads[0],
			tid / threads[0] % threads[1],
			tid / (threads[0] * threads[1]),
		},
		values: make(map[ir.InstrID]Value),
	}
}

func (f *Frame) live() bool { return f.state != stateDone }
