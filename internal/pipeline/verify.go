package pipeline

import (
	"bytes"
	"context"

	"ampcap/internal/capture"
	"ampcap/internal/diag"
	"ampcap/internal/layout"
	"ampcap/internal/payload"
	"ampcap/internal/sim"
	"ampcap/internal/trace"
)

// Verify runs the original program, the capturing program and the feeder on
// the reference executor and checks that every group of the replay
// dispatches what the original did.
func Verify(ctx context.Context, file string, src []byte, injected, feeder capture.Result, dims capture.Dispatch, space uint32) error {
	ctx, span := trace.Start(ctx, trace.ScopePass, "verify_replay")
	defer span.End("")

	orig, err := sim.Load(src, file)
	if err != nil {
		return err
	}
	want, err := orig.Run(ctx, sim.Config{Groups: dims})
	if err != nil {
		return err
	}

	buf := sim.NewBuffer(make([]byte, capture.RequiredBytes(dims, injected.PayloadSize)))
	buffers := map[sim.Key]*sim.Buffer{{Space: space, Register: capture.Register}: buf}
	capturing, err := sim.Load(injected.Blob, file)
	if err != nil {
		return err
	}
	captured, err := capturing.Run(ctx, sim.Config{Groups: dims, Buffers: buffers})
	if err != nil {
		return err
	}
	for _, d := range captured {
		if d.Dims != [3]uint32{} {
			return diag.Errorf(diag.SimMismatch, diag.At(file),
				"capturing program launched %v mesh groups from group %v", d.Dims, d.Group)
		}
	}

	replayer, err := sim.Load(feeder.Blob, file)
	if err != nil {
		return err
	}
	got, err := replayer.Run(ctx, sim.Config{Groups: dims, Buffers: buffers})
	if err != nil {
		return err
	}
	return compareDispatches(file, orig, want, replayer, got)
}

func compareDispatches(file string, orig *sim.Program, want []sim.Dispatch, replay *sim.Program, got []sim.Dispatch) error {
	if len(want) != len(got) {
		return diag.Errorf(diag.SimMismatch, diag.At(file), "%d groups replayed, %d recorded", len(got), len(want))
	}
	if len(want) == 0 {
		return nil
	}
	leaves, err := payload.Leaves(orig.Types(), want[0].PayloadType)
	if err != nil {
		return diag.Errorf(diag.CpyUnsupportedLeaf, diag.At(file), "%w", err)
	}
	origLayout := layout.New(layout.GroupShared(), orig.Types())
	replayLayout := layout.New(layout.GroupShared(), replay.Types())
	for i := range want {
		w, g := want[i], got[i]
		if w.Dims != g.Dims {
			return diag.Errorf(diag.SimMismatch, diag.At(file), "group %v dispatched %v, replay dispatched %v", w.Group, w.Dims, g.Dims)
		}
		for _, leaf := range leaves {
			a, err := leafBytes(origLayout, w, leaf)
			if err != nil {
				return diag.Errorf(diag.SimMismatch, diag.At(file), "%w", err)
			}
			b, err := leafBytes(replayLayout, g, leaf)
			if err != nil {
				return diag.Errorf(diag.SimMismatch, diag.At(file), "%w", err)
			}
			if !bytes.Equal(a, b) {
				return diag.Errorf(diag.SimMismatch, diag.At(file),
					"group %v payload leaf %v: recorded %x, replayed %x", w.Group, leaf.Path, a, b)
			}
		}
	}
	return nil
}

// leafBytes returns the bytes of leaf inside a dispatched payload.
func leafBytes(lay *layout.LayoutEngine, d sim.Dispatch, leaf payload.Leaf) ([]byte, error) {
	path := make([]uint64, 0, len(leaf.Path)+1)
	path = append(path, 0)
	for _, idx := range leaf.Path {
		path = append(path, uint64(idx))
	}
	off, _, err := lay.OffsetOf(d.PayloadType, path)
	if err != nil {
		return nil, err
	}
	end := off + int(leaf.Bytes())
	if end > len(d.Payload) {
		return nil, diag.Errorf(diag.SimMismatch, diag.NoLocation, "leaf %v ends past the payload", leaf.Path)
	}
	return d.Payload[off:end], nil
}
