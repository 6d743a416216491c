package editor

import (
	"fmt"

	"ampcap/internal/container"
	"ampcap/internal/trace"
)

// PipelineState returns the decoded pipeline state chunk. Changes made through
// the returned value are written by Finish only after a setter marked it
// dirty.
func (e *Editor) PipelineState() (*container.PipelineState, error) {
	if e.psv != nil {
		return e.psv, nil
	}
	data, err := e.cont.MustChunk(container.ChunkPipeline)
	if err != nil {
		return nil, e.fail(err)
	}
	ps, err := container.DecodePipelineState(data)
	if err != nil {
		return nil, e.fail(err)
	}
	e.psv = ps
	return ps, nil
}

// SetNumThreads sets the workgroup size in the amplification tag and the
// pipeline state.
func (e *Editor) SetNumThreads(x, y, z uint32) error {
	amp, err := e.AmplificationTag()
	if err != nil {
		return err
	}
	ps, err := e.PipelineState()
	if err != nil {
		return err
	}
	amp.NumThreads = [3]uint32{x, y, z}
	if err := e.writeAmplificationTag(amp); err != nil {
		return err
	}
	ps.NumThreads = amp.NumThreads
	e.psvDirty = true
	trace.Point(e.ctx, trace.ScopeEdit, "num_threads", fmt.Sprintf("%d,%d,%d", x, y, z))
	return nil
}

// SetPayloadSize sets the payload size in the amplification tag and the
// pipeline state.
func (e *Editor) SetPayloadSize(size uint32) error {
	amp, err := e.AmplificationTag()
	if err != nil {
		return err
	}
	ps, err := e.PipelineState()
	if err != nil {
		return err
	}
	amp.PayloadSize = size
	if err := e.writeAmplificationTag(amp); err != nil {
		return err
	}
	ps.PayloadSize = size
	e.psvDirty = true
	trace.Point(e.ctx, trace.ScopeEdit, "payload_size", fmt.Sprint(size))
	return nil
}

// Features returns the feature chunk flags and whether the chunk exists.
func (e *Editor) Features() (uint64, bool, error) {
	if e.featuresDirty {
		return e.features, true, nil
	}
	data, ok := e.cont.Chunk(container.ChunkFeatures)
	if !ok {
		return 0, false, nil
	}
	flags, err := container.DecodeFeatures(data)
	if err != nil {
		return 0, true, e.fail(err)
	}
	return flags, true, nil
}

// PatchFeatures rewrites the feature chunk flags. A blob without the chunk is
// left alone.
func (e *Editor) PatchFeatures(patch func(uint64) uint64) error {
	cur, ok, err := e.Features()
	if err != nil || !ok {
		return err
	}
	e.features = patch(cur)
	e.featuresDirty = true
	trace.Point(e.ctx, trace.ScopeEdit, "features", container.FeatureString(e.features))
	return nil
}
