package sim_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"ampcap/internal/capture"
	"ampcap/internal/diag"
	"ampcap/internal/samples"
	"ampcap/internal/sim"
)

func load(t *testing.T, blob []byte) *sim.Program {
	t.Helper()
	p, err := sim.Load(blob, "test.sxbc")
	require.NoError(t, err)
	return p
}

func TestRunSample(t *testing.T) {
	blob, err := samples.Amplification(samples.DefaultOptions())
	require.NoError(t, err)
	p := load(t, blob)
	require.Equal(t, [3]uint32{4, 1, 1}, p.NumThreads())
	require.Equal(t, "main", p.Name())

	out, err := p.Run(context.Background(), sim.Config{Groups: [3]uint32{2, 2, 1}, Workers: 2})
	require.NoError(t, err)
	require.Len(t, out, 4)

	le := func(b []byte) uint32 { return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24 }
	for i, d := range out {
		gx, gy := uint32(i%2), uint32(i/2)
		require.Equal(t, [3]uint32{gx, gy, 0}, d.Group)
		require.Equal(t, [3]uint32{gx + 1, gy + 1, 2}, d.Dims)
		require.Len(t, d.Payload, 12)

		// leaf 0 is written by thread 0, leaf 1 by thread 1
		seed := gx*7919 + gy*104729
		salt0 := uint32(0x9E3779B1)
		salt1 := uint32(2 * uint64(0x9E3779B1) & math.MaxUint32)
		a := float32(seed+salt0) + 0.5
		require.Equal(t, math.Float32bits(a), le(d.Payload[0:4]))
		require.Equal(t, seed+31+salt1, le(d.Payload[4:8]))
	}
}

func TestRunFaults(t *testing.T) {
	ctx := context.Background()
	src, err := samples.Amplification(samples.DefaultOptions())
	require.NoError(t, err)

	t.Run("step limit", func(t *testing.T) {
		_, err := load(t, src).Run(ctx, sim.Config{Groups: [3]uint32{1, 1, 1}, StepLimit: 3})
		code, ok := diag.CodeOf(err)
		require.True(t, ok)
		require.Equal(t, diag.SimFault, code)
	})
	t.Run("unbound buffer", func(t *testing.T) {
		dims := capture.Dispatch{1, 1, 1}
		res, err := capture.InjectPayloadStores(ctx, src, capture.Options{Dispatch: dims})
		require.NoError(t, err)
		_, err = load(t, res.Blob).Run(ctx, sim.Config{Groups: dims})
		code, ok := diag.CodeOf(err)
		require.True(t, ok)
		require.Equal(t, diag.SimFault, code)
	})
	t.Run("empty grid", func(t *testing.T) {
		_, err := load(t, src).Run(ctx, sim.Config{Groups: [3]uint32{0, 1, 1}})
		require.Error(t, err)
	})
}

func TestBufferBounds(t *testing.T) {
	data := make([]byte, 8)
	b := sim.NewBuffer(data)
	require.Len(t, b.Bytes(), 8)
	data[0] = 1
	require.EqualValues(t, 1, b.Bytes()[0], "the buffer aliases its backing slice")
}
