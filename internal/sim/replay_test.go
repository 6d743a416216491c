package sim_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"ampcap/internal/capture"
	"ampcap/internal/container"
	"ampcap/internal/layout"
	"ampcap/internal/payload"
	"ampcap/internal/samples"
	"ampcap/internal/sim"
)

func leafBytes(t *testing.T, p *sim.Program, d sim.Dispatch, leaf payload.Leaf) []byte {
	t.Helper()
	path := make([]uint64, 0, len(leaf.Path)+1)
	path = append(path, 0)
	for _, idx := range leaf.Path {
		path = append(path, uint64(idx))
	}
	off, _, err := layout.New(layout.GroupShared(), p.Types()).OffsetOf(d.PayloadType, path)
	require.NoError(t, err)
	return d.Payload[off : off+int(leaf.Bytes())]
}

// TestCaptureReplay runs a sample, captures its payloads, replays them with
// the feeder and checks that every group dispatches the same dimensions with
// the same payload leaves.
func TestCaptureReplay(t *testing.T) {
	ctx := context.Background()
	versions := []container.Version{{Major: 6, Minor: 5}, {Major: 6, Minor: 7}}
	kinds := []samples.PayloadKind{samples.PayloadBasic, samples.PayloadWide}
	dims := capture.Dispatch{3, 2, 2}
	key := sim.Key{Space: 9, Register: capture.Register}
	opts := capture.Options{Binding: capture.Binding{Space: 9}, Dispatch: dims}

	for _, v := range versions {
		for _, kind := range kinds {
			t.Run(fmt.Sprintf("%s/%s", v, kind), func(t *testing.T) {
				so := samples.DefaultOptions()
				so.Version = v
				so.Payload = kind
				so.NumThreads = [3]uint32{2, 2, 1}
				so.ExistingUAVs = []uint32{0}
				src, err := samples.Amplification(so)
				require.NoError(t, err)

				orig := load(t, src)
				want, err := orig.Run(ctx, sim.Config{Groups: dims})
				require.NoError(t, err)
				leaves, err := payload.Leaves(orig.Types(), want[0].PayloadType)
				require.NoError(t, err)

				inj, err := capture.InjectPayloadStores(ctx, src, opts)
				require.NoError(t, err)
				buf := sim.NewBuffer(make([]byte, capture.RequiredBytes(dims, inj.PayloadSize)))
				buffers := map[sim.Key]*sim.Buffer{key: buf}
				captured, err := load(t, inj.Blob).Run(ctx, sim.Config{Groups: dims, Buffers: buffers})
				require.NoError(t, err)
				for _, d := range captured {
					require.Equal(t, [3]uint32{}, d.Dims, "capturing program must not launch mesh groups")
				}

				recs, err := capture.DecodeRecords(buf.Bytes(), dims, inj.PayloadSize)
				require.NoError(t, err)
				require.Len(t, recs, len(want))
				for i, rec := range recs {
					require.Equal(t, want[i].Group, rec.Group)
					require.Equal(t, want[i].Dims, rec.Dims)
					var packed []byte
					for _, leaf := range leaves {
						packed = append(packed, leafBytes(t, orig, want[i], leaf)...)
					}
					require.True(t, bytes.Equal(packed, rec.Payload[:len(packed)]), "group %v record", rec.Group)
				}

				feeder, err := capture.SynthesizeFeeder(ctx, src, opts)
				require.NoError(t, err)
				fp := load(t, feeder.Blob)
				require.Equal(t, [3]uint32{1, 1, 1}, fp.NumThreads())
				replayed, err := fp.Run(ctx, sim.Config{Groups: dims, Buffers: buffers})
				require.NoError(t, err)
				require.Len(t, replayed, len(want))
				for i := range want {
					require.Equal(t, want[i].Dims, replayed[i].Dims, "group %v", want[i].Group)
					for _, leaf := range leaves {
						require.Equal(t,
							leafBytes(t, orig, want[i], leaf),
							leafBytes(t, fp, replayed[i], leaf),
							"group %v leaf %v", want[i].Group, leaf.Path)
					}
				}
			})
		}
	}
}
