package fuzztests

import (
	"testing"

	"ampcap/internal/container"
	"ampcap/internal/samples"
)

const (
	maxSeedBytes = 64 << 10 // 64 KiB, ограничение для тестового корпуса
)

// addSampleSeeds adds every sample variant plus a few broken blobs.
func addSampleSeeds(f *testing.F) {
	for _, kind := range []samples.PayloadKind{samples.PayloadBasic, samples.PayloadWide} {
		for _, sm := range []container.Version{{Major: 6, Minor: 5}, {Major: 6, Minor: 6}} {
			opts := samples.DefaultOptions()
			opts.Payload = kind
			opts.Version = sm
			opts.ExistingUAVs = []uint32{0}
			blob, err := samples.Amplification(opts)
			if err != nil {
				f.Fatalf("sample %s sm%s: %v", kind, sm, err)
			}
			f.Add(clampSeed(blob))
			// обрезанный блоб должен давать ошибку, а не панику
			f.Add(clampSeed(blob[:len(blob)/2]))
		}
	}
	f.Add([]byte{})
	f.Add([]byte("SXBC"))
}

func clampSeed(src []byte) []byte {
	if len(src) <= maxSeedBytes {
		return append([]byte(nil), src...)
	}
	return append([]byte(nil), src[:maxSeedBytes]...)
}
