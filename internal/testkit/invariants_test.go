package testkit_test

import (
	"testing"

	"ampcap/internal/container"
	"ampcap/internal/samples"
	"ampcap/internal/testkit"
)

func TestSamplesSatisfyInvariants(t *testing.T) {
	for _, kind := range []samples.PayloadKind{samples.PayloadBasic, samples.PayloadWide} {
		for _, sm := range []container.Version{{Major: 6, Minor: 5}, {Major: 6, Minor: 6}} {
			opts := samples.DefaultOptions()
			opts.Payload = kind
			opts.Version = sm
			opts.ExistingUAVs = []uint32{0, 1}
			blob, err := samples.Amplification(opts)
			if err != nil {
				t.Fatalf("%s sm%s: %v", kind, sm, err)
			}
			if err := testkit.CheckBlobInvariants(blob); err != nil {
				t.Errorf("%s sm%s: %v", kind, sm, err)
			}
		}
	}
}

func TestCheckBlobInvariantsRejectsGarbage(t *testing.T) {
	if err := testkit.CheckBlobInvariants([]byte("not a blob")); err == nil {
		t.Fatal("garbage accepted")
	}
}
