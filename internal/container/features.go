package container

import (
	"strings"

	"ampcap/internal/diag"
)

// Global shader feature flags.
const (
	FeatureDoubles          uint64 = 0x1
	FeatureRawBuffers       uint64 = 0x10
	FeatureWaveOps          uint64 = 0x4000
	FeatureInt64Ops         uint64 = 0x8000
	FeatureUAVsAtEveryStage uint64 = 0x10000
)

var featureNames = []struct {
	bit  uint64
	name string
}{
	{FeatureDoubles, "doubles"},
	{FeatureRawBuffers, "raw-buffers"},
	{FeatureWaveOps, "wave-ops"},
	{FeatureInt64Ops, "int64"},
	{FeatureUAVsAtEveryStage, "uavs-every-stage"},
}

// DecodeFeatures reads the feature chunk.
func DecodeFeatures(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, diag.Errorf(diag.BlobChunkLayout, diag.NoLocation.InChunk(ChunkFeatures.String()),
			"feature chunk is %d bytes, want 8", len(data))
	}
	return le.Uint64(data), nil
}

// EncodeFeatures writes the feature chunk.
func EncodeFeatures(flags uint64) []byte {
	return le.AppendUint64(nil, flags)
}

// FeatureString lists the known bits set in flags.
func FeatureString(flags uint64) string {
	var parts []string
	for _, f := range featureNames {
		if flags&f.bit != 0 {
			parts = append(parts, f.name)
			flags &^= f.bit
		}
	}
	if flags != 0 {
		parts = append(parts, "unknown")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}
