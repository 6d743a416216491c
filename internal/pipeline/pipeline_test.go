package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"ampcap/internal/capture"
	"ampcap/internal/container"
	"ampcap/internal/diag"
	"ampcap/internal/pipeline"
	"ampcap/internal/samples"
)

type recordSink struct {
	mu     sync.Mutex
	events []pipeline.Event
}

func (s *recordSink) OnEvent(ev pipeline.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordSink) final(file string) pipeline.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last pipeline.Status
	for _, ev := range s.events {
		if ev.File == file {
			last = ev.Status
		}
	}
	return last
}

func writeSample(t *testing.T, dir, name string, mutate func(*samples.Options)) string {
	t.Helper()
	opts := samples.DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	blob, err := samples.Amplification(opts)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, blob, 0o600))
	return path
}

func TestRunBatch(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	basic := writeSample(t, dir, "basic.sxbc", nil)
	wide := writeSample(t, dir, "wide.sxbc", func(o *samples.Options) {
		o.Payload = samples.PayloadWide
		o.Version = container.Version{Major: 6, Minor: 6}
	})
	broken := filepath.Join(dir, "broken.sxbc")
	require.NoError(t, os.WriteFile(broken, []byte("definitely not a shader blob"), 0o600))

	sink := &recordSink{}
	results, err := pipeline.Run(context.Background(), &pipeline.Request{
		Files:    []string{basic, wide, broken},
		OutDir:   out,
		Dispatch: capture.Dispatch{2, 2, 1},
		Space:    5,
		Verify:   true,
		Jobs:     2,
		Progress: sink,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	for _, res := range results[:2] {
		require.True(t, res.Ok(), "%s: %v", res.File, res.Err)
		require.Equal(t, pipeline.StatusDone, sink.final(res.File))
		for _, path := range []string{res.InjectPath, res.FeederPath} {
			require.Equal(t, out, filepath.Dir(path))
			blob, err := os.ReadFile(path)
			require.NoError(t, err)
			_, err = container.Decode(blob)
			require.NoError(t, err)
		}
		require.True(t, res.Timings.Has(pipeline.StageVerify))
	}
	require.Equal(t, filepath.Join(out, "basic.capture.sxbc"), results[0].InjectPath)
	require.Equal(t, filepath.Join(out, "wide.feeder.sxbc"), results[1].FeederPath)

	bad := results[2]
	require.False(t, bad.Ok())
	require.Equal(t, pipeline.StageParse, bad.Stage)
	require.Equal(t, pipeline.StatusError, sink.final(broken))
	require.True(t, bad.Diags.HasErrors())
	code, ok := diag.CodeOf(bad.Err)
	require.True(t, ok)
	require.Equal(t, diag.BlobBadMagic, code)
}

func TestRunDryRun(t *testing.T) {
	dir := t.TempDir()
	path := writeSample(t, dir, "basic.sxbc", nil)
	results, err := pipeline.Run(context.Background(), &pipeline.Request{
		Files:    []string{path},
		Dispatch: capture.Dispatch{1, 1, 1},
		DryRun:   true,
	})
	require.NoError(t, err)
	require.True(t, results[0].Ok())
	require.Empty(t, results[0].InjectPath)
	require.NotEmpty(t, results[0].Feeder.Blob)
	_, err = os.Stat(filepath.Join(dir, "basic.capture.sxbc"))
	require.True(t, os.IsNotExist(err))

	_, err = pipeline.Run(context.Background(), &pipeline.Request{
		Files:    []string{path},
		Dispatch: capture.Dispatch{0, 1, 1},
	})
	require.Error(t, err)
}
