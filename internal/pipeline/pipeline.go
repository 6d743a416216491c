// Package pipeline runs the capture passes over a batch of blobs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ampcap/internal/capture"
	"ampcap/internal/container"
	"ampcap/internal/diag"
	"ampcap/internal/trace"
)

// Request configures a batch.
type Request struct {
	Files []string
	// OutDir receives <name>.capture.sxbc and <name>.feeder.sxbc; empty
	// writes next to the input.
	OutDir string
	// Dispatch and Space configure the passes.
	Dispatch capture.Dispatch
	Space    uint32
	// Verify replays every capture on the reference executor.
	Verify bool
	// DryRun skips writing.
	DryRun bool
	// Jobs bounds concurrently processed files; 0 means GOMAXPROCS.
	Jobs int
	// MaxDiagnostics bounds the diagnostics kept per file.
	MaxDiagnostics int
	Progress       ProgressSink
}

// FileResult is the outcome of one file. A non-nil Err means capture is
// unavailable for the file.
type FileResult struct {
	File       string
	Stage      Stage
	Err        error
	Inject     capture.Result
	Feeder     capture.Result
	InjectPath string
	FeederPath string
	Diags      *diag.Bag
	Timings    Timings
}

// Ok reports whether capture is available.
func (r FileResult) Ok() bool { return r.Err == nil }

// Run processes every file of req. Failures of single files are recorded in
// their results; only cancellation fails the batch.
func Run(ctx context.Context, req *Request) ([]FileResult, error) {
	if req == nil {
		return nil, fmt.Errorf("missing pipeline request")
	}
	if _, err := req.Dispatch.Groups(); err != nil {
		return nil, err
	}
	ctx, span := trace.Start(ctx, trace.ScopePass, "pipeline")
	defer span.End("")
	span.WithExtra("files", fmt.Sprint(len(req.Files)))

	jobs := req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	maxDiags := req.MaxDiagnostics
	if maxDiags <= 0 {
		maxDiags = 100
	}

	for _, file := range req.Files {
		emit(req.Progress, file, StageParse, StatusQueued, nil)
	}

	results := make([]FileResult, len(req.Files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, file := range req.Files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = processFile(gctx, req, file, maxDiags)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func processFile(ctx context.Context, req *Request, file string, maxDiags int) FileResult {
	ctx, span := trace.Start(trace.WithFile(ctx, file), trace.ScopeEdit, "process_file")
	defer span.End("")

	res := FileResult{File: file, Diags: diag.NewBag(maxDiags)}
	opts := capture.Options{
		Binding:  capture.Binding{Space: req.Space},
		Dispatch: req.Dispatch,
		File:     file,
		Reporter: diag.NewDedupReporter(diag.BagReporter{Bag: res.Diags}),
	}

	stage := func(st Stage, fn func() error) bool {
		if res.Err != nil {
			return false
		}
		emit(req.Progress, file, st, StatusWorking, nil)
		start := time.Now()
		err := fn()
		res.Timings.Set(st, time.Since(start))
		if err != nil {
			res.Stage, res.Err = st, err
			// passes report their own errors; the dedup reporter drops repeats
			diag.ReportErr(opts.Reporter, diag.CapUnavailable, err)
			emit(req.Progress, file, st, StatusError, err)
			return false
		}
		return true
	}

	var src []byte
	stage(StageParse, func() error {
		b, err := os.ReadFile(file)
		if err != nil {
			return diag.Errorf(diag.IOLoadFileError, diag.At(file), "%w", err)
		}
		if _, err := container.Decode(b); err != nil {
			return err
		}
		src = b
		return nil
	})
	stage(StageInject, func() error {
		r, err := capture.InjectPayloadStores(ctx, src, opts)
		res.Inject = r
		return err
	})
	stage(StageFeeder, func() error {
		r, err := capture.SynthesizeFeeder(ctx, src, opts)
		res.Feeder = r
		return err
	})
	if req.Verify {
		stage(StageVerify, func() error {
			return Verify(ctx, file, src, res.Inject, res.Feeder, req.Dispatch, req.Space)
		})
	}
	if !req.DryRun {
		stage(StageWrite, func() error {
			res.InjectPath = OutputPath(req.OutDir, file, "capture")
			res.FeederPath = OutputPath(req.OutDir, file, "feeder")
			return errors.Join(
				writeBlob(res.InjectPath, res.Inject.Blob),
				writeBlob(res.FeederPath, res.Feeder.Blob),
			)
		})
	}
	if res.Err == nil {
		emit(req.Progress, file, StageWrite, StatusDone, nil)
	}
	return res
}

// OutputPath derives <dir>/<stem>.<kind>.sxbc from an input path.
func OutputPath(dir, file, kind string) string {
	base := filepath.Base(file)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if dir == "" {
		dir = filepath.Dir(file)
	}
	return filepath.Join(dir, stem+"."+kind+".sxbc")
}

func writeBlob(path string, blob []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return diag.Errorf(diag.IOWriteFileError, diag.At(path), "failed to create output dir: %w", err)
	}
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		return diag.Errorf(diag.IOWriteFileError, diag.At(path), "failed to write output: %w", err)
	}
	return nil
}
