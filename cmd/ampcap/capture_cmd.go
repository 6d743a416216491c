package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"ampcap/internal/capture"
	"ampcap/internal/diag"
	"ampcap/internal/pipeline"
	"ampcap/internal/trace"
)

type passFunc func(ctx context.Context, blob []byte, opts capture.Options) (capture.Result, error)

var injectCmd = &cobra.Command{
	Use:   "inject [flags] <blob>",
	Short: "Rewrite a blob to record every group's dispatch payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPass(cmd, args[0], "capture", capture.InjectPayloadStores)
	},
}

var feederCmd = &cobra.Command{
	Use:   "feeder [flags] <blob>",
	Short: "Synthesize a one-thread blob that replays recorded payloads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPass(cmd, args[0], "feeder", capture.SynthesizeFeeder)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{injectCmd, feederCmd} {
		addCaptureFlags(cmd)
		cmd.Flags().StringP("output", "o", "", "output file (default: <stem>.<kind>.sxbc in [output].dir or next to the input)")
	}
}

func addCaptureFlags(cmd *cobra.Command) {
	cmd.Flags().String("dispatch", "", "group counts of the captured dispatch as x,y,z")
	cmd.Flags().Uint32("space", 0, "register space of the capture buffer")
}

// captureSettings merges the capture flags over the config.
func captureSettings(cmd *cobra.Command) (capture.Dispatch, uint32, error) {
	dims := cfg.dispatch()
	if cmd.Flags().Changed("dispatch") {
		raw, err := cmd.Flags().GetString("dispatch")
		if err != nil {
			return dims, 0, err
		}
		if dims, err = parseTriple(raw); err != nil {
			return dims, 0, fmt.Errorf("--dispatch: %w", err)
		}
	}
	space := cfg.Capture.Space
	if cmd.Flags().Changed("space") {
		var err error
		if space, err = cmd.Flags().GetUint32("space"); err != nil {
			return dims, 0, err
		}
	}
	if _, err := dims.Groups(); err != nil {
		return dims, 0, err
	}
	return dims, space, nil
}

// parseTriple reads "x,y,z".
func parseTriple(s string) ([3]uint32, error) {
	var out [3]uint32
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return out, fmt.Errorf("want x,y,z, got %q", s)
	}
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return out, fmt.Errorf("component %d of %q: %w", i, s, err)
		}
		out[i] = uint32(n)
	}
	return out, nil
}

func runPass(cmd *cobra.Command, file, kind string, fn passFunc) error {
	dims, space, err := captureSettings(cmd)
	if err != nil {
		return err
	}
	maxDiags, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return err
	}
	out, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	if out == "" {
		out = pipeline.OutputPath(cfg.Output.Dir, file, kind)
	}

	ctx, span := trace.Start(trace.WithFile(cmd.Context(), file), trace.ScopeCommand, kind)
	defer span.End("")

	var blob []byte
	if err := timer.Measure("read", func() error {
		blob, err = os.ReadFile(file)
		return err
	}); err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	bag := diag.NewBag(maxDiags)
	opts := capture.Options{
		Binding:  capture.Binding{Space: space},
		Dispatch: dims,
		File:     file,
		Reporter: diag.NewDedupReporter(diag.BagReporter{Bag: bag}),
	}
	var res capture.Result
	passErr := timer.Measure(kind, func() error {
		res, err = fn(ctx, blob, opts)
		return err
	})
	if passErr != nil {
		diag.ReportErr(opts.Reporter, diag.CapUnavailable, passErr)
	}
	printDiagnostics(cmd.ErrOrStderr(), bag)
	if passErr != nil {
		return fmt.Errorf("%s: capture unavailable", file)
	}

	if err := timer.Measure("write", func() error {
		if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
			return err
		}
		return os.WriteFile(out, res.Blob, 0o600)
	}); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	if quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet"); !quiet {
		printResult(cmd.OutOrStdout(), out, res, dims)
	}
	return nil
}

func printResult(w io.Writer, out string, res capture.Result, dims capture.Dispatch) {
	p := message.NewPrinter(language.English)
	groups, _ := dims.Groups()
	p.Fprintf(w, "%s %s: payload %d bytes (%d packed), slot u%d\n",
		color.GreenString("wrote"), out, res.PayloadSize, res.PackedSize, res.Slot)
	p.Fprintf(w, "capture buffer: %d groups x %d bytes = %d bytes\n",
		groups, res.Stride, capture.RequiredBytes(dims, res.PayloadSize))
}

func printDiagnostics(w io.Writer, bag *diag.Bag) {
	if bag == nil || bag.Len() == 0 {
		return
	}
	for _, line := range strings.Split(diag.FormatShort(bag.Items(), true), "\n") {
		switch {
		case strings.HasPrefix(line, "error"):
			line = color.RedString("%s", line)
		case strings.HasPrefix(line, "warning"):
			line = color.YellowString("%s", line)
		}
		fmt.Fprintln(w, line)
	}
}
