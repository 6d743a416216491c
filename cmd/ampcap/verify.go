package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"ampcap/internal/pipeline"
	"ampcap/internal/trace"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [flags] <blob>...",
	Short: "Run both passes over blobs and replay the captures",
	Long: `verify runs inject and feeder over every blob, executes the original, the capture
and the feeder programs on the reference executor and compares the payloads they
dispatch. Outputs are written only with --write.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

func init() {
	addCaptureFlags(verifyCmd)
	verifyCmd.Flags().Bool("write", false, "write the rewritten blobs")
	verifyCmd.Flags().String("out-dir", "", "directory for written blobs (default: [output].dir or next to the input)")
	verifyCmd.Flags().Bool("no-replay", false, "skip the replay check")
}

func runVerify(cmd *cobra.Command, args []string) error {
	dims, space, err := captureSettings(cmd)
	if err != nil {
		return err
	}
	root := cmd.Root().PersistentFlags()
	jobs, err := root.GetInt("jobs")
	if err != nil {
		return err
	}
	maxDiags, err := root.GetInt("max-diagnostics")
	if err != nil {
		return err
	}
	quiet, err := root.GetBool("quiet")
	if err != nil {
		return err
	}
	write, err := cmd.Flags().GetBool("write")
	if err != nil {
		return err
	}
	noReplay, err := cmd.Flags().GetBool("no-replay")
	if err != nil {
		return err
	}
	outDir := cfg.Output.Dir
	if cmd.Flags().Changed("out-dir") {
		if outDir, err = cmd.Flags().GetString("out-dir"); err != nil {
			return err
		}
	}

	req := &pipeline.Request{
		Files:          args,
		OutDir:         outDir,
		Dispatch:       dims,
		Space:          space,
		Verify:         !noReplay,
		DryRun:         !write,
		Jobs:           jobs,
		MaxDiagnostics: maxDiags,
	}

	ctx, span := trace.Start(cmd.Context(), trace.ScopeCommand, "verify")
	defer span.End("")

	var results []pipeline.FileResult
	err = timer.Measure("verify", func() error {
		var runErr error
		switch {
		case quiet:
			results, runErr = pipeline.Run(ctx, req)
		case isTerminal(os.Stdout):
			results, runErr = runBatchWithUI(ctx, "ampcap verify", req)
		default:
			req.Progress = &pipeline.LineSink{W: cmd.OutOrStdout()}
			results, runErr = pipeline.Run(ctx, req)
		}
		return runErr
	})
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		printDiagnostics(cmd.ErrOrStderr(), r.Diags)
		if !r.Ok() {
			failed++
		}
	}
	if !quiet {
		printBatchSummary(cmd.OutOrStdout(), results, failed)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d blobs failed", failed, len(results))
	}
	return nil
}

func printBatchSummary(w io.Writer, results []pipeline.FileResult, failed int) {
	p := message.NewPrinter(language.English)
	var bytes int
	for _, r := range results {
		bytes += len(r.Inject.Blob) + len(r.Feeder.Blob)
	}
	status := color.GreenString("ok")
	if failed > 0 {
		status = color.RedString("failed")
	}
	p.Fprintf(w, "%s: %d blobs, %d failed, %d bytes rewritten\n", status, len(results), failed, bytes)
}
