package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ampcap/internal/observ"
	"ampcap/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "ampcap",
	Short: "Capture and replay amplification shader payloads",
	Long: `ampcap rewrites amplification shader blobs: "inject" builds a program that records
every group's dispatch payload into a buffer, "feeder" builds a one-thread program that
replays a recorded payload.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setupCommand,
	PersistentPostRunE: teardownCommand,
}

// main registers subcommands and persistent flags and executes the root
// command. Any error exits with status 1.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(injectCmd)
	rootCmd.AddCommand(feederCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	flags := rootCmd.PersistentFlags()
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.Bool("quiet", false, "suppress non-essential output")
	flags.Bool("timings", false, "show timing information")
	flags.Int("jobs", 0, "blobs processed at once (0 = GOMAXPROCS)")
	flags.Int("max-diagnostics", 100, "maximum number of diagnostics to show")
	flags.String("config", "", "config file (default: nearest ampcap.toml)")

	flags.String("trace", "", "trace output file (\"-\" for stderr)")
	flags.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	flags.Int("trace-ring-size", 4096, "events kept in ring mode")

	flags.String("cpu-profile", "", "write a CPU profile to file")
	flags.String("mem-profile", "", "write a heap profile to file")
	flags.String("runtime-trace", "", "write a runtime trace to file")

	err := rootCmd.ExecuteContext(context.Background())
	// PersistentPostRunE is skipped when a command fails
	runCleanups()
	if err != nil {
		os.Exit(1)
	}
}

// state of the running command, set up by setupCommand.
var (
	cfg      config
	timer    = observ.NewTimer()
	cleanups []func()
)

func setupCommand(cmd *cobra.Command, _ []string) error {
	flags := cmd.Root().PersistentFlags()
	mode, err := flags.GetString("color")
	if err != nil {
		return err
	}
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("invalid --color %q (expected auto|on|off)", mode)
	}

	path, err := flags.GetString("config")
	if err != nil {
		return err
	}
	if cfg, err = loadConfig(path); err != nil {
		return err
	}

	stopProf, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, stopProf)
	stopTrace, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, stopTrace)
	return nil
}

func runCleanups() {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	cleanups = nil
}

func teardownCommand(cmd *cobra.Command, _ []string) error {
	runCleanups()
	show, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return err
	}
	if show && len(timer.Report().Phases) > 0 {
		fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
	}
	return nil
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
