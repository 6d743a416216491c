package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ampcap/internal/container"
	"ampcap/internal/samples"
)

var sampleCmd = &cobra.Command{
	Use:   "sample [flags]",
	Short: "Write a sample amplification blob",
	Args:  cobra.NoArgs,
	RunE:  runSample,
}

func init() {
	sampleCmd.Flags().String("payload", "basic", "payload type (basic|wide)")
	sampleCmd.Flags().String("sm", "6.5", "shader model of the blob")
	sampleCmd.Flags().String("threads", "4,1,1", "thread group size as x,y,z")
	sampleCmd.Flags().String("uavs", "", "comma separated ids of UAVs declared before capture")
	sampleCmd.Flags().String("name", "main", "entry point name")
	sampleCmd.Flags().StringP("output", "o", "sample.sxbc", "output file")
}

func runSample(cmd *cobra.Command, _ []string) error {
	opts := samples.DefaultOptions()
	flags := cmd.Flags()

	kind, _ := flags.GetString("payload")
	var err error
	if opts.Payload, err = samples.ParsePayloadKind(kind); err != nil {
		return err
	}
	sm, _ := flags.GetString("sm")
	if opts.Version, err = container.ParseVersion(sm); err != nil {
		return fmt.Errorf("--sm: %w", err)
	}
	threads, _ := flags.GetString("threads")
	if opts.NumThreads, err = parseTriple(threads); err != nil {
		return fmt.Errorf("--threads: %w", err)
	}
	uavs, _ := flags.GetString("uavs")
	if opts.ExistingUAVs, err = parseIDs(uavs); err != nil {
		return fmt.Errorf("--uavs: %w", err)
	}
	opts.Name, _ = flags.GetString("name")
	out, _ := flags.GetString("output")

	blob, err := samples.Amplification(opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, blob, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	if quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet"); !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (sm%s, %s payload, %d bytes)\n", out, opts.Version, opts.Payload, len(blob))
	}
	return nil
}

func parseIDs(s string) ([]uint32, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var ids []uint32
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32)
		if err != nil {
			return nil, err
		}
		ids = append(ids, uint32(n))
	}
	return ids, nil
}
