package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ampcap/internal/bitcode"
	"ampcap/internal/container"
	"ampcap/internal/ir"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [flags] <blob>",
	Short: "Print the chunks and the program of a blob",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().Bool("metadata", false, "include the metadata arena")
	dumpCmd.Flags().Bool("headers", false, "print chunk headers only")
}

func runDump(cmd *cobra.Command, args []string) error {
	withMeta, err := cmd.Flags().GetBool("metadata")
	if err != nil {
		return err
	}
	headersOnly, err := cmd.Flags().GetBool("headers")
	if err != nil {
		return err
	}
	blob, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	c, err := container.Decode(blob)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	var out bytes.Buffer
	out.WriteString(c.String())
	if data, ok := c.Chunk(container.ChunkPipeline); ok {
		ps, err := container.DecodePipelineState(data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		fmt.Fprintf(&out, "pipeline: %s\n", ps)
		for _, r := range ps.Resources {
			fmt.Fprintf(&out, "  resource type=%d space=%d regs=[%d,%d]\n", r.Type, r.Space, r.LowerBound, r.UpperBound)
		}
	}
	if data, ok := c.Chunk(container.ChunkFeatures); ok {
		flags, err := container.DecodeFeatures(data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		fmt.Fprintf(&out, "features: %s\n", container.FeatureString(flags))
	}
	if !headersOnly {
		data, err := c.MustChunk(container.ChunkProgram)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		p, err := bitcode.Decode(data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		if err := ir.DumpProgram(&out, p, ir.DumpOptions{Metadata: withMeta}); err != nil {
			return err
		}
	}
	_, err = out.WriteTo(cmd.OutOrStdout())
	return err
}
