package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

func (a *app) benchCmd() *cobra.Command {
	var opts transferOpts

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure local-bus write and read throughput",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			data := randomWords(opts.words)
			bytes := float64(opts.iterations * opts.words * 4)

			start := time.Now()
			for range opts.iterations {
				if err := a.link.Write(ctx, opts.addr, data); err != nil {
					return err
				}
			}
			printRate(out, "Writes", bytes, time.Since(start))

			start = time.Now()
			for range opts.iterations {
				if _, err := a.link.Read(ctx, opts.addr, opts.words); err != nil {
					return err
				}
			}
			printRate(out, "Reads", bytes, time.Since(start))
			return nil
		},
	}
	opts.register(cmd)
	return cmd
}

func printRate(out io.Writer, what string, bytes float64, elapsed time.Duration) {
	rate := bytes / elapsed.Seconds() / 1e6
	fmt.Fprintf(out, "%s at %.03f MB/sec ( or %.03f Mbps )\n", what, rate, rate*8)
}
