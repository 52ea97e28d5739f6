package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"
)

type transferOpts struct {
	addr       uint32
	words      int
	iterations int
}

func (o *transferOpts) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Uint32Var(&o.addr, "addr", 0x00010000, "base address of the test buffer")
	f.IntVar(&o.words, "words", 256, "words per transfer")
	f.IntVar(&o.iterations, "iterations", 128, "number of transfers")
}

func (o *transferOpts) validate() error {
	if o.words < 1 {
		return fmt.Errorf("--words must be positive")
	}
	if o.iterations < 1 {
		return fmt.Errorf("--iterations must be positive")
	}
	return nil
}

func randomWords(n int) []uint32 {
	words := make([]uint32, n)
	for i := range words {
		words[i] = rand.Uint32()
	}
	return words
}

func (a *app) selftestCmd() *cobra.Command {
	var opts transferOpts

	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Write random words, read them back and report mismatches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			want := randomWords(opts.words)

			var mismatches, clean int
			for range opts.iterations {
				if err := a.link.Write(ctx, opts.addr, want); err != nil {
					return err
				}
				got, err := a.link.Read(ctx, opts.addr, opts.words)
				if err != nil {
					return err
				}

				ok := true
				for i, w := range got {
					if w != want[i] {
						fmt.Fprintf(out, "%d Failure %08x != %08x\n", i, w, want[i])
						mismatches++
						ok = false
					}
				}
				if ok {
					clean++
				}
			}

			fmt.Fprintf(out, "%d of %d passes clean\n", clean, opts.iterations)
			if mismatches > 0 {
				return fmt.Errorf("%d mismatched words", mismatches)
			}
			return nil
		},
	}
	opts.register(cmd)
	return cmd
}
