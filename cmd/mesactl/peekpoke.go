package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func (a *app) rdCmd() *cobra.Command {
	var repeat bool

	cmd := &cobra.Command{
		Use:   "rd <addr> [n]",
		Short: "Read n words (default 1) starting at a hex address",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseHex(args[0])
			if err != nil {
				return fmt.Errorf("address: %w", err)
			}
			n := 1
			if len(args) == 2 {
				n, err = strconv.Atoi(args[1])
				if err != nil || n < 1 {
					return fmt.Errorf("word count %q must be a positive integer", args[1])
				}
			}

			read := a.link.Read
			if repeat {
				read = a.link.ReadRepeat
			}
			words, err := read(cmd.Context(), addr, n)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, w := range words {
				at := addr
				if !repeat {
					at += uint32(4 * i)
				}
				fmt.Fprintf(out, "%08x: %08x\n", at, w)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&repeat, "repeat", false, "read every word from the same address")
	return cmd
}

func (a *app) wrCmd() *cobra.Command {
	var repeat bool

	cmd := &cobra.Command{
		Use:   "wr <addr> <word>...",
		Short: "Write hex words starting at a hex address",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseHex(args[0])
			if err != nil {
				return fmt.Errorf("address: %w", err)
			}
			words := make([]uint32, 0, len(args)-1)
			for _, s := range args[1:] {
				w, err := parseHex(s)
				if err != nil {
					return fmt.Errorf("word: %w", err)
				}
				words = append(words, w)
			}

			if repeat {
				return a.link.WriteRepeat(cmd.Context(), addr, words)
			}
			return a.link.Write(cmd.Context(), addr, words)
		},
	}
	cmd.Flags().BoolVar(&repeat, "repeat", false, "write every word to the same address")
	return cmd
}

// parseHex accepts up to eight hex digits with an optional 0x prefix.
func parseHex(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
