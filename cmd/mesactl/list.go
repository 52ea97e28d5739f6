package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seagrayinc/mesabus/internal/cp2110"
)

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List attached FT600 and CP2110 bridges",
		Args:  cobra.NoArgs,
		// list only enumerates; no transport is opened.
		PersistentPreRunE: a.loadConfig,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			fts, err := a.listFT600(ft600Config(a.cfg))
			if err != nil {
				return err
			}
			for _, d := range fts {
				fmt.Fprintf(out, "ft600   %04x:%04x  bus %03d addr %03d  %s %s  serial %s\n",
					d.VendorID, d.ProductID, d.Bus, d.Address, d.Manufacturer, d.Product, d.Serial)
			}

			bridges, err := cp2110.List(a.hid, cp2110Config(a.cfg))
			if err != nil {
				return err
			}
			for _, d := range bridges {
				fmt.Fprintf(out, "cp2110  %04x:%04x  %s  %s %s\n",
					d.VendorID, d.ProductID, d.Path, d.Manufacturer, d.Product)
			}

			if len(fts)+len(bridges) == 0 {
				fmt.Fprintln(out, "no bridges found")
			}
			return nil
		},
	}
}
