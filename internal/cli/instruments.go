package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newInstrumentsCommand(load registryLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "instruments",
		Short: "List the available instruments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := load()
			if err != nil {
				return fmt.Errorf("load instruments: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tVERSION\tITEMS\tMAX\tTITLE")
			for _, inst := range reg.List() {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", inst.ID, inst.Version, inst.ItemCount(), inst.MaxTotal(), inst.Title)
			}
			return w.Flush()
		},
	}
}

func newDescribeCommand(load registryLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <instrument-id>",
		Short: "Show items, scale, severity bands and decision rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := load()
			if err != nil {
				return fmt.Errorf("load instruments: %w", err)
			}
			inst, err := reg.Get(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			bold := color.New(color.Bold)
			bold.Fprintf(out, "%s  %s (v%s)\n", inst.ID, inst.Title, inst.Version)
			if inst.Reference != "" {
				fmt.Fprintf(out, "Reference: %s\n", inst.Reference)
			}

			bold.Fprintln(out, "\nScale")
			for _, p := range inst.Scale {
				fmt.Fprintf(out, "  %d  %s\n", p.Score, p.Short)
			}

			bold.Fprintln(out, "\nItems")
			for _, it := range inst.Items {
				tag := ""
				if it.DomainTag != "" {
					tag = " [" + it.DomainTag + "]"
				}
				fmt.Fprintf(out, "  %2d. %s%s\n", it.Ordinal, it.Text, tag)
			}

			bold.Fprintln(out, "\nSeverity bands")
			for _, b := range inst.Bands {
				fmt.Fprintf(out, "  %3d-%-3d %s\n", b.Lower, b.Upper, b.Label)
			}

			if len(inst.Rules) > 0 {
				bold.Fprintln(out, "\nDecision rules")
				for _, r := range inst.Rules {
					target := "total"
					if r.ItemBased() {
						target = fmt.Sprintf("item %d", r.Item)
					}
					fmt.Fprintf(out, "  %s: %s >= %d  %s\n", r.Flag, target, r.Threshold, strings.TrimSpace(r.Description))
				}
			}
			return nil
		},
	}
}
