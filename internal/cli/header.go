package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/screening-server/internal/export"
)

func newHeaderCommand(load registryLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "header <instrument-id>",
		Short: "Print the tabular export header of an instrument",
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
			return export.WriteCSV(cmd.OutOrStdout(), export.Columns(inst))
		},
	}
}

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <submissions.csv>",
		Short: "Summarize the rows of an exported submissions file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open submissions file: %w", err)
			}
			defer f.Close()

			_, rows, err := export.ReadCSV(f)
			if err != nil {
				return fmt.Errorf("read submissions file: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SUBMISSION\tINSTRUMENT\tSUBMITTED\tTOTAL\tSEVERITY\tFLAGS")
			for i, row := range rows {
				parsed, err := export.ParseWideRow(row)
				if err != nil {
					return fmt.Errorf("row %d: %w", i+1, err)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					parsed.SubmissionID, parsed.InstrumentID, stamp(parsed), parsed.Total, parsed.Severity, raisedFlags(parsed.Flags))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d submissions\n", len(rows))
			return nil
		},
	}
}

func stamp(p *export.ParsedRow) string {
	if p.SubmittedAt.IsZero() {
		return "-"
	}
	return p.SubmittedAt.Format("2006-01-02 15:04")
}

func raisedFlags(flags map[string]bool) string {
	raised := make([]string, 0, len(flags))
	for k, v := range flags {
		if v {
			raised = append(raised, k)
		}
	}
	if len(raised) == 0 {
		return "-"
	}
	sort.Strings(raised)
	return strings.Join(raised, " ")
}
