// Package cli implements screenctl, the operator command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/screening-server/internal/instrument"
)

// NewRootCommand creates the screenctl command tree.
func NewRootCommand(version string) *cobra.Command {
	var instrumentDir string

	cmd := &cobra.Command{
		Use:   "screenctl",
		Short: "Operate the screening questionnaire service",
		Long: `screenctl inspects the screening instruments, scores response sets
offline, reads exported submission files and runs database migrations.`,
		Version:      version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&instrumentDir, "instrument-dir", "", "directory of extra instrument definitions")

	load := func() (*instrument.Registry, error) {
		return instrument.Load(instrumentDir)
	}

	cmd.AddCommand(newInstrumentsCommand(load))
	cmd.AddCommand(newDescribeCommand(load))
	cmd.AddCommand(newScoreCommand(load))
	cmd.AddCommand(newHeaderCommand(load))
	cmd.AddCommand(newInspectCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newMCPConfigCommand())

	return cmd
}

type registryLoader func() (*instrument.Registry, error)
