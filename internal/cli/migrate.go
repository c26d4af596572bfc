package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/screening-server/internal/config"
	"github.com/screening-server/internal/database"
)

func newMigrateCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:       "migrate <up|down|version>",
		Short:     "Run the submission store migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := config.NewManagerFromFile(configPath)
			if err != nil {
				return err
			}
			logger, err := config.NewLogger(mgr.GetConfig().Logging)
			if err != nil {
				return err
			}
			logger.SetOutput(cmd.ErrOrStderr())

			dbCfg := mgr.GetDatabaseConfig()
			runner, err := database.NewMigrationRunner(database.ConfigFrom(dbCfg).URL(), dbCfg.MigrationsPath, logger)
			if err != nil {
				return err
			}
			defer runner.Close()

			ctx := cmd.Context()
			switch args[0] {
			case "up":
				err = runner.Up(ctx)
			case "down":
				err = runner.Down(ctx)
			}
			if err != nil {
				return err
			}

			version, dirty, err := runner.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", version, dirty)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default: search ./, ./config, /etc/screening-server)")
	return cmd
}
