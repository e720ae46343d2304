// Package database implements the "relmig database" commands.
package database

import (
	"github.com/spf13/cobra"

	"github.com/pgschema/relmig/cmd/util"
	"github.com/pgschema/relmig/internal/color"
)

var DatabaseCmd = &cobra.Command{
	Use:   "database",
	Short: "Manage the database",
}

var updateCmd = &cobra.Command{
	Use:   "update [TARGET]",
	Short: "Update the database to a migration",
	Long: `Update the database to TARGET, a migration id or name. Without TARGET the
newest migration is applied; "0" reverts every migration. The database is
created when it does not exist.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var target string
		if len(args) == 1 {
			target = args[0]
		}
		reporter := &util.Reporter{
			Out:   cmd.OutOrStdout(),
			Err:   cmd.ErrOrStderr(),
			Color: color.New(!util.Global.NoColor),
			Format: func(any) string {
				return "Done.\n"
			},
		}
		executor, err := util.Global.NewExecutor(reporter, true)
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true
		return util.Reported(executor.UpdateDatabase(cmd.Context(), target))
	},
}

func init() {
	DatabaseCmd.AddCommand(updateCmd)
}
