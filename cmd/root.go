package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgschema/relmig/cmd/database"
	"github.com/pgschema/relmig/cmd/migrations"
	"github.com/pgschema/relmig/cmd/util"
	"github.com/pgschema/relmig/internal/logger"
	"github.com/pgschema/relmig/internal/version"
)

var RootCmd = &cobra.Command{
	Use:   "relmig",
	Short: "Relational schema migration tool",
	Long: fmt.Sprintf(`relmig computes migrations from a declarative model and applies them
to PostgreSQL, SQL Server, SQLite and MySQL databases.

Version: %s@%s %s %s

Commands:
  migrations  Add, remove, list and script migrations
  database    Update a database to a migration

Use "relmig [command] --help" for more information about a command.`,
		version.Version(), version.GetGitCommit(), version.Platform(), version.GetBuildDate()),
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		util.Global.ApplyEnv(cmd)
		logger.Setup(util.Global.Debug)
	},
}

func init() {
	util.Global.BindFlags(RootCmd)
	RootCmd.AddCommand(migrations.MigrationsCmd)
	RootCmd.AddCommand(database.DatabaseCmd)
	RootCmd.AddCommand(VersionCmd)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		if !errors.Is(err, util.ErrReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
