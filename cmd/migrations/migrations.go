// Package migrations implements the "relmig migrations" commands.
package migrations

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pgschema/relmig/cmd/util"
	"github.com/pgschema/relmig/internal/color"
	"github.com/pgschema/relmig/internal/tools"
)

var errPendingModelChanges = errors.New("changes have been made to the model since the last migration")

var (
	force      bool
	outputFile string
)

var MigrationsCmd = &cobra.Command{
	Use:   "migrations",
	Short: "Add, remove, list and script migrations",
}

var addCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a migration for the changes made to the model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, false, formatAdded, func(e *tools.Executor) error {
			return e.AddMigration(cmd.Context(), args[0])
		})
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the newest migration",
	Long: `Remove the newest migration file. When a database is configured and the
migration has been applied, removal is refused unless --force is given, in
which case the migration is reverted first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		connect := util.Global.Database != ""
		return run(cmd, connect, formatRemoved, func(e *tools.Executor) error {
			return e.RemoveMigration(cmd.Context(), force)
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List migrations and whether they are applied",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		connect := util.Global.Database != ""
		c := color.New(!util.Global.NoColor)
		return run(cmd, connect, func(v any) string { return formatList(c, v, connect) }, func(e *tools.Executor) error {
			return e.GetMigrations(cmd.Context())
		})
	},
}

var scriptCmd = &cobra.Command{
	Use:   "script [FROM] [TO]",
	Short: "Generate a SQL script between two migrations",
	Long: `Generate the SQL that moves a database from FROM to TO without connecting
to it. FROM defaults to the empty database ("0") and TO to the newest
migration. Migrations are named by id or name.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to := argAt(args, 0), argAt(args, 1)
		var script string
		format := func(v any) string {
			script, _ = v.(string)
			if outputFile != "" {
				return ""
			}
			return script
		}
		if err := run(cmd, false, format, func(e *tools.Executor) error {
			return e.ScriptMigration(cmd.Context(), from, to)
		}); err != nil {
			return err
		}
		if outputFile == "" {
			return nil
		}
		if err := os.WriteFile(outputFile, []byte(script), 0o644); err != nil {
			return fmt.Errorf("failed to write script: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Script written to %s.\n", outputFile)
		return nil
	},
}

var hasPendingCmd = &cobra.Command{
	Use:   "has-pending-model-changes",
	Short: "Check whether the model has changed since the last migration",
	Long:  "Exits with status 1 when the model differs from the newest migration's snapshot.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var pending bool
		format := func(v any) string {
			pending, _ = v.(bool)
			if pending {
				return "Changes have been made to the model since the last migration. Add a new migration.\n"
			}
			return "No changes have been made to the model since the last migration.\n"
		}
		if err := run(cmd, false, format, func(e *tools.Executor) error {
			return e.HasPendingModelChanges(cmd.Context())
		}); err != nil {
			return err
		}
		if pending {
			return util.Reported(errPendingModelChanges)
		}
		return nil
	},
}

func init() {
	removeCmd.Flags().BoolVar(&force, "force", false, "Revert the migration if it has been applied")
	scriptCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the script to a file instead of stdout")

	MigrationsCmd.AddCommand(addCmd)
	MigrationsCmd.AddCommand(removeCmd)
	MigrationsCmd.AddCommand(listCmd)
	MigrationsCmd.AddCommand(scriptCmd)
	MigrationsCmd.AddCommand(hasPendingCmd)
}

// run builds an executor reporting to the command's output and runs op.
func run(cmd *cobra.Command, connect bool, format func(any) string, op func(*tools.Executor) error) error {
	reporter := &util.Reporter{
		Out:    cmd.OutOrStdout(),
		Err:    cmd.ErrOrStderr(),
		Color:  color.New(!util.Global.NoColor),
		Format: format,
	}
	executor, err := util.Global.NewExecutor(reporter, connect)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true
	return util.Reported(op(executor))
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func formatAdded(v any) string {
	r, ok := v.(*tools.AddMigrationResult)
	if !ok {
		return ""
	}
	return fmt.Sprintf("Done. Added migration %s (%s).\n", r.ID, r.Path)
}

func formatRemoved(v any) string {
	r, ok := v.(*tools.RemoveMigrationResult)
	if !ok {
		return ""
	}
	if r.Reverted {
		return fmt.Sprintf("Reverted and removed migration %s.\n", r.ID)
	}
	return fmt.Sprintf("Removed migration %s.\n", r.ID)
}

func formatList(c *color.Color, v any, connected bool) string {
	infos, _ := v.([]tools.MigrationInfo)
	if len(infos) == 0 {
		return "No migrations were found.\n"
	}
	var sb strings.Builder
	for _, info := range infos {
		if connected {
			sb.WriteString(c.FormatMigrationLine(info.ID, !info.Applied))
		} else {
			sb.WriteString("  " + info.ID)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
