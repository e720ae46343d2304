package migrator

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgschema/relmig/internal/command"
)

// executeCommands runs commands on conn. Consecutive commands are grouped
// into one transaction; a transaction-suppressed command first flushes the
// group and then runs on its own.
func executeCommands(ctx context.Context, conn *sql.Conn, commands []command.MigrationCommand, isolation sql.IsolationLevel) error {
	var pending []command.MigrationCommand

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		group := pending
		pending = nil

		tx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: isolation})
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		for _, c := range group {
			if err := c.Execute(ctx, tx); err != nil {
				if rbErr := tx.Rollback(); rbErr != nil {
					return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
				}
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	}

	for _, c := range commands {
		if !c.TransactionSuppressed {
			pending = append(pending, c)
			continue
		}
		if err := flush(); err != nil {
			return err
		}
		if err := c.Execute(ctx, conn); err != nil {
			return err
		}
	}
	return flush()
}
