package migrator

import (
	"strings"

	"github.com/pgschema/relmig/internal/command"
)

// GenerateScript returns the SQL moving a database from one migration to
// another without connecting to it. An empty or InitialDatabase from starts
// before the first migration; an empty to ends at the newest. Scripts that
// start from the initial database create the history table first.
func (m *Migrator) GenerateScript(from, to string) (string, error) {
	fromIndex := -1
	if from != "" {
		var err error
		if fromIndex, err = m.ResolveTarget(from); err != nil {
			return "", err
		}
	}
	toIndex, err := m.ResolveTarget(to)
	if err != nil {
		return "", err
	}

	migrations := m.assembly.Migrations()
	plan := &Plan{}
	if toIndex > fromIndex {
		plan.CreateHistory = fromIndex == -1
		plan.Apply = migrations[fromIndex+1 : toIndex+1]
	} else {
		for i := fromIndex; i > toIndex; i-- {
			plan.Revert = append(plan.Revert, migrations[i])
		}
	}

	commands, err := m.commandsFor(plan)
	if err != nil {
		return "", err
	}
	return m.renderScript(commands), nil
}

func (m *Migrator) renderScript(commands []command.MigrationCommand) string {
	var sb strings.Builder
	batch := m.helper.BatchTerminator()
	for i, c := range commands {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(c.CommandText)
		if batch != "" {
			sb.WriteString(batch)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
