package operations

import (
	"fmt"
	"strings"
)

// Kind returns the stable identifier of an operation's variant.
func Kind(op Operation) string {
	switch op.(type) {
	case *EnsureSchema:
		return "ensure_schema"
	case *CreateTable:
		return "create_table"
	case *DropTable:
		return "drop_table"
	case *RenameTable:
		return "rename_table"
	case *MoveTable:
		return "move_table"
	case *AddColumn:
		return "add_column"
	case *AlterColumn:
		return "alter_column"
	case *DropColumn:
		return "drop_column"
	case *RenameColumn:
		return "rename_column"
	case *AddPrimaryKey:
		return "add_primary_key"
	case *DropPrimaryKey:
		return "drop_primary_key"
	case *AddUniqueConstraint:
		return "add_unique_constraint"
	case *DropUniqueConstraint:
		return "drop_unique_constraint"
	case *AddForeignKey:
		return "add_foreign_key"
	case *DropForeignKey:
		return "drop_foreign_key"
	case *CreateIndex:
		return "create_index"
	case *DropIndex:
		return "drop_index"
	case *RenameIndex:
		return "rename_index"
	case *CreateSequence:
		return "create_sequence"
	case *AlterSequence:
		return "alter_sequence"
	case *RestartSequence:
		return "restart_sequence"
	case *DropSequence:
		return "drop_sequence"
	case *RenameSequence:
		return "rename_sequence"
	case *MoveSequence:
		return "move_sequence"
	case *RawSQL:
		return "sql"
	}
	return fmt.Sprintf("%T", op)
}

var factories = map[string]func() Operation{
	"ensure_schema":          func() Operation { return &EnsureSchema{} },
	"create_table":           func() Operation { return &CreateTable{} },
	"drop_table":             func() Operation { return &DropTable{} },
	"rename_table":           func() Operation { return &RenameTable{} },
	"move_table":             func() Operation { return &MoveTable{} },
	"add_column":             func() Operation { return &AddColumn{} },
	"alter_column":           func() Operation { return &AlterColumn{} },
	"drop_column":            func() Operation { return &DropColumn{} },
	"rename_column":          func() Operation { return &RenameColumn{} },
	"add_primary_key":        func() Operation { return &AddPrimaryKey{} },
	"drop_primary_key":       func() Operation { return &DropPrimaryKey{} },
	"add_unique_constraint":  func() Operation { return &AddUniqueConstraint{} },
	"drop_unique_constraint": func() Operation { return &DropUniqueConstraint{} },
	"add_foreign_key":        func() Operation { return &AddForeignKey{} },
	"drop_foreign_key":       func() Operation { return &DropForeignKey{} },
	"create_index":           func() Operation { return &CreateIndex{} },
	"drop_index":             func() Operation { return &DropIndex{} },
	"rename_index":           func() Operation { return &RenameIndex{} },
	"create_sequence":        func() Operation { return &CreateSequence{} },
	"alter_sequence":         func() Operation { return &AlterSequence{} },
	"restart_sequence":       func() Operation { return &RestartSequence{} },
	"drop_sequence":          func() Operation { return &DropSequence{} },
	"rename_sequence":        func() Operation { return &RenameSequence{} },
	"move_sequence":          func() Operation { return &MoveSequence{} },
	"sql":                    func() Operation { return &RawSQL{} },
}

// IsDestructive reports whether applying op may lose data.
func IsDestructive(op Operation) bool {
	switch op := op.(type) {
	case *DropTable, *DropColumn, *DropSequence:
		return true
	case *AlterColumn:
		return op.Destructive
	}
	return false
}

// Action classifies an operation as "create", "alter" or "drop" for display.
func Action(op Operation) string {
	kind := Kind(op)
	switch {
	case strings.HasPrefix(kind, "create_"), strings.HasPrefix(kind, "add_"), kind == "ensure_schema":
		return "create"
	case strings.HasPrefix(kind, "drop_"):
		return "drop"
	}
	return "alter"
}

// Describe returns a one-line human readable summary of op.
func Describe(op Operation) string {
	switch op := op.(type) {
	case *EnsureSchema:
		return "ensure schema " + op.Name
	case *CreateTable:
		return "create table " + qualified(op.Schema, op.Name)
	case *DropTable:
		return "drop table " + qualified(op.Schema, op.Name)
	case *RenameTable:
		return fmt.Sprintf("rename table %s to %s", qualified(op.Schema, op.Name), op.NewName)
	case *MoveTable:
		return fmt.Sprintf("move table %s to schema %s", qualified(op.Schema, op.Name), op.NewSchema)
	case *AddColumn:
		return "add column " + qualified(op.Schema, op.Table) + "." + op.Name
	case *AlterColumn:
		return "alter column " + qualified(op.Schema, op.Table) + "." + op.Name
	case *DropColumn:
		return "drop column " + qualified(op.Schema, op.Table) + "." + op.Name
	case *RenameColumn:
		return fmt.Sprintf("rename column %s.%s to %s", qualified(op.Schema, op.Table), op.Name, op.NewName)
	case *AddPrimaryKey:
		return fmt.Sprintf("add primary key %s on %s", op.Name, qualified(op.Schema, op.Table))
	case *DropPrimaryKey:
		return fmt.Sprintf("drop primary key %s on %s", op.Name, qualified(op.Schema, op.Table))
	case *AddUniqueConstraint:
		return fmt.Sprintf("add unique constraint %s on %s", op.Name, qualified(op.Schema, op.Table))
	case *DropUniqueConstraint:
		return fmt.Sprintf("drop unique constraint %s on %s", op.Name, qualified(op.Schema, op.Table))
	case *AddForeignKey:
		return fmt.Sprintf("add foreign key %s on %s", op.Name, qualified(op.Schema, op.Table))
	case *DropForeignKey:
		return fmt.Sprintf("drop foreign key %s on %s", op.Name, qualified(op.Schema, op.Table))
	case *CreateIndex:
		return fmt.Sprintf("create index %s on %s", op.Name, qualified(op.Schema, op.Table))
	case *DropIndex:
		return fmt.Sprintf("drop index %s on %s", op.Name, qualified(op.Schema, op.Table))
	case *RenameIndex:
		return fmt.Sprintf("rename index %s to %s", op.Name, op.NewName)
	case *CreateSequence:
		return "create sequence " + qualified(op.Schema, op.Name)
	case *AlterSequence:
		return "alter sequence " + qualified(op.Schema, op.Name)
	case *RestartSequence:
		return fmt.Sprintf("restart sequence %s at %d", qualified(op.Schema, op.Name), op.StartValue)
	case *DropSequence:
		return "drop sequence " + qualified(op.Schema, op.Name)
	case *RenameSequence:
		return fmt.Sprintf("rename sequence %s to %s", qualified(op.Schema, op.Name), op.NewName)
	case *MoveSequence:
		return fmt.Sprintf("move sequence %s to schema %s", qualified(op.Schema, op.Name), op.NewSchema)
	case *RawSQL:
		return "execute sql"
	}
	return Kind(op)
}

func qualified(schema, name string) string {
	if schema == "" {
		return name
	}
	return schema + "." + name
}
