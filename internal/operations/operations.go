// Package operations defines the closed set of schema operations produced by
// the model differ and consumed by the DDL generator.
package operations

import (
	"github.com/pgschema/relmig/model"
)

// Operation is a single schema change. The set of implementations is closed:
// only types in this package satisfy it.
type Operation interface {
	isOperation()
}

// ColumnDefinition describes a column in full.
type ColumnDefinition struct {
	Type         model.ClrType `yaml:"type,omitempty"`
	StoreType    string        `yaml:"store_type,omitempty"`
	Nullable     bool          `yaml:"nullable,omitempty"`
	MaxLength    *int          `yaml:"max_length,omitempty"`
	Unicode      *bool         `yaml:"unicode,omitempty"`
	RowVersion   bool          `yaml:"row_version,omitempty"`
	Identity     bool          `yaml:"identity,omitempty"`
	DefaultValue any           `yaml:"default_value,omitempty"`
	DefaultSQL   string        `yaml:"default_sql,omitempty"`
	ComputedSQL  string        `yaml:"computed_sql,omitempty"`
}

type EnsureSchema struct {
	Name string `yaml:"name"`
}

type CreateTable struct {
	Name              string                 `yaml:"name"`
	Schema            string                 `yaml:"schema,omitempty"`
	Columns           []*AddColumn           `yaml:"columns"`
	PrimaryKey        *AddPrimaryKey         `yaml:"primary_key,omitempty"`
	UniqueConstraints []*AddUniqueConstraint `yaml:"unique_constraints,omitempty"`
	ForeignKeys       []*AddForeignKey       `yaml:"foreign_keys,omitempty"`
}

type DropTable struct {
	Name   string `yaml:"name"`
	Schema string `yaml:"schema,omitempty"`
}

type RenameTable struct {
	Name    string `yaml:"name"`
	Schema  string `yaml:"schema,omitempty"`
	NewName string `yaml:"new_name"`
}

// MoveTable transfers a table to another schema.
type MoveTable struct {
	Name      string `yaml:"name"`
	Schema    string `yaml:"schema,omitempty"`
	NewSchema string `yaml:"new_schema,omitempty"`
}

type AddColumn struct {
	Name             string `yaml:"name"`
	Table            string `yaml:"table,omitempty"`
	Schema           string `yaml:"schema,omitempty"`
	ColumnDefinition `yaml:",inline"`
}

// AlterColumn redefines a column completely; OldColumn is the definition it replaces.
type AlterColumn struct {
	Name             string           `yaml:"name"`
	Table            string           `yaml:"table"`
	Schema           string           `yaml:"schema,omitempty"`
	ColumnDefinition `yaml:",inline"`
	OldColumn        ColumnDefinition `yaml:"old_column"`
	Destructive      bool             `yaml:"destructive,omitempty"`
}

type DropColumn struct {
	Name   string `yaml:"name"`
	Table  string `yaml:"table"`
	Schema string `yaml:"schema,omitempty"`
}

type RenameColumn struct {
	Name    string `yaml:"name"`
	Table   string `yaml:"table"`
	Schema  string `yaml:"schema,omitempty"`
	NewName string `yaml:"new_name"`
}

type AddPrimaryKey struct {
	Name    string   `yaml:"name"`
	Table   string   `yaml:"table,omitempty"`
	Schema  string   `yaml:"schema,omitempty"`
	Columns []string `yaml:"columns"`
}

type DropPrimaryKey struct {
	Name   string `yaml:"name"`
	Table  string `yaml:"table"`
	Schema string `yaml:"schema,omitempty"`
}

type AddUniqueConstraint struct {
	Name    string   `yaml:"name"`
	Table   string   `yaml:"table,omitempty"`
	Schema  string   `yaml:"schema,omitempty"`
	Columns []string `yaml:"columns"`
}

type DropUniqueConstraint struct {
	Name   string `yaml:"name"`
	Table  string `yaml:"table"`
	Schema string `yaml:"schema,omitempty"`
}

type AddForeignKey struct {
	Name             string                  `yaml:"name"`
	Table            string                  `yaml:"table,omitempty"`
	Schema           string                  `yaml:"schema,omitempty"`
	Columns          []string                `yaml:"columns"`
	PrincipalTable   string                  `yaml:"principal_table"`
	PrincipalSchema  string                  `yaml:"principal_schema,omitempty"`
	PrincipalColumns []string                `yaml:"principal_columns"`
	OnDelete         model.ReferentialAction `yaml:"on_delete,omitempty"`
}

type DropForeignKey struct {
	Name   string `yaml:"name"`
	Table  string `yaml:"table"`
	Schema string `yaml:"schema,omitempty"`
}

type CreateIndex struct {
	Name    string   `yaml:"name"`
	Table   string   `yaml:"table"`
	Schema  string   `yaml:"schema,omitempty"`
	Columns []string `yaml:"columns"`
	Unique  bool     `yaml:"unique,omitempty"`
	Filter  string   `yaml:"filter,omitempty"`
}

type DropIndex struct {
	Name   string `yaml:"name"`
	Table  string `yaml:"table"`
	Schema string `yaml:"schema,omitempty"`
}

type RenameIndex struct {
	Name    string `yaml:"name"`
	Table   string `yaml:"table"`
	Schema  string `yaml:"schema,omitempty"`
	NewName string `yaml:"new_name"`
}

type CreateSequence struct {
	Name        string        `yaml:"name"`
	Schema      string        `yaml:"schema,omitempty"`
	Type        model.ClrType `yaml:"type"`
	StartValue  int64         `yaml:"start_value"`
	IncrementBy int           `yaml:"increment_by"`
	MinValue    *int64        `yaml:"min_value,omitempty"`
	MaxValue    *int64        `yaml:"max_value,omitempty"`
	Cyclic      bool          `yaml:"cyclic,omitempty"`
}

// AlterSequence changes the generation parameters of a sequence.
type AlterSequence struct {
	Name        string `yaml:"name"`
	Schema      string `yaml:"schema,omitempty"`
	IncrementBy int    `yaml:"increment_by"`
	MinValue    *int64 `yaml:"min_value,omitempty"`
	MaxValue    *int64 `yaml:"max_value,omitempty"`
	Cyclic      bool   `yaml:"cyclic,omitempty"`
}

// RestartSequence resets the next value of a sequence.
type RestartSequence struct {
	Name       string `yaml:"name"`
	Schema     string `yaml:"schema,omitempty"`
	StartValue int64  `yaml:"start_value"`
}

type DropSequence struct {
	Name   string `yaml:"name"`
	Schema string `yaml:"schema,omitempty"`
}

type RenameSequence struct {
	Name    string `yaml:"name"`
	Schema  string `yaml:"schema,omitempty"`
	NewName string `yaml:"new_name"`
}

type MoveSequence struct {
	Name      string `yaml:"name"`
	Schema    string `yaml:"schema,omitempty"`
	NewSchema string `yaml:"new_schema,omitempty"`
}

// RawSQL is hand-written SQL carried through a migration verbatim.
type RawSQL struct {
	SQL                 string `yaml:"sql"`
	SuppressTransaction bool   `yaml:"suppress_transaction,omitempty"`
}

func (*EnsureSchema) isOperation()         {}
func (*CreateTable) isOperation()          {}
func (*DropTable) isOperation()            {}
func (*RenameTable) isOperation()          {}
func (*MoveTable) isOperation()            {}
func (*AddColumn) isOperation()            {}
func (*AlterColumn) isOperation()          {}
func (*DropColumn) isOperation()           {}
func (*RenameColumn) isOperation()         {}
func (*AddPrimaryKey) isOperation()        {}
func (*DropPrimaryKey) isOperation()       {}
func (*AddUniqueConstraint) isOperation()  {}
func (*DropUniqueConstraint) isOperation() {}
func (*AddForeignKey) isOperation()        {}
func (*DropForeignKey) isOperation()       {}
func (*CreateIndex) isOperation()          {}
func (*DropIndex) isOperation()            {}
func (*RenameIndex) isOperation()          {}
func (*CreateSequence) isOperation()       {}
func (*AlterSequence) isOperation()        {}
func (*RestartSequence) isOperation()      {}
func (*DropSequence) isOperation()         {}
func (*RenameSequence) isOperation()       {}
func (*MoveSequence) isOperation()         {}
func (*RawSQL) isOperation()               {}
