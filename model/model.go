// Package model describes the declarative entity model that migrations are
// computed from: entity types with their properties, keys, relationships and
// indexes, plus the relational facets (table, schema, column, store type)
// that map them onto a database.
package model

import (
	"fmt"
	"strings"

	"github.com/go-openapi/inflect"
)

// ClrType is the application-side type of a property.
type ClrType string

const (
	TypeString         ClrType = "string"
	TypeInt16          ClrType = "int16"
	TypeInt32          ClrType = "int32"
	TypeInt64          ClrType = "int64"
	TypeBool           ClrType = "bool"
	TypeDecimal        ClrType = "decimal"
	TypeFloat32        ClrType = "float32"
	TypeFloat64        ClrType = "float64"
	TypeDateTime       ClrType = "datetime"
	TypeDateTimeOffset ClrType = "datetimeoffset"
	TypeBytes          ClrType = "bytes"
	TypeUUID           ClrType = "uuid"
)

var clrTypes = map[ClrType]bool{
	TypeString: true, TypeInt16: true, TypeInt32: true, TypeInt64: true,
	TypeBool: true, TypeDecimal: true, TypeFloat32: true, TypeFloat64: true,
	TypeDateTime: true, TypeDateTimeOffset: true, TypeBytes: true, TypeUUID: true,
}

// Valid reports whether t is one of the known CLR types.
func (t ClrType) Valid() bool {
	return clrTypes[t]
}

// IsInteger reports whether t is an integral numeric type.
func (t ClrType) IsInteger() bool {
	return t == TypeInt16 || t == TypeInt32 || t == TypeInt64
}

// ReferentialAction is the action taken on dependents when a principal row is deleted.
type ReferentialAction string

const (
	NoAction   ReferentialAction = "NO ACTION"
	Cascade    ReferentialAction = "CASCADE"
	SetNull    ReferentialAction = "SET NULL"
	SetDefault ReferentialAction = "SET DEFAULT"
	Restrict   ReferentialAction = "RESTRICT"
)

// Model is a validated set of entity types and sequences.
// Build one with New, Parse or Load; the model must not be mutated afterwards.
type Model struct {
	DefaultSchema string        `yaml:"default_schema,omitempty"`
	Entities      []*EntityType `yaml:"entities,omitempty"`
	Sequences     []*Sequence   `yaml:"sequences,omitempty"`

	tables   []*Table
	byEntity map[string]*Table
}

// EntityType is a mapped application type.
type EntityType struct {
	Name        string        `yaml:"name"`
	BaseType    string        `yaml:"base_type,omitempty"`
	Table       string        `yaml:"table,omitempty"`
	Schema      string        `yaml:"schema,omitempty"`
	Properties  []*Property   `yaml:"properties,omitempty"`
	PrimaryKey  *Key          `yaml:"primary_key,omitempty"`
	Keys        []*Key        `yaml:"keys,omitempty"`
	ForeignKeys []*ForeignKey `yaml:"foreign_keys,omitempty"`
	Indexes     []*Index      `yaml:"indexes,omitempty"`
}

// Property is a scalar member of an entity type mapped to a column.
type Property struct {
	Name         string  `yaml:"name"`
	Column       string  `yaml:"column,omitempty"`
	Type         ClrType `yaml:"type"`
	StoreType    string  `yaml:"store_type,omitempty"`
	Nullable     bool    `yaml:"nullable,omitempty"`
	MaxLength    *int    `yaml:"max_length,omitempty"`
	Unicode      *bool   `yaml:"unicode,omitempty"`
	RowVersion   bool    `yaml:"row_version,omitempty"`
	Identity     bool    `yaml:"identity,omitempty"`
	DefaultValue any     `yaml:"default_value,omitempty"`
	DefaultSQL   string  `yaml:"default_sql,omitempty"`
	ComputedSQL  string  `yaml:"computed_sql,omitempty"`
}

// Key is a primary or alternate key.
type Key struct {
	Name       string   `yaml:"name,omitempty"`
	Properties []string `yaml:"properties"`
}

// ForeignKey relates dependent properties to a key of a principal entity type.
type ForeignKey struct {
	Name                string            `yaml:"name,omitempty"`
	Properties          []string          `yaml:"properties"`
	PrincipalEntity     string            `yaml:"principal"`
	PrincipalProperties []string          `yaml:"principal_properties,omitempty"`
	OnDelete            ReferentialAction `yaml:"on_delete,omitempty"`
}

// Index is a database index over one or more properties.
type Index struct {
	Name       string   `yaml:"name,omitempty"`
	Properties []string `yaml:"properties"`
	Unique     bool     `yaml:"unique,omitempty"`
	Filter     string   `yaml:"filter,omitempty"`
}

// Sequence is a database sequence.
type Sequence struct {
	Name        string  `yaml:"name"`
	Schema      string  `yaml:"schema,omitempty"`
	Type        ClrType `yaml:"type,omitempty"`
	StartValue  int64   `yaml:"start_value,omitempty"`
	IncrementBy int     `yaml:"increment_by,omitempty"`
	MinValue    *int64  `yaml:"min_value,omitempty"`
	MaxValue    *int64  `yaml:"max_value,omitempty"`
	Cyclic      bool    `yaml:"cyclic,omitempty"`
}

// Table is the relational view of an entity hierarchy: the root entity type
// together with the properties, keys, relationships and indexes of every
// derived type mapped to the same table.
type Table struct {
	Name        string
	Schema      string
	Root        *EntityType
	Entities    []*EntityType
	Properties  []*Property
	PrimaryKey  *Key
	Keys        []*Key
	ForeignKeys []*ForeignKey
	Indexes     []*Index

	byProperty map[string]*Property
	byColumn   map[string]*Property
}

// New validates the given entity types and sequences, applies naming
// conventions and returns the resulting model.
func New(defaultSchema string, entities []*EntityType, sequences []*Sequence) (*Model, error) {
	m := &Model{DefaultSchema: defaultSchema, Entities: entities, Sequences: sequences}
	if err := m.init(); err != nil {
		return nil, err
	}
	return m, nil
}

// Tables returns the table views of the model in entity declaration order.
func (m *Model) Tables() []*Table {
	if m == nil {
		return nil
	}
	return m.tables
}

// FindEntity returns the entity type with the given name, or nil.
func (m *Model) FindEntity(name string) *EntityType {
	if m == nil {
		return nil
	}
	for _, e := range m.Entities {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// TableOf returns the table the named entity type is mapped to, or nil.
func (m *Model) TableOf(entity string) *Table {
	if m == nil {
		return nil
	}
	return m.byEntity[entity]
}

// FindTable returns the table with the given schema and name, compared case-insensitively.
func (m *Model) FindTable(schema, name string) *Table {
	for _, t := range m.Tables() {
		if strings.EqualFold(t.Schema, schema) && strings.EqualFold(t.Name, name) {
			return t
		}
	}
	return nil
}

// FindColumn returns the property mapped to the given column, or nil.
func (m *Model) FindColumn(schema, table, column string) *Property {
	t := m.FindTable(schema, table)
	if t == nil {
		return nil
	}
	return t.byColumn[strings.ToLower(column)]
}

// FindSequence returns the sequence with the given schema and name, or nil.
func (m *Model) FindSequence(schema, name string) *Sequence {
	if m == nil {
		return nil
	}
	for _, s := range m.Sequences {
		if strings.EqualFold(s.Schema, schema) && strings.EqualFold(s.Name, name) {
			return s
		}
	}
	return nil
}

// Property returns the named property of any entity in the hierarchy, or nil.
func (t *Table) Property(name string) *Property {
	return t.byProperty[name]
}

// Columns maps property names to their column names.
func (t *Table) Columns(properties []string) []string {
	columns := make([]string, 0, len(properties))
	for _, name := range properties {
		if p := t.byProperty[name]; p != nil {
			columns = append(columns, p.Column)
		} else {
			columns = append(columns, name)
		}
	}
	return columns
}

// IsKeyColumn reports whether the property takes part in a key, foreign key or index.
func (t *Table) IsKeyColumn(p *Property) bool {
	contains := func(names []string) bool {
		for _, n := range names {
			if t.byProperty[n] == p {
				return true
			}
		}
		return false
	}
	if t.PrimaryKey != nil && contains(t.PrimaryKey.Properties) {
		return true
	}
	for _, k := range t.Keys {
		if contains(k.Properties) {
			return true
		}
	}
	for _, fk := range t.ForeignKeys {
		if contains(fk.Properties) {
			return true
		}
	}
	for _, ix := range t.Indexes {
		if contains(ix.Properties) {
			return true
		}
	}
	return false
}

// RootOf walks the base type chain and returns the root entity type.
func (m *Model) RootOf(e *EntityType) *EntityType {
	seen := map[string]bool{}
	for e != nil && e.BaseType != "" && !seen[e.Name] {
		seen[e.Name] = true
		base := m.FindEntity(e.BaseType)
		if base == nil {
			break
		}
		e = base
	}
	return e
}

func (m *Model) init() error {
	names := make(map[string]bool, len(m.Entities))
	for _, e := range m.Entities {
		if e.Name == "" {
			return fmt.Errorf("entity type without a name")
		}
		if names[e.Name] {
			return fmt.Errorf("entity type %q is declared more than once", e.Name)
		}
		names[e.Name] = true
	}

	m.tables = nil
	m.byEntity = make(map[string]*Table, len(m.Entities))

	for _, e := range m.Entities {
		if e.BaseType != "" {
			if m.FindEntity(e.BaseType) == nil {
				return fmt.Errorf("entity type %q derives from unknown type %q", e.Name, e.BaseType)
			}
			continue
		}
		if e.Table == "" {
			e.Table = inflect.Pluralize(e.Name)
		}
		if e.Schema == "" {
			e.Schema = m.DefaultSchema
		}
		t := &Table{
			Name:       e.Table,
			Schema:     e.Schema,
			Root:       e,
			byProperty: map[string]*Property{},
			byColumn:   map[string]*Property{},
		}
		m.tables = append(m.tables, t)
		m.byEntity[e.Name] = t
	}

	for _, e := range m.Entities {
		root := m.RootOf(e)
		if root.BaseType != "" {
			return fmt.Errorf("entity type %q has a cyclic base type chain", e.Name)
		}
		t := m.byEntity[root.Name]
		if e != root {
			e.Table, e.Schema = root.Table, root.Schema
			m.byEntity[e.Name] = t
		}
		t.Entities = append(t.Entities, e)
	}

	for _, t := range m.tables {
		if err := t.init(); err != nil {
			return err
		}
	}
	for _, t := range m.tables {
		if err := m.initRelationships(t); err != nil {
			return err
		}
	}

	for _, s := range m.Sequences {
		if s.Name == "" {
			return fmt.Errorf("sequence without a name")
		}
		if s.Schema == "" {
			s.Schema = m.DefaultSchema
		}
		if s.Type == "" {
			s.Type = TypeInt64
		}
		if s.IncrementBy == 0 {
			s.IncrementBy = 1
		}
		if s.StartValue == 0 {
			s.StartValue = 1
		}
	}
	return nil
}

func (t *Table) init() error {
	for _, e := range t.Entities {
		for _, p := range e.Properties {
			if p.Name == "" {
				return fmt.Errorf("entity type %q has a property without a name", e.Name)
			}
			if !p.Type.Valid() {
				return fmt.Errorf("property %s.%s has unknown type %q", e.Name, p.Name, p.Type)
			}
			if _, dup := t.byProperty[p.Name]; dup {
				return fmt.Errorf("property %s.%s is declared more than once in the hierarchy", e.Name, p.Name)
			}
			if p.Column == "" {
				p.Column = p.Name
			}
			t.byProperty[p.Name] = p

			key := strings.ToLower(p.Column)
			if shared, ok := t.byColumn[key]; ok {
				if e == t.Root {
					return fmt.Errorf("properties %q and %q of %q are both mapped to column %q", shared.Name, p.Name, e.Name, p.Column)
				}
				if shared.Type != p.Type || shared.StoreType != p.StoreType {
					return fmt.Errorf("properties %q and %q are mapped to column %s.%s with different types", shared.Name, p.Name, t.Name, p.Column)
				}
				continue
			}
			t.byColumn[key] = p
			t.Properties = append(t.Properties, p)
		}
	}

	if pk := t.Root.PrimaryKey; pk != nil {
		if err := t.checkProperties("primary key", pk.Properties); err != nil {
			return err
		}
		if pk.Name == "" {
			pk.Name = "PK_" + t.Name
		}
		t.PrimaryKey = pk
	}
	for _, e := range t.Entities {
		for _, k := range e.Keys {
			if err := t.checkProperties("key", k.Properties); err != nil {
				return err
			}
			if k.Name == "" {
				k.Name = "AK_" + t.Name + "_" + strings.Join(t.Columns(k.Properties), "_")
			}
			t.Keys = append(t.Keys, k)
		}
		for _, ix := range e.Indexes {
			if err := t.checkProperties("index", ix.Properties); err != nil {
				return err
			}
			if ix.Name == "" {
				ix.Name = "IX_" + t.Name + "_" + strings.Join(t.Columns(ix.Properties), "_")
			}
			t.Indexes = append(t.Indexes, ix)
		}
	}
	return nil
}

func (m *Model) initRelationships(t *Table) error {
	for _, e := range t.Entities {
		for _, fk := range e.ForeignKeys {
			if err := t.checkProperties("foreign key", fk.Properties); err != nil {
				return err
			}
			principal := m.TableOf(fk.PrincipalEntity)
			if principal == nil {
				return fmt.Errorf("foreign key on %q references unknown entity type %q", e.Name, fk.PrincipalEntity)
			}
			if len(fk.PrincipalProperties) == 0 {
				if principal.PrimaryKey == nil {
					return fmt.Errorf("foreign key on %q references %q which has no primary key", e.Name, fk.PrincipalEntity)
				}
				fk.PrincipalProperties = append([]string(nil), principal.PrimaryKey.Properties...)
			}
			if err := principal.checkProperties("principal key", fk.PrincipalProperties); err != nil {
				return err
			}
			if len(fk.PrincipalProperties) != len(fk.Properties) {
				return fmt.Errorf("foreign key on %q has %d properties but its principal key has %d", e.Name, len(fk.Properties), len(fk.PrincipalProperties))
			}
			if fk.OnDelete == "" {
				fk.OnDelete = NoAction
			}
			fk.OnDelete = ReferentialAction(strings.ToUpper(string(fk.OnDelete)))
			if fk.Name == "" {
				fk.Name = "FK_" + t.Name + "_" + principal.Name + "_" + strings.Join(t.Columns(fk.Properties), "_")
			}
			t.ForeignKeys = append(t.ForeignKeys, fk)
		}
	}
	return nil
}

func (t *Table) checkProperties(what string, names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("%s on table %q has no properties", what, t.Name)
	}
	for _, n := range names {
		if t.byProperty[n] == nil {
			return fmt.Errorf("%s on table %q references unknown property %q", what, t.Name, n)
		}
	}
	return nil
}
