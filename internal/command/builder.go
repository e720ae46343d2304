// Package command accumulates SQL text and bound parameters into executable
// commands and runs them against a database/sql connection.
package command

import (
	"strings"

	"github.com/pgschema/relmig/internal/sqlgen"
)

const indentSize = 4

// Parameter is a named value bound to a command.
type Parameter struct {
	Name  string
	Value any
}

// Builder accumulates indented SQL text and parameters.
type Builder struct {
	helper      sqlgen.Helper
	sb          strings.Builder
	indent      int
	startOfLine bool
	params      []Parameter
	placeholder map[string]string
}

// NewBuilder returns an empty builder for a dialect.
func NewBuilder(helper sqlgen.Helper) *Builder {
	return &Builder{helper: helper, startOfLine: true, placeholder: map[string]string{}}
}

// Append adds text to the current line.
func (b *Builder) Append(s string) *Builder {
	if s == "" {
		return b
	}
	b.writeIndent()
	b.sb.WriteString(s)
	return b
}

// AppendLine adds text and ends the line.
func (b *Builder) AppendLine(s string) *Builder {
	b.Append(s)
	b.sb.WriteByte('\n')
	b.startOfLine = true
	return b
}

// AppendLines adds multi-line text, indenting every line.
func (b *Builder) AppendLines(s string) *Builder {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for _, line := range lines {
		b.AppendLine(line)
	}
	return b
}

// IncrementIndent indents subsequent lines one level further.
func (b *Builder) IncrementIndent() *Builder {
	b.indent++
	return b
}

// DecrementIndent undoes one IncrementIndent.
func (b *Builder) DecrementIndent() *Builder {
	if b.indent > 0 {
		b.indent--
	}
	return b
}

// Indent increments the indent and returns a func restoring it:
//
//	defer b.Indent()()
func (b *Builder) Indent() func() {
	b.IncrementIndent()
	return func() { b.DecrementIndent() }
}

// AddParameter binds a value and returns its placeholder. Repeated names
// reuse the first placeholder unless the dialect binds strictly by position.
func (b *Builder) AddParameter(name string, value any) string {
	positional := b.helper.Dialect() == sqlgen.MySQL
	if p, ok := b.placeholder[name]; ok && !positional {
		return p
	}
	b.params = append(b.params, Parameter{Name: name, Value: value})
	p := b.helper.GenerateParameterName(name, len(b.params))
	b.placeholder[name] = p
	return p
}

// Len returns the length of the accumulated text.
func (b *Builder) Len() int {
	return b.sb.Len()
}

func (b *Builder) String() string {
	return b.sb.String()
}

// Build returns an immutable command holding the text and parameters so far.
func (b *Builder) Build() *Command {
	return &Command{
		Text:       b.sb.String(),
		Parameters: append([]Parameter(nil), b.params...),
		named:      b.helper.NamedParameters(),
	}
}

func (b *Builder) writeIndent() {
	if b.startOfLine {
		b.sb.WriteString(strings.Repeat(" ", b.indent*indentSize))
		b.startOfLine = false
	}
}
