// Package migration defines migrations, the catalog of local migrations and
// their on-disk YAML format.
package migration

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pgschema/relmig/internal/operations"
	"github.com/pgschema/relmig/model"
)

// InitialDatabase is the target name meaning "before the first migration".
const InitialDatabase = "0"

const idTimeFormat = "20060102150405"

var (
	ErrMigrationNotFound  = errors.New("migration not found")
	ErrAmbiguousMigration = errors.New("migration name is ambiguous")
	ErrDuplicateMigration = errors.New("duplicate migration id")
	ErrInvalidName        = errors.New("invalid migration name")
)

var idPattern = regexp.MustCompile(`^[0-9]{14}_.+$`)

// Migration is an ordered pair of operation lists together with the model
// the database matches once Up has been applied.
type Migration struct {
	ID             string          `yaml:"id"`
	ProductVersion string          `yaml:"product_version,omitempty"`
	Up             operations.List `yaml:"up"`
	Down           operations.List `yaml:"down"`
	TargetModel    *model.Model    `yaml:"target_model,omitempty"`
}

// Name returns the id without its timestamp prefix.
func (m *Migration) Name() string {
	return NameOf(m.ID)
}

// NameOf returns the part of a migration id after the timestamp prefix.
func NameOf(id string) string {
	if IsValidID(id) {
		return id[len(idTimeFormat)+1:]
	}
	return id
}

// IsValidID reports whether id has the yyyyMMddHHmmss_<name> form.
func IsValidID(id string) bool {
	return idPattern.MatchString(id)
}

// GenerateID builds a migration id from a timestamp and a name. Ids sort
// chronologically because the timestamp is fixed-width UTC.
func GenerateID(name string, now time.Time) (string, error) {
	normalized, err := NormalizeName(name)
	if err != nil {
		return "", err
	}
	return now.UTC().Format(idTimeFormat) + "_" + normalized, nil
}

// NormalizeName turns free text such as "add blog tags" into AddBlogTags.
func NormalizeName(name string) (string, error) {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	caser := cases.Title(language.Und, cases.NoLower)
	var sb strings.Builder
	for _, w := range words {
		sb.WriteString(caser.String(w))
	}
	normalized := sb.String()
	if normalized == InitialDatabase {
		return "", fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}
	return normalized, nil
}

// OperationError marks errors caused by user input or configuration rather
// than by a defect. Tooling reports them without diagnostics.
type OperationError struct {
	Err error
}

func (e *OperationError) Error() string {
	return e.Err.Error()
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// NewOperationError wraps err, or returns nil for a nil err.
func NewOperationError(err error) error {
	if err == nil {
		return nil
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return err
	}
	return &OperationError{Err: err}
}
