package command

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgschema/relmig/internal/sqlgen"
)

func TestBuilderIndentation(t *testing.T) {
	b := NewBuilder(sqlgen.MustNew(sqlgen.Postgres))
	b.AppendLine("SELECT 1")
	b.AppendLine("FROM (")
	func() {
		defer b.Indent()()
		b.Append("SELECT ").AppendLine("2")
		b.AppendLines("FROM a\nWHERE x")
	}()
	b.Append(") AS t")

	want := "SELECT 1\nFROM (\n    SELECT 2\n    FROM a\n    WHERE x\n) AS t"
	assert.Equal(t, want, b.Build().Text)
}

func TestBuilderParameters(t *testing.T) {
	t.Run("postgres reuses ordinals", func(t *testing.T) {
		b := NewBuilder(sqlgen.MustNew(sqlgen.Postgres))
		first := b.AddParameter("name", "a")
		second := b.AddParameter("age", 3)
		again := b.AddParameter("name", "a")

		assert.Equal(t, "$1", first)
		assert.Equal(t, "$2", second)
		assert.Equal(t, "$1", again)
		assert.Equal(t, []any{"a", 3}, b.Build().Args())
	})

	t.Run("sqlserver binds by name", func(t *testing.T) {
		b := NewBuilder(sqlgen.MustNew(sqlgen.SQLServer))
		assert.Equal(t, "@name", b.AddParameter("name", "a"))
		assert.Equal(t, []any{sql.Named("name", "a")}, b.Build().Args())
	})

	t.Run("mysql repeats positional values", func(t *testing.T) {
		b := NewBuilder(sqlgen.MustNew(sqlgen.MySQL))
		b.AddParameter("name", "a")
		b.AddParameter("name", "a")
		assert.Len(t, b.Build().Parameters, 2)
	})
}

func TestListBuilder(t *testing.T) {
	l := NewListBuilder(sqlgen.MustNew(sqlgen.Postgres))
	l.AppendLine(`CREATE TABLE "a" ("id" integer);`).EndCommand(false)
	l.EndCommand(false)
	l.AppendLine(`CREATE INDEX CONCURRENTLY "ix" ON "a" ("id");`).EndCommand(true)
	l.Append(`DROP TABLE "b";`)

	cmds := l.GetCommandList()
	require.Len(t, cmds, 3)
	assert.False(t, cmds[0].TransactionSuppressed)
	assert.True(t, cmds[1].TransactionSuppressed)
	assert.Equal(t, `DROP TABLE "b";`, cmds[2].CommandText)
}

func TestCommandExecution(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	b := NewBuilder(sqlgen.MustNew(sqlgen.Postgres))
	b.Append(`UPDATE "t" SET "x" = `).Append(b.AddParameter("x", 5))
	cmd := b.Build()

	mock.ExpectExec(`UPDATE "t" SET "x" = \$1`).WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 2))
	n, err := cmd.ExecuteNonQuery(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	scalar := NewBuilder(sqlgen.MustNew(sqlgen.Postgres)).Append("SELECT 42").Build()
	mock.ExpectQuery("SELECT 42").WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow(int64(42)))
	v, err := scalar.ExecuteScalar(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	mock.ExpectQuery("SELECT 42").WillReturnRows(sqlmock.NewRows([]string{"v"}))
	v, err = scalar.ExecuteScalar(ctx, db)
	require.NoError(t, err)
	assert.Nil(t, v)

	assert.NoError(t, mock.ExpectationsWereMet())
}
