package ddl

import (
	"errors"
	"strings"
	"testing"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/pgschema/relmig/internal/command"
	"github.com/pgschema/relmig/internal/migration"
	"github.com/pgschema/relmig/internal/operations"
	"github.com/pgschema/relmig/internal/sqlgen"
	"github.com/pgschema/relmig/model"
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func generate(t *testing.T, d sqlgen.Dialect, m *model.Model, ops ...operations.Operation) []command.MigrationCommand {
	t.Helper()
	gen, err := ForDialect(d)
	if err != nil {
		t.Fatalf("ForDialect(%s): %v", d, err)
	}
	cmds, err := gen.Generate(ops, m)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return cmds
}

func postsTable() *operations.CreateTable {
	return &operations.CreateTable{
		Name:   "Posts",
		Schema: "blog",
		Columns: []*operations.AddColumn{
			{Name: "Id", ColumnDefinition: operations.ColumnDefinition{Type: model.TypeInt32, Identity: true}},
			{Name: "Title", ColumnDefinition: operations.ColumnDefinition{Type: model.TypeString, MaxLength: intPtr(200), DefaultValue: "untitled"}},
			{Name: "BlogId", ColumnDefinition: operations.ColumnDefinition{Type: model.TypeInt32, Nullable: true}},
		},
		PrimaryKey: &operations.AddPrimaryKey{Name: "PK_Posts", Columns: []string{"Id"}},
		ForeignKeys: []*operations.AddForeignKey{{
			Name:             "FK_Posts_Blogs_BlogId",
			Columns:          []string{"BlogId"},
			PrincipalTable:   "Blogs",
			PrincipalSchema:  "blog",
			PrincipalColumns: []string{"Id"},
			OnDelete:         model.Cascade,
		}},
	}
}

func TestPostgresCreateTable(t *testing.T) {
	cmds := generate(t, sqlgen.Postgres, nil, postsTable())
	if len(cmds) != 1 {
		t.Fatalf("expected 1 command, got %d", len(cmds))
	}

	want := `CREATE TABLE "blog"."Posts" (
    "Id" integer NOT NULL GENERATED BY DEFAULT AS IDENTITY,
    "Title" character varying(200) NOT NULL DEFAULT 'untitled',
    "BlogId" integer NULL,
    CONSTRAINT "PK_Posts" PRIMARY KEY ("Id"),
    CONSTRAINT "FK_Posts_Blogs_BlogId" FOREIGN KEY ("BlogId") REFERENCES "blog"."Blogs" ("Id") ON DELETE CASCADE
);
`
	if got := cmds[0].CommandText; got != want {
		t.Errorf("unexpected SQL:\n%s\nwant:\n%s", got, want)
	}
	if cmds[0].TransactionSuppressed {
		t.Error("CREATE TABLE must run inside the migration transaction")
	}
}

func TestPostgresStatementsParse(t *testing.T) {
	ops := []operations.Operation{
		&operations.EnsureSchema{Name: "blog"},
		postsTable(),
		&operations.RenameTable{Name: "Posts", Schema: "blog", NewName: "Articles"},
		&operations.MoveTable{Name: "Articles", Schema: "blog", NewSchema: "archive"},
		&operations.AddColumn{Name: "Rating", Table: "Articles", Schema: "archive", ColumnDefinition: operations.ColumnDefinition{Type: model.TypeDecimal, Nullable: true}},
		&operations.AlterColumn{
			Name: "Title", Table: "Articles", Schema: "archive",
			ColumnDefinition: operations.ColumnDefinition{Type: model.TypeString, Nullable: true},
			OldColumn:        operations.ColumnDefinition{Type: model.TypeString, MaxLength: intPtr(200)},
		},
		&operations.RenameColumn{Name: "Title", Table: "Articles", Schema: "archive", NewName: "Heading"},
		&operations.DropColumn{Name: "Rating", Table: "Articles", Schema: "archive"},
		&operations.AddUniqueConstraint{Name: "AK_Articles_Heading", Table: "Articles", Schema: "archive", Columns: []string{"Heading"}},
		&operations.DropUniqueConstraint{Name: "AK_Articles_Heading", Table: "Articles", Schema: "archive"},
		&operations.DropPrimaryKey{Name: "PK_Posts", Table: "Articles", Schema: "archive"},
		&operations.AddPrimaryKey{Name: "PK_Articles", Table: "Articles", Schema: "archive", Columns: []string{"Id"}},
		&operations.DropForeignKey{Name: "FK_Posts_Blogs_BlogId", Table: "Articles", Schema: "archive"},
		&operations.AddForeignKey{
			Name: "FK_Articles_Blogs_BlogId", Table: "Articles", Schema: "archive", Columns: []string{"BlogId"},
			PrincipalTable: "Blogs", PrincipalSchema: "blog", PrincipalColumns: []string{"Id"}, OnDelete: model.SetNull,
		},
		&operations.CreateIndex{Name: "IX_Articles_BlogId", Table: "Articles", Schema: "archive", Columns: []string{"BlogId"}, Unique: true, Filter: `"BlogId" IS NOT NULL`},
		&operations.RenameIndex{Name: "IX_Articles_BlogId", Table: "Articles", Schema: "archive", NewName: "IX_Articles_Blog"},
		&operations.DropIndex{Name: "IX_Articles_Blog", Table: "Articles", Schema: "archive"},
		&operations.CreateSequence{Name: "order_numbers", Schema: "blog", Type: model.TypeInt64, StartValue: 1000, IncrementBy: 1, MaxValue: int64Ptr(99999)},
		&operations.AlterSequence{Name: "order_numbers", Schema: "blog", IncrementBy: 5, Cyclic: true},
		&operations.RestartSequence{Name: "order_numbers", Schema: "blog", StartValue: 1},
		&operations.RenameSequence{Name: "order_numbers", Schema: "blog", NewName: "orders"},
		&operations.MoveSequence{Name: "orders", Schema: "blog", NewSchema: ""},
		&operations.DropSequence{Name: "orders"},
		&operations.DropTable{Name: "Articles", Schema: "archive"},
	}

	for _, cmd := range generate(t, sqlgen.Postgres, nil, ops...) {
		if _, err := pg_query.Parse(cmd.CommandText); err != nil {
			t.Errorf("generated SQL does not parse: %v\n%s", err, cmd.CommandText)
		}
	}
}

func TestPostgresAlterColumn(t *testing.T) {
	cmds := generate(t, sqlgen.Postgres, nil, &operations.AlterColumn{
		Name:             "Heading",
		Table:            "Posts",
		ColumnDefinition: operations.ColumnDefinition{Type: model.TypeString, MaxLength: intPtr(100)},
		OldColumn:        operations.ColumnDefinition{Type: model.TypeString, Nullable: true},
	})

	want := `ALTER TABLE "Posts" ALTER COLUMN "Heading" TYPE character varying(100);
ALTER TABLE "Posts" ALTER COLUMN "Heading" SET NOT NULL;
ALTER TABLE "Posts" ALTER COLUMN "Heading" DROP DEFAULT;
`
	if len(cmds) != 1 || cmds[0].CommandText != want {
		t.Fatalf("unexpected commands %#v", cmds)
	}
}

func TestStoreTypeComesFromModel(t *testing.T) {
	m, err := model.Parse([]byte(`
entities:
  - name: Post
    properties:
      - {name: Id, type: int32}
      - {name: Slug, type: string, store_type: citext}
    primary_key: {properties: [Id]}
`))
	if err != nil {
		t.Fatal(err)
	}

	cmds := generate(t, sqlgen.Postgres, m, &operations.AddColumn{
		Name: "Slug", Table: "Posts",
		ColumnDefinition: operations.ColumnDefinition{Type: model.TypeString},
	})
	if !strings.Contains(cmds[0].CommandText, `"Slug" citext NOT NULL`) {
		t.Errorf("expected store type from the model, got %s", cmds[0].CommandText)
	}

	cmds = generate(t, sqlgen.Postgres, m, &operations.AddColumn{
		Name: "Slug", Table: "Posts",
		ColumnDefinition: operations.ColumnDefinition{Type: model.TypeString, MaxLength: intPtr(10)},
	})
	if !strings.Contains(cmds[0].CommandText, `"Slug" character varying(10) NOT NULL`) {
		t.Errorf("expected default mapping for a column with different facets, got %s", cmds[0].CommandText)
	}
}

func TestRawSQLIsSplitIntoCommands(t *testing.T) {
	cmds := generate(t, sqlgen.Postgres, nil, &operations.RawSQL{
		SQL:                 "CREATE TABLE a (id int);\nCREATE INDEX CONCURRENTLY ix_a ON a (id)",
		SuppressTransaction: true,
	})
	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(cmds))
	}
	for _, cmd := range cmds {
		if !cmd.TransactionSuppressed {
			t.Errorf("expected %q to be transaction suppressed", cmd.CommandText)
		}
		if !strings.HasSuffix(strings.TrimSpace(cmd.CommandText), ";") {
			t.Errorf("expected terminated statement, got %q", cmd.CommandText)
		}
	}

	cmds = generate(t, sqlgen.SQLServer, nil, &operations.RawSQL{SQL: "SELECT 1\nGO\nSELECT 2\ngo\n"})
	if len(cmds) != 2 || strings.TrimSpace(cmds[1].CommandText) != "SELECT 2" {
		t.Errorf("expected GO separated batches, got %#v", cmds)
	}
}

func TestSQLServerStatements(t *testing.T) {
	tests := []struct {
		name string
		op   operations.Operation
		want []string
	}{
		{
			name: "ensure schema",
			op:   &operations.EnsureSchema{Name: "sales"},
			want: []string{"IF SCHEMA_ID(N'sales') IS NULL EXEC(N'CREATE SCHEMA [sales];');"},
		},
		{
			name: "rename column",
			op:   &operations.RenameColumn{Name: "Title", Table: "Posts", NewName: "Heading"},
			want: []string{"EXEC sp_rename N'[Posts].[Title]', N'Heading', N'COLUMN';"},
		},
		{
			name: "move table",
			op:   &operations.MoveTable{Name: "Posts", NewSchema: "archive"},
			want: []string{"ALTER SCHEMA [archive] TRANSFER [dbo].[Posts];"},
		},
		{
			name: "drop index",
			op:   &operations.DropIndex{Name: "IX_Posts_BlogId", Table: "Posts"},
			want: []string{"DROP INDEX [IX_Posts_BlogId] ON [Posts];"},
		},
		{
			name: "alter column",
			op: &operations.AlterColumn{
				Name: "Rating", Table: "Posts",
				ColumnDefinition: operations.ColumnDefinition{Type: model.TypeInt32, DefaultValue: 0},
				OldColumn:        operations.ColumnDefinition{Type: model.TypeInt32, Nullable: true},
			},
			want: []string{
				"DECLARE @var0 sysname;",
				"IF @var0 IS NOT NULL EXEC(N'ALTER TABLE [Posts] DROP CONSTRAINT [' + @var0 + '];');",
				"ALTER TABLE [Posts] ALTER COLUMN [Rating] int NOT NULL;",
				"ALTER TABLE [Posts] ADD DEFAULT 0 FOR [Rating];",
			},
		},
		{
			name: "identity column",
			op:   &operations.AddColumn{Name: "Id", Table: "Tags", ColumnDefinition: operations.ColumnDefinition{Type: model.TypeInt64, Identity: true}},
			want: []string{"ALTER TABLE [Tags] ADD [Id] bigint NOT NULL IDENTITY;"},
		},
		{
			name: "restrict is spelled as no action",
			op: &operations.AddForeignKey{
				Name: "FK", Table: "Posts", Columns: []string{"BlogId"},
				PrincipalTable: "Blogs", PrincipalColumns: []string{"Id"}, OnDelete: model.Restrict,
			},
			want: []string{"ALTER TABLE [Posts] ADD CONSTRAINT [FK] FOREIGN KEY ([BlogId]) REFERENCES [Blogs] ([Id]);"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := generate(t, sqlgen.SQLServer, nil, tt.op)
			if len(cmds) != 1 {
				t.Fatalf("expected 1 command, got %d", len(cmds))
			}
			for _, want := range tt.want {
				if !strings.Contains(cmds[0].CommandText, want) {
					t.Errorf("expected %q in:\n%s", want, cmds[0].CommandText)
				}
			}
		})
	}
}

func TestSQLiteInlineAutoincrementKey(t *testing.T) {
	cmds := generate(t, sqlgen.SQLite, nil, &operations.CreateTable{
		Name: "Blogs",
		Columns: []*operations.AddColumn{
			{Name: "Id", ColumnDefinition: operations.ColumnDefinition{Type: model.TypeInt32, Identity: true}},
			{Name: "Url", ColumnDefinition: operations.ColumnDefinition{Type: model.TypeString, Nullable: true}},
		},
		PrimaryKey: &operations.AddPrimaryKey{Name: "PK_Blogs", Columns: []string{"Id"}},
	})

	want := `CREATE TABLE "Blogs" (
    "Id" INTEGER NOT NULL CONSTRAINT "PK_Blogs" PRIMARY KEY AUTOINCREMENT,
    "Url" TEXT NULL
);
`
	if cmds[0].CommandText != want {
		t.Errorf("unexpected SQL:\n%s\nwant:\n%s", cmds[0].CommandText, want)
	}
}

func TestUnsupportedOperations(t *testing.T) {
	tests := []struct {
		dialect sqlgen.Dialect
		op      operations.Operation
	}{
		{sqlgen.SQLite, &operations.AlterColumn{Name: "a", Table: "t"}},
		{sqlgen.SQLite, &operations.AddForeignKey{Name: "fk", Table: "t"}},
		{sqlgen.SQLite, &operations.CreateSequence{Name: "s", Type: model.TypeInt64}},
		{sqlgen.SQLite, &operations.MoveTable{Name: "t", NewSchema: "x"}},
		{sqlgen.MySQL, &operations.EnsureSchema{Name: "x"}},
		{sqlgen.MySQL, &operations.RestartSequence{Name: "s"}},
		{sqlgen.MySQL, &operations.CreateIndex{Name: "ix", Table: "t", Columns: []string{"a"}, Filter: "a > 0"}},
	}

	for _, tt := range tests {
		gen, err := ForDialect(tt.dialect)
		if err != nil {
			t.Fatal(err)
		}
		_, err = gen.Generate([]operations.Operation{tt.op}, nil)
		var nse *NotSupportedError
		if !errors.As(err, &nse) {
			t.Errorf("%s %s: expected NotSupportedError, got %v", tt.dialect, operations.Kind(tt.op), err)
			continue
		}
		if nse.Dialect != tt.dialect {
			t.Errorf("expected dialect %s in error, got %s", tt.dialect, nse.Dialect)
		}
	}
}

func TestMySQLStatements(t *testing.T) {
	cmds := generate(t, sqlgen.MySQL, nil,
		&operations.AlterColumn{
			Name: "Title", Table: "Posts",
			ColumnDefinition: operations.ColumnDefinition{Type: model.TypeString, MaxLength: intPtr(100)},
		},
		&operations.RenameTable{Name: "Posts", NewName: "Articles"},
		&operations.DropForeignKey{Name: "FK_Posts_Blogs", Table: "Articles"},
		&operations.RenameIndex{Name: "IX_a", Table: "Articles", NewName: "IX_b"},
	)

	want := []string{
		"ALTER TABLE `Posts` MODIFY `Title` varchar(100) NOT NULL;\n",
		"RENAME TABLE `Posts` TO `Articles`;\n",
		"ALTER TABLE `Articles` DROP FOREIGN KEY `FK_Posts_Blogs`;\n",
		"ALTER TABLE `Articles` RENAME INDEX `IX_a` TO `IX_b`;\n",
	}
	if len(cmds) != len(want) {
		t.Fatalf("expected %d commands, got %d", len(want), len(cmds))
	}
	for i := range want {
		if cmds[i].CommandText != want[i] {
			t.Errorf("command %d = %q, want %q", i, cmds[i].CommandText, want[i])
		}
	}
}

type unknownOperation struct{ operations.Operation }

func TestUnknownOperation(t *testing.T) {
	gen, err := ForDialect(sqlgen.Postgres)
	if err != nil {
		t.Fatal(err)
	}
	_, err = gen.Generate([]operations.Operation{unknownOperation{}}, nil)
	if !errors.Is(err, ErrUnknownOperation) {
		t.Fatalf("expected ErrUnknownOperation, got %v", err)
	}
	var opErr *migration.OperationError
	if !errors.As(err, &opErr) {
		t.Errorf("expected an OperationError, got %T", err)
	}
}
