package migrator

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pgschema/relmig/internal/database"
	"github.com/pgschema/relmig/internal/ddl"
	"github.com/pgschema/relmig/internal/history"
	"github.com/pgschema/relmig/internal/migration"
	"github.com/pgschema/relmig/internal/sqlgen"
	"github.com/pgschema/relmig/testutil"
)

const schemaPostsModel = `
entities:
  - name: Blog
    schema: blog
    properties:
      - {name: Id, type: int32, identity: true}
      - {name: Name, type: string, max_length: 100}
    primary_key: {properties: [Id]}
  - name: Post
    schema: blog
    properties:
      - {name: Id, type: int32, identity: true}
      - {name: Title, type: string, max_length: 200, nullable: true}
      - {name: BlogId, type: int32}
    primary_key: {properties: [Id]}
    foreign_keys:
      - {properties: [BlogId], principal: Blog, on_delete: CASCADE}
sequences:
  - {name: order_numbers, schema: blog, start_value: 1000}
`

func TestPostgresMigrateAndRevert(t *testing.T) {
	ctx := context.Background()
	container := testutil.SetupPostgresContainer(ctx, t)
	defer container.Terminate(ctx, t)

	migrations := buildMigrations(t, sqlgen.Postgres,
		[]string{"20200101000000_Initial", "20200102000000_BlogSchema"},
		[]string{blogsModel, schemaPostsModel})

	creator, err := database.NewCreator(container.Config)
	if err != nil {
		t.Fatal(err)
	}
	gen, err := ddl.ForDialect(sqlgen.Postgres)
	if err != nil {
		t.Fatal(err)
	}
	repo, err := history.New(gen, container.Conn, creator, history.Options{})
	if err != nil {
		t.Fatal(err)
	}
	assembly, err := migration.NewAssembly(migrations)
	if err != nil {
		t.Fatal(err)
	}
	m := New(Config{
		Assembly:       assembly,
		History:        repo,
		Generator:      gen,
		DB:             container.Conn,
		Creator:        creator,
		ProductVersion: "0.1.0",
	})

	if err := m.Migrate(ctx, ""); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	var tables []string
	rows, err := container.Conn.QueryContext(ctx, `
		SELECT table_schema || '.' || table_name FROM information_schema.tables
		WHERE table_schema IN ('public', 'blog') ORDER BY 1`)
	if err != nil {
		t.Fatal(err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatal(err)
		}
		tables = append(tables, name)
	}
	rows.Close()
	want := []string{"blog.Blogs", "blog.Posts", "public.__EFMigrationsHistory"}
	if diff := cmp.Diff(want, tables); diff != "" {
		t.Errorf("tables mismatch (-want +got):\n%s", diff)
	}

	var next int64
	if err := container.Conn.QueryRowContext(ctx, `SELECT nextval('blog.order_numbers')`).Scan(&next); err != nil {
		t.Fatal(err)
	}
	if next != 1000 {
		t.Errorf("sequence starts at %d, want 1000", next)
	}

	if err := m.Migrate(ctx, migration.InitialDatabase); err != nil {
		t.Fatalf("Migrate to initial: %v", err)
	}
	var remaining int
	if err := container.Conn.QueryRowContext(ctx, `
		SELECT count(*) FROM information_schema.tables
		WHERE table_schema IN ('public', 'blog')`).Scan(&remaining); err != nil {
		t.Fatal(err)
	}
	if remaining != 0 {
		t.Errorf("expected no tables after reverting everything, got %d", remaining)
	}
}
