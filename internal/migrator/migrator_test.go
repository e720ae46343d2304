package migrator

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/pgschema/relmig/internal/ddl"
	"github.com/pgschema/relmig/internal/differ"
	"github.com/pgschema/relmig/internal/history"
	"github.com/pgschema/relmig/internal/migration"
	"github.com/pgschema/relmig/internal/operations"
	"github.com/pgschema/relmig/internal/sqlgen"
	"github.com/pgschema/relmig/model"
)

const blogsModel = `
entities:
  - name: Blog
    properties:
      - {name: Id, type: int32, identity: true}
      - {name: Name, type: string, max_length: 100}
    primary_key: {properties: [Id]}
`

const postsModel = blogsModel + `
  - name: Post
    properties:
      - {name: Id, type: int32, identity: true}
      - {name: Title, type: string, max_length: 200}
      - {name: BlogId, type: int32}
    primary_key: {properties: [Id]}
    foreign_keys:
      - {properties: [BlogId], principal: Blog, on_delete: CASCADE}
    indexes:
      - {properties: [BlogId]}
`

func mustParse(t *testing.T, doc string) *model.Model {
	t.Helper()
	m, err := model.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("failed to parse model: %v", err)
	}
	return m
}

// buildMigrations diffs consecutive model documents into migrations.
func buildMigrations(t *testing.T, d sqlgen.Dialect, ids []string, docs []string) []*migration.Migration {
	t.Helper()
	gen, err := ddl.ForDialect(d)
	if err != nil {
		t.Fatal(err)
	}
	df := differ.New(gen.Mapper())

	var migrations []*migration.Migration
	var previous *model.Model
	for i, id := range ids {
		target := mustParse(t, docs[i])
		migrations = append(migrations, &migration.Migration{
			ID:             id,
			ProductVersion: "0.1.0",
			Up:             df.GetDifferences(previous, target),
			Down:           df.GetDifferences(target, previous),
			TargetModel:    target,
		})
		previous = target
	}
	return migrations
}

func newMigrator(t *testing.T, d sqlgen.Dialect, migrations []*migration.Migration) *Migrator {
	t.Helper()
	assembly, err := migration.NewAssembly(migrations)
	if err != nil {
		t.Fatal(err)
	}
	gen, err := ddl.ForDialect(d)
	if err != nil {
		t.Fatal(err)
	}
	repo, err := history.New(gen, nil, nil, history.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return New(Config{Assembly: assembly, History: repo, Generator: gen, ProductVersion: "0.1.0"})
}

func localMigrations(ids ...string) []*migration.Migration {
	ms := make([]*migration.Migration, len(ids))
	for i, id := range ids {
		ms[i] = &migration.Migration{ID: id}
	}
	return ms
}

func historyRows(ids ...string) []history.Row {
	rows := make([]history.Row, len(ids))
	for i, id := range ids {
		rows[i] = history.Row{MigrationID: id, ProductVersion: "0.1.0"}
	}
	return rows
}

func TestPairMigrationsWithGap(t *testing.T) {
	local := localMigrations("20200101000000_Init", "20200102000000_AddX", "20200103000000_AddY")

	p, err := PairMigrations(local, historyRows("20200101000000_Init"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"20200101000000_Init"}, idsOf(p.Applied)); diff != "" {
		t.Errorf("applied mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"20200102000000_AddX", "20200103000000_AddY"}, idsOf(p.Pending)); diff != "" {
		t.Errorf("pending mismatch (-want +got):\n%s", diff)
	}
}

func TestPairMigrationsCountsEverySubsequence(t *testing.T) {
	ids := []string{"20200101000000_A", "20200102000000_B", "20200103000000_C", "20200104000000_D"}
	local := localMigrations(ids...)

	for mask := 0; mask < 1<<len(ids); mask++ {
		var applied []string
		for i, id := range ids {
			if mask&(1<<i) != 0 {
				applied = append(applied, id)
			}
		}
		p, err := PairMigrations(local, historyRows(applied...))
		if err != nil {
			t.Fatalf("mask %b: %v", mask, err)
		}
		if len(p.Applied) != len(applied) || len(p.Pending) != len(ids)-len(applied) {
			t.Errorf("mask %b: %d applied, %d pending", mask, len(p.Applied), len(p.Pending))
		}
	}
}

func TestPairMigrationsDatabaseAhead(t *testing.T) {
	local := localMigrations("20200101000000_Init", "20200103000000_AddY")

	for _, rows := range [][]history.Row{
		historyRows("20200101000000_Init", "20200102000000_AddX"),
		historyRows("20200101000000_Init", "20200103000000_AddY", "20200104000000_AddZ"),
		historyRows("20190101000000_Old"),
	} {
		_, err := PairMigrations(local, rows)
		if !errors.Is(err, ErrLocalMigrationNotFound) {
			t.Errorf("expected ErrLocalMigrationNotFound for %v, got %v", rows, err)
		}
		var opErr *migration.OperationError
		if !errors.As(err, &opErr) {
			t.Errorf("expected an operation error, got %T", err)
		}
	}
}

func TestPlanRevertToInitial(t *testing.T) {
	m := newMigrator(t, sqlgen.Postgres, localMigrations("20200101000000_M1", "20200102000000_M2"))

	plan, err := m.PlanFor(historyRows("20200101000000_M1", "20200102000000_M2"), true, migration.InitialDatabase)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"20200102000000_M2", "20200101000000_M1"}, idsOf(plan.Revert)); diff != "" {
		t.Errorf("revert order mismatch (-want +got):\n%s", diff)
	}
	if len(plan.Apply) != 0 {
		t.Errorf("expected nothing to apply, got %v", idsOf(plan.Apply))
	}
	if !plan.DropHistory || plan.CreateHistory {
		t.Errorf("expected only the history drop, got %+v", plan)
	}
}

func TestPlanTargets(t *testing.T) {
	m := newMigrator(t, sqlgen.Postgres, localMigrations(
		"20200101000000_Init", "20200102000000_AddX", "20200103000000_AddY"))

	tests := []struct {
		name          string
		rows          []history.Row
		historyExists bool
		target        string
		revert        []string
		apply         []string
		createHistory bool
	}{
		{
			name:          "fresh database to latest",
			target:        "",
			apply:         []string{"20200101000000_Init", "20200102000000_AddX", "20200103000000_AddY"},
			createHistory: true,
		},
		{
			name:          "by name, case-insensitive",
			rows:          historyRows("20200101000000_Init"),
			historyExists: true,
			target:        "addx",
			apply:         []string{"20200102000000_AddX"},
		},
		{
			name:          "down by id",
			rows:          historyRows("20200101000000_Init", "20200102000000_AddX", "20200103000000_AddY"),
			historyExists: true,
			target:        "20200101000000_Init",
			revert:        []string{"20200103000000_AddY", "20200102000000_AddX"},
		},
		{
			name:          "gap is filled while later migrations revert",
			rows:          historyRows("20200101000000_Init", "20200103000000_AddY"),
			historyExists: true,
			target:        "AddX",
			revert:        []string{"20200103000000_AddY"},
			apply:         []string{"20200102000000_AddX"},
		},
		{
			name:          "up to date",
			rows:          historyRows("20200101000000_Init", "20200102000000_AddX", "20200103000000_AddY"),
			historyExists: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := m.PlanFor(tt.rows, tt.historyExists, tt.target)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.revert, idsOf(plan.Revert), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("revert mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.apply, idsOf(plan.Apply), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("apply mismatch (-want +got):\n%s", diff)
			}
			if plan.CreateHistory != tt.createHistory {
				t.Errorf("CreateHistory = %v, want %v", plan.CreateHistory, tt.createHistory)
			}
			if plan.DropHistory {
				t.Error("history must only be dropped for the initial database target")
			}
		})
	}
}

func TestPlanUnknownTarget(t *testing.T) {
	m := newMigrator(t, sqlgen.Postgres, localMigrations("20200101000000_Init", "20200102000000_Init"))

	_, err := m.PlanFor(nil, false, "Init")
	if !errors.Is(err, migration.ErrAmbiguousMigration) {
		t.Errorf("expected ErrAmbiguousMigration, got %v", err)
	}
	_, err = m.PlanFor(nil, false, "Missing")
	if !errors.Is(err, migration.ErrMigrationNotFound) {
		t.Errorf("expected ErrMigrationNotFound, got %v", err)
	}
	var opErr *migration.OperationError
	if !errors.As(err, &opErr) {
		t.Errorf("expected an operation error, got %T", err)
	}
}

func TestGenerateScript(t *testing.T) {
	migrations := buildMigrations(t, sqlgen.Postgres,
		[]string{"20200101000000_Blogs", "20200102000000_Posts"},
		[]string{blogsModel, postsModel})
	m := newMigrator(t, sqlgen.Postgres, migrations)

	up, err := m.GenerateScript("", "")
	if err != nil {
		t.Fatal(err)
	}
	order := []string{
		`CREATE TABLE "__EFMigrationsHistory"`,
		`CREATE TABLE "Blogs"`,
		`VALUES ('20200101000000_Blogs', '0.1.0');`,
		`CREATE TABLE "Posts"`,
		`CREATE INDEX "IX_Posts_BlogId" ON "Posts" ("BlogId");`,
		`VALUES ('20200102000000_Posts', '0.1.0');`,
	}
	assertInOrder(t, up, order)

	down, err := m.GenerateScript("Posts", migration.InitialDatabase)
	if err != nil {
		t.Fatal(err)
	}
	assertInOrder(t, down, []string{
		`DROP TABLE "Posts";`,
		`WHERE "MigrationId" = '20200102000000_Posts';`,
		`DROP TABLE "Blogs";`,
		`WHERE "MigrationId" = '20200101000000_Blogs';`,
	})
	if strings.Contains(down, "__EFMigrationsHistory\" (") {
		t.Error("a down script must not create the history table")
	}

	partial, err := m.GenerateScript("Blogs", "Posts")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(partial, `CREATE TABLE "Blogs"`) || !strings.Contains(partial, `CREATE TABLE "Posts"`) {
		t.Errorf("unexpected partial script:\n%s", partial)
	}
}

func TestGenerateScriptSQLServerBatches(t *testing.T) {
	migrations := []*migration.Migration{{
		ID:   "20200101000000_Raw",
		Up:   operations.List{&operations.RawSQL{SQL: "SELECT 1;"}},
		Down: operations.List{&operations.RawSQL{SQL: "SELECT 2;"}},
	}}
	m := newMigrator(t, sqlgen.SQLServer, migrations)

	script, err := m.GenerateScript("", "")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(script, "GO\n"); got < 3 {
		t.Errorf("expected every command to end its batch, got %d GO lines:\n%s", got, script)
	}
}

func assertInOrder(t *testing.T, script string, fragments []string) {
	t.Helper()
	pos := 0
	for _, f := range fragments {
		i := strings.Index(script[pos:], f)
		if i < 0 {
			t.Fatalf("fragment %q missing or out of order in:\n%s", f, script)
		}
		pos += i + len(f)
	}
}
