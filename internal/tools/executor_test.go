package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgschema/relmig/internal/database"
	"github.com/pgschema/relmig/internal/migration"
	"github.com/pgschema/relmig/internal/sqlgen"
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
      - {name: BlogId, type: int32}
    primary_key: {properties: [Id]}
    foreign_keys:
      - {properties: [BlogId], principal: Blog, on_delete: CASCADE}
`

type reported struct {
	kind, message, stack string
}

type recordingHandler struct {
	results []any
	errors  []reported
}

func (h *recordingHandler) OnResult(value any) {
	h.results = append(h.results, value)
}

func (h *recordingHandler) OnError(kind, message, stack string) {
	h.errors = append(h.errors, reported{kind, message, stack})
}

func (h *recordingHandler) last() any {
	if len(h.results) == 0 {
		return nil
	}
	return h.results[len(h.results)-1]
}

type fixture struct {
	dir       string
	modelPath string
	handler   *recordingHandler
	executor  *Executor
}

func newFixture(t *testing.T, connected bool) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:       dir,
		modelPath: filepath.Join(dir, "model.yaml"),
		handler:   &recordingHandler{},
	}
	opts := Options{
		Dialect:        sqlgen.SQLite,
		MigrationsDir:  filepath.Join(dir, "migrations"),
		ModelPath:      f.modelPath,
		ProductVersion: "0.1.0",
		Now:            func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
	if connected {
		opts.Connection = &database.ConnectionConfig{Dialect: sqlgen.SQLite, Database: filepath.Join(dir, "app.db")}
	}
	executor, err := NewExecutor(opts, f.handler)
	require.NoError(t, err)
	f.executor = executor
	return f
}

func (f *fixture) writeModel(t *testing.T, doc string) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.modelPath, []byte(doc), 0o644))
}

func TestAddMigration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.writeModel(t, blogsModel)

	require.NoError(t, f.executor.AddMigration(ctx, "initial create"))
	added := f.handler.last().(*AddMigrationResult)
	assert.Equal(t, "20240501120000_InitialCreate", added.ID)
	assert.Equal(t, 1, added.Operations)
	assert.FileExists(t, added.Path)

	mig, err := migration.ReadFile(added.Path)
	require.NoError(t, err)
	assert.Len(t, mig.Up, 1)
	assert.Len(t, mig.Down, 1)
	assert.Equal(t, "0.1.0", mig.ProductVersion)

	// A second migration in the same second still sorts after the first.
	f.writeModel(t, postsModel)
	require.NoError(t, f.executor.AddMigration(ctx, "AddPosts"))
	assert.Equal(t, "20240501120001_AddPosts", f.handler.last().(*AddMigrationResult).ID)
	assert.Empty(t, f.handler.errors)
}

func TestAddMigrationRejectsUsedName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.writeModel(t, blogsModel)

	require.NoError(t, f.executor.AddMigration(ctx, "Initial"))
	err := f.executor.AddMigration(ctx, "initial")
	require.ErrorIs(t, err, ErrNameInUse)

	require.Len(t, f.handler.errors, 1)
	assert.Equal(t, OperationErrorKind, f.handler.errors[0].kind)
	assert.Empty(t, f.handler.errors[0].stack)
}

func TestHasPendingModelChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.writeModel(t, blogsModel)

	require.NoError(t, f.executor.HasPendingModelChanges(ctx))
	assert.Equal(t, true, f.handler.last())

	require.NoError(t, f.executor.AddMigration(ctx, "Initial"))
	require.NoError(t, f.executor.HasPendingModelChanges(ctx))
	assert.Equal(t, false, f.handler.last())

	f.writeModel(t, postsModel)
	require.NoError(t, f.executor.HasPendingModelChanges(ctx))
	assert.Equal(t, true, f.handler.last())
}

func TestScriptMigration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.writeModel(t, blogsModel)
	require.NoError(t, f.executor.AddMigration(ctx, "Initial"))

	require.NoError(t, f.executor.ScriptMigration(ctx, "", ""))
	script := f.handler.last().(string)
	assert.Contains(t, script, `CREATE TABLE "__EFMigrationsHistory"`)
	assert.Contains(t, script, `CREATE TABLE "Blogs"`)
	assert.Contains(t, script, `VALUES ('20240501120000_Initial', '0.1.0');`)
	assert.Less(t, strings.Index(script, "__EFMigrationsHistory"), strings.Index(script, `"Blogs"`))

	err := f.executor.ScriptMigration(ctx, "", "Missing")
	require.ErrorIs(t, err, migration.ErrMigrationNotFound)
	assert.Equal(t, OperationErrorKind, f.handler.errors[0].kind)
}

func TestUpdateListAndRemove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.writeModel(t, blogsModel)
	require.NoError(t, f.executor.AddMigration(ctx, "Initial"))
	f.writeModel(t, postsModel)
	require.NoError(t, f.executor.AddMigration(ctx, "AddPosts"))

	require.NoError(t, f.executor.GetMigrations(ctx))
	assert.Equal(t, []MigrationInfo{
		{ID: "20240501120000_Initial", Name: "Initial"},
		{ID: "20240501120001_AddPosts", Name: "AddPosts"},
	}, f.handler.last())

	require.NoError(t, f.executor.UpdateDatabase(ctx, "Initial"))
	require.NoError(t, f.executor.GetMigrations(ctx))
	assert.Equal(t, []MigrationInfo{
		{ID: "20240501120000_Initial", Name: "Initial", Applied: true},
		{ID: "20240501120001_AddPosts", Name: "AddPosts"},
	}, f.handler.last())

	// The newest migration is pending, so it can be removed without force.
	require.NoError(t, f.executor.RemoveMigration(ctx, false))
	assert.Equal(t, &RemoveMigrationResult{ID: "20240501120001_AddPosts"}, f.handler.last())

	err := f.executor.RemoveMigration(ctx, false)
	require.ErrorIs(t, err, ErrMigrationApplied)
	assert.FileExists(t, filepath.Join(f.dir, "migrations", "20240501120000_Initial.yaml"))

	require.NoError(t, f.executor.RemoveMigration(ctx, true))
	assert.Equal(t, &RemoveMigrationResult{ID: "20240501120000_Initial", Reverted: true}, f.handler.last())
	assert.NoFileExists(t, filepath.Join(f.dir, "migrations", "20240501120000_Initial.yaml"))

	err = f.executor.RemoveMigration(ctx, false)
	require.ErrorIs(t, err, ErrNoMigrations)
}

func TestOperationsWithoutConfiguration(t *testing.T) {
	ctx := context.Background()
	handler := &recordingHandler{}
	executor, err := NewExecutor(Options{
		Dialect:       sqlgen.Postgres,
		MigrationsDir: filepath.Join(t.TempDir(), "migrations"),
	}, handler)
	require.NoError(t, err)

	err = executor.AddMigration(ctx, "Initial")
	require.ErrorIs(t, err, ErrNoModel)
	err = executor.UpdateDatabase(ctx, "")
	require.ErrorIs(t, err, ErrNoConnection)

	require.Len(t, handler.errors, 2)
	for _, r := range handler.errors {
		assert.Equal(t, OperationErrorKind, r.kind)
	}
}

func TestUnexpectedErrorsCarryStack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	require.NoError(t, os.MkdirAll(filepath.Join(f.dir, "migrations"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "migrations", "20240101000000_Broken.yaml"), []byte("id: [\n"), 0o644))

	require.Error(t, f.executor.GetMigrations(ctx))
	require.Len(t, f.handler.errors, 1)
	assert.NotEqual(t, OperationErrorKind, f.handler.errors[0].kind)
	assert.NotEmpty(t, f.handler.errors[0].stack)
}
