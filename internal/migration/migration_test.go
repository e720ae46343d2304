package migration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/pgschema/relmig/internal/operations"
	"github.com/pgschema/relmig/model"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"AddBlogTags", "AddBlogTags"},
		{"add blog tags", "AddBlogTags"},
		{"add-blog_tags v2", "AddBlogTagsV2"},
		{"initialCreate", "InitialCreate"},
	}
	for _, tt := range tests {
		got, err := NormalizeName(tt.input)
		if err != nil {
			t.Fatalf("NormalizeName(%q): %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}

	for _, bad := range []string{"", "  -- ", "0"} {
		if _, err := NormalizeName(bad); !errors.Is(err, ErrInvalidName) {
			t.Errorf("NormalizeName(%q) error = %v, want ErrInvalidName", bad, err)
		}
	}
}

func TestGenerateID(t *testing.T) {
	now := time.Date(2024, 3, 9, 17, 4, 5, 0, time.FixedZone("CET", 3600))
	id, err := GenerateID("initial create", now)
	if err != nil {
		t.Fatal(err)
	}
	if id != "20240309160405_InitialCreate" {
		t.Errorf("unexpected id %q", id)
	}
	if !IsValidID(id) {
		t.Errorf("generated id %q is not valid", id)
	}
	if name := NameOf(id); name != "InitialCreate" {
		t.Errorf("NameOf(%q) = %q", id, name)
	}
}

func testAssembly(t *testing.T, ids ...string) *Assembly {
	t.Helper()
	var ms []*Migration
	for _, id := range ids {
		ms = append(ms, &Migration{ID: id})
	}
	a, err := NewAssembly(ms)
	if err != nil {
		t.Fatalf("NewAssembly: %v", err)
	}
	return a
}

func TestAssemblyOrdersMigrations(t *testing.T) {
	a := testAssembly(t, "20200103000000_AddY", "20200101000000_Init", "20200102000000_AddX")

	var got []string
	for _, m := range a.Migrations() {
		got = append(got, m.ID)
	}
	want := []string{"20200101000000_Init", "20200102000000_AddX", "20200103000000_AddY"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if i := a.Index("20200102000000_AddX"); i != 1 {
		t.Errorf("Index = %d, want 1", i)
	}
	if i := a.Index("20200104000000_Missing"); i != -1 {
		t.Errorf("Index of missing migration = %d, want -1", i)
	}
	if a.Last().ID != "20200103000000_AddY" {
		t.Errorf("Last = %s", a.Last().ID)
	}
}

func TestAssemblyRejectsDuplicates(t *testing.T) {
	_, err := NewAssembly([]*Migration{{ID: "20200101000000_Init"}, {ID: "20200101000000_Init"}})
	if !errors.Is(err, ErrDuplicateMigration) {
		t.Fatalf("expected ErrDuplicateMigration, got %v", err)
	}
	if _, err := NewAssembly([]*Migration{{ID: "Init"}}); err == nil {
		t.Fatal("expected an error for an id without timestamp")
	}
}

func TestFindMigrationID(t *testing.T) {
	a := testAssembly(t, "20200101000000_Init", "20200102000000_AddX", "20200103000000_addx", "20200104000000_AddY")

	tests := []struct {
		input   string
		want    string
		wantErr error
	}{
		{input: "20200102000000_AddX", want: "20200102000000_AddX"},
		{input: "init", want: "20200101000000_Init"},
		{input: "ADDY", want: "20200104000000_AddY"},
		{input: "AddX", wantErr: ErrAmbiguousMigration},
		{input: "AddZ", wantErr: ErrMigrationNotFound},
	}
	for _, tt := range tests {
		got, err := a.FindMigrationID(tt.input)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("FindMigrationID(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("FindMigrationID(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("FindMigrationID(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestWriteAndLoadDir(t *testing.T) {
	dir := t.TempDir()

	target, err := model.Parse([]byte(`
entities:
  - name: Product
    properties:
      - {name: Id, type: int32, identity: true}
      - {name: Name, type: string, max_length: 50}
    primary_key: {properties: [Id]}
`))
	if err != nil {
		t.Fatal(err)
	}
	first := &Migration{
		ID:             "20200101000000_Init",
		ProductVersion: "0.1.0",
		Up: operations.List{&operations.CreateTable{
			Name:       "Products",
			Columns:    []*operations.AddColumn{{Name: "Id", ColumnDefinition: operations.ColumnDefinition{Type: model.TypeInt32, Identity: true}}},
			PrimaryKey: &operations.AddPrimaryKey{Name: "PK_Products", Columns: []string{"Id"}},
		}},
		Down:        operations.List{&operations.DropTable{Name: "Products"}},
		TargetModel: target,
	}
	second := &Migration{
		ID:   "20200102000000_Seed",
		Up:   operations.List{&operations.RawSQL{SQL: "INSERT INTO \"Products\" (\"Name\") VALUES ('x');"}},
		Down: operations.List{&operations.RawSQL{SQL: "DELETE FROM \"Products\";"}},
	}
	for _, m := range []*Migration{second, first} {
		if _, err := WriteFile(dir, m); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a migration"), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := LoadDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if a.Len() != 2 {
		t.Fatalf("expected 2 migrations, got %d", a.Len())
	}
	loaded := a.Find(first.ID)
	if diff := cmp.Diff(first.Up, loaded.Up); diff != "" {
		t.Errorf("up operations mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(first.Down, loaded.Down); diff != "" {
		t.Errorf("down operations mismatch (-want +got):\n%s", diff)
	}
	if loaded.TargetModel.TableOf("Product") == nil {
		t.Error("target model snapshot was not restored")
	}
	if a.ModelSnapshot() != nil {
		t.Error("the newest migration carries no snapshot")
	}

	if err := RemoveFile(dir, second.ID); err != nil {
		t.Fatal(err)
	}
	a, err = LoadDir(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if a.Len() != 1 || a.ModelSnapshot() == nil {
		t.Errorf("unexpected assembly after removal: %d migrations", a.Len())
	}
}

func TestLoadMissingDir(t *testing.T) {
	a, err := LoadDir(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatal(err)
	}
	if a.Len() != 0 {
		t.Errorf("expected no migrations, got %d", a.Len())
	}
}

func TestReadFileChecksID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "20200101000000_Init.yaml")
	if err := os.WriteFile(path, []byte("id: 20200101000000_Other\nup: []\ndown: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(path); err == nil {
		t.Fatal("expected an id mismatch error")
	}
}

func TestOperationError(t *testing.T) {
	err := NewOperationError(ErrMigrationNotFound)
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected *OperationError, got %T", err)
	}
	if !errors.Is(err, ErrMigrationNotFound) {
		t.Error("OperationError must unwrap to its cause")
	}
	if NewOperationError(err) != err {
		t.Error("wrapping twice must return the same error")
	}
	if NewOperationError(nil) != nil {
		t.Error("nil stays nil")
	}
}
