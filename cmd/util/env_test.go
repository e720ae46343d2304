package util

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestGetEnvWithDefault(t *testing.T) {
	t.Setenv("TEST_STRING", "test-value")
	if got := GetEnvWithDefault("TEST_STRING", "default"); got != "test-value" {
		t.Errorf("Expected GetEnvWithDefault to return 'test-value', got '%s'", got)
	}

	if got := GetEnvWithDefault("RELMIG_MISSING_VAR", "default"); got != "default" {
		t.Errorf("Expected GetEnvWithDefault to return 'default', got '%s'", got)
	}

	// Empty values fall back to the default.
	t.Setenv("EMPTY_VAR", "")
	if got := GetEnvWithDefault("EMPTY_VAR", "default"); got != "default" {
		t.Errorf("Expected GetEnvWithDefault to return 'default' for empty var, got '%s'", got)
	}
}

func TestGetEnvIntWithDefault(t *testing.T) {
	t.Setenv("TEST_INT", "12345")
	if got := GetEnvIntWithDefault("TEST_INT", 0); got != 12345 {
		t.Errorf("Expected GetEnvIntWithDefault to return 12345, got %d", got)
	}

	t.Setenv("TEST_INVALID_INT", "not-a-number")
	if got := GetEnvIntWithDefault("TEST_INVALID_INT", 999); got != 999 {
		t.Errorf("Expected GetEnvIntWithDefault to return default 999, got %d", got)
	}

	if got := GetEnvIntWithDefault("RELMIG_MISSING_INT", 777); got != 777 {
		t.Errorf("Expected GetEnvIntWithDefault to return default 777, got %d", got)
	}
}

func newConfigCommand(c *Config) *cobra.Command {
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	c.BindFlags(cmd)
	return cmd
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("RELMIG_DIALECT", "sqlite")
	t.Setenv("PGDATABASE", "env-db")
	t.Setenv("PGUSER", "env-user")
	t.Setenv("PGHOST", "env-host")
	t.Setenv("PGPORT", "1234")
	t.Setenv("RELMIG_MODEL", "env-model.yaml")

	c := &Config{}
	cmd := newConfigCommand(c)
	cmd.SetArgs([]string{"--db", "flag-db"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	c.ApplyEnv(cmd)

	if c.Database != "flag-db" {
		t.Errorf("Expected explicit flag to win, got '%s'", c.Database)
	}
	if c.Dialect != "sqlite" || c.User != "env-user" || c.Host != "env-host" || c.Port != 1234 {
		t.Errorf("Expected environment fallbacks, got %+v", c)
	}
	if c.ModelPath != "env-model.yaml" {
		t.Errorf("Expected model path from RELMIG_MODEL, got '%s'", c.ModelPath)
	}
	if c.MigrationsDir != "migrations" {
		t.Errorf("Expected default migrations dir, got '%s'", c.MigrationsDir)
	}
}

func TestConnection(t *testing.T) {
	c := &Config{Dialect: "mssql", Host: "db", User: "sa"}
	if _, err := c.Connection(); err == nil {
		t.Error("Expected an error without a database name")
	}

	c.Database = "app"
	conn, err := c.Connection()
	if err != nil {
		t.Fatalf("Connection failed: %v", err)
	}
	if conn.Dialect != "sqlserver" || conn.Database != "app" || conn.ApplicationName != "relmig" {
		t.Errorf("Unexpected connection config: %+v", conn)
	}

	c.Dialect = "oracle"
	if _, err := c.Connection(); err == nil {
		t.Error("Expected an error for an unsupported dialect")
	}
}
