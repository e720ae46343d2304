package color

import (
	"strings"
	"testing"
)

func TestDisabledColorIsPlain(t *testing.T) {
	c := New(false)

	if c.Enabled() {
		t.Fatal("color should be disabled")
	}
	if got := c.Add("x"); got != "x" {
		t.Errorf("Add() = %q, want plain text", got)
	}
	if got := c.FormatMigrationLine("20240101000000_Init", false); got != "  + 20240101000000_Init" {
		t.Errorf("FormatMigrationLine() = %q", got)
	}
	if got := c.FormatMigrationLine("20240102000000_AddTags", true); got != "  ~ 20240102000000_AddTags (Pending)" {
		t.Errorf("FormatMigrationLine() = %q", got)
	}
	if got := c.FormatError("OperationError", "not found"); got != "Error: not found (OperationError)" {
		t.Errorf("FormatError() = %q", got)
	}
}

func TestDumbTerminal(t *testing.T) {
	t.Setenv("TERM", "dumb")
	c := New(true)
	if c.Enabled() {
		t.Fatal("color should be disabled on a dumb terminal")
	}
	if strings.Contains(c.Destroy("x"), "\x1b[") {
		t.Error("escape codes written with color disabled")
	}
}
