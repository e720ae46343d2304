package color

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Color represents a colorizer that can be enabled or disabled
type Color struct {
	enabled bool

	add     *color.Color
	change  *color.Color
	destroy *color.Color
	bold    *color.Color
	cyan    *color.Color
	faint   *color.Color
}

// New creates a new Color instance
func New(enabled bool) *Color {
	c := &Color{
		enabled: enabled && shouldEnableColor(),
		add:     color.New(color.FgGreen),
		change:  color.New(color.FgYellow),
		destroy: color.New(color.FgRed),
		bold:    color.New(color.Bold),
		cyan:    color.New(color.FgCyan),
		faint:   color.New(color.Faint),
	}
	for _, attr := range []*color.Color{c.add, c.change, c.destroy, c.bold, c.cyan, c.faint} {
		if c.enabled {
			attr.EnableColor()
		} else {
			attr.DisableColor()
		}
	}
	return c
}

// shouldEnableColor determines if color should be enabled based on environment.
// color.NoColor already accounts for NO_COLOR and non-terminal output.
func shouldEnableColor() bool {
	if color.NoColor {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

// Enabled reports whether output is colored.
func (c *Color) Enabled() bool {
	return c.enabled
}

// Add colors a string to indicate additions (green)
func (c *Color) Add(text string) string {
	return c.add.Sprint(text)
}

// Change colors a string to indicate modifications (yellow)
func (c *Color) Change(text string) string {
	return c.change.Sprint(text)
}

// Destroy colors a string to indicate deletions (red)
func (c *Color) Destroy(text string) string {
	return c.destroy.Sprint(text)
}

// Bold makes text bold
func (c *Color) Bold(text string) string {
	return c.bold.Sprint(text)
}

// Cyan colors text cyan (for headers and labels)
func (c *Color) Cyan(text string) string {
	return c.cyan.Sprint(text)
}

// FormatMigrationLine formats one entry of a migration listing. Pending
// migrations are marked and highlighted.
func (c *Color) FormatMigrationLine(id string, pending bool) string {
	if pending {
		return fmt.Sprintf("  %s %s %s", c.Change("~"), id, c.faint.Sprint("(Pending)"))
	}
	return fmt.Sprintf("  %s %s", c.Add("+"), id)
}

// FormatError formats an error report with its category.
func (c *Color) FormatError(kind, message string) string {
	if kind == "" {
		return c.Destroy("Error: ") + message
	}
	return c.Destroy("Error: ") + message + " " + c.faint.Sprint("("+kind+")")
}
