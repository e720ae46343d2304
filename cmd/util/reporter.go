package util

import (
	"errors"
	"fmt"
	"io"

	"github.com/pgschema/relmig/internal/color"
)

// ErrReported marks errors that a Reporter has already printed.
var ErrReported = errors.New("error already reported")

// Reported wraps err so the root command exits non-zero without printing it again.
func Reported(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrReported, err)
}

// Reporter prints operation outcomes. Format renders a result; a nil
// Format prints strings verbatim and ignores other values.
type Reporter struct {
	Out    io.Writer
	Err    io.Writer
	Color  *color.Color
	Format func(value any) string
}

func (r *Reporter) OnResult(value any) {
	var text string
	switch {
	case r.Format != nil:
		text = r.Format(value)
	default:
		text, _ = value.(string)
	}
	if text != "" {
		fmt.Fprint(r.Out, text)
	}
}

func (r *Reporter) OnError(kind, message, stack string) {
	fmt.Fprintln(r.Err, r.Color.FormatError(kind, message))
	if stack != "" {
		fmt.Fprintln(r.Err, stack)
	}
}
