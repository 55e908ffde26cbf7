package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// newLogger returns a tint logger on errOut. Colors are used only when
// errOut is a terminal.
func newLogger(errOut io.Writer, level slog.Level) *slog.Logger {
	noColor := true

	if f, ok := errOut.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		noColor = false
		errOut = colorable.NewColorable(f)
	}

	return slog.New(tint.NewHandler(errOut, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
	}))
}
