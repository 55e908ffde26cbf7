package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// ClearCmd returns the clear command.
func ClearCmd(a *app) *Command {
	return &Command{
		Flags:    flag.NewFlagSet("clear", flag.ContinueOnError),
		Usage:    "clear",
		Short:    "Remove every entry",
		Examples: []string{"clear", "--cache-dir /tmp/c clear"},
		Exec: func(_ context.Context, o *IO, _ []string) error {
			if err := a.cache.Clear(); err != nil {
				return err
			}

			o.Println("cleared")

			return nil
		},
	}
}
