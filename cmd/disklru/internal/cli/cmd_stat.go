package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// StatCmd returns the stat command.
func StatCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("stat", flag.ContinueOnError),
		Usage: "stat",
		Short: "Show cache directory, size and entry count",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			c := a.cache

			o.Printf("dir=%s\n", c.Dir())
			o.Printf("size=%d\n", c.Size())
			o.Printf("max_size=%d\n", c.MaxSize())
			o.Printf("entries=%d\n", c.Len())
			o.Printf("value_count=%d\n", a.cfg.ValueCount)

			return nil
		},
	}
}
