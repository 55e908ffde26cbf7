package cli

import (
	"context"
	"fmt"
	"strconv"

	flag "github.com/spf13/pflag"
)

// SetMaxSizeCmd returns the set-max-size command.
func SetMaxSizeCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("set-max-size", flag.ContinueOnError),
		Usage: "set-max-size <bytes>",
		Short: "Change the size bound and evict down to it",
		Long: `Change the size bound for this run and evict down to it.

The bound is not stored in the cache directory. Set max_size in the config
file to keep it.`,
		Args:     exactArgs(1),
		Examples: []string{"set-max-size 1048576"},
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execSetMaxSize(o, a, args[0])
		},
	}
}

func execSetMaxSize(o *IO, a *app, arg string) error {
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", arg, err)
	}

	if err := a.cache.SetMaxSize(n); err != nil {
		return err
	}

	if err := a.cache.Flush(); err != nil {
		return err
	}

	o.Printf("size=%d max_size=%d\n", a.cache.Size(), a.cache.MaxSize())

	return nil
}
