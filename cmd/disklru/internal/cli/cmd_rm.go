package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// RmCmd returns the rm command.
func RmCmd(a *app) *Command {
	return &Command{
		Flags:    flag.NewFlagSet("rm", flag.ContinueOnError),
		Usage:    "rm <key>...",
		Short:    "Remove keys",
		Args:     atLeastArgs(1),
		Examples: []string{"rm user-42", "rm user-42 user-43"},
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execRm(o, a, args)
		},
	}
}

func execRm(o *IO, a *app, args []string) error {
	for _, userKey := range args {
		key, err := a.keys.cacheKey(userKey)
		if err != nil {
			return err
		}

		removed, err := a.cache.Remove(key)
		if err != nil {
			return err
		}

		if removed {
			o.Println("removed", userKey)
		} else {
			o.Println("absent", userKey)
		}
	}

	return nil
}
