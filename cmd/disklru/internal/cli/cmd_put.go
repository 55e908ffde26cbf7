package cli

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"
)

// PutCmd returns the put command.
func PutCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("put", flag.ContinueOnError),
		Usage: "put <key> <value>...",
		Short: "Write values for a key",
		Long: `Write one value per slot, starting at slot 0, and commit.

A new key needs a value for every slot. Updating an existing key may give
fewer values; the remaining slots keep their current value.`,
		Args:     atLeastArgs(2),
		Slots:    func() int { return a.cfg.ValueCount },
		Examples: []string{"put user-42 alice", "put user-42 alice admin"},
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execPut(o, a, args)
		},
	}
}

func execPut(o *IO, a *app, args []string) error {
	values := args[1:]
	if len(values) > a.cfg.ValueCount {
		return fmt.Errorf("%w: %d values given, cache has %d slots", ErrTooManyArgs, len(values), a.cfg.ValueCount)
	}

	key, err := a.keys.cacheKey(args[0])
	if err != nil {
		return err
	}

	ed, ok, err := a.cache.Edit(key)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("%w: %s", ErrBusy, args[0])
	}
	defer ed.Close()

	for i, v := range values {
		if err := ed.Set(i, v); err != nil {
			return errors.Join(err, ed.Abort())
		}
	}

	if err := ed.Commit(); err != nil {
		return err
	}

	o.Println("stored", key)

	return nil
}
