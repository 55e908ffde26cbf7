package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"
)

// GetCmd returns the get command.
func GetCmd(a *app) *Command {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	slot := fs.IntP("slot", "s", -1, "Print only value `i`, without the [i] prefix")

	return &Command{
		Flags:    fs,
		Usage:    "get <key> [--slot i]",
		Short:    "Print the values of a key",
		Long:     "Print every value slot of <key> as \"[i] value\". Fails if the key is absent.",
		Args:     exactArgs(1),
		Slots:    func() int { return a.cfg.ValueCount },
		Examples: []string{"get user-42", "get --slot 1 user-42", "--hash-keys get \"any key\""},
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execGet(o, a, args[0], *slot)
		},
	}
}

func execGet(o *IO, a *app, userKey string, slot int) error {
	key, err := a.keys.cacheKey(userKey)
	if err != nil {
		return err
	}

	snap, ok, err := a.cache.Get(key)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, userKey)
	}
	defer snap.Close()

	if slot >= 0 {
		v, err := snap.String(slot)
		if err != nil {
			return err
		}

		o.Println(v)

		return nil
	}

	for i := range a.cfg.ValueCount {
		v, err := snap.String(i)
		if err != nil {
			return err
		}

		o.Printf("[%d] %s\n", i, v)
	}

	return nil
}
