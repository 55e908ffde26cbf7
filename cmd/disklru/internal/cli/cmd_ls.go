package cli

import (
	"context"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"
)

// LsCmd returns the ls command.
func LsCmd(a *app) *Command {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	limit := fs.Int("limit", 0, "Show at most `n` entries (0 = all)")

	return &Command{
		Flags:    fs,
		Usage:    "ls [--limit n]",
		Short:    "List entries, least recently used first",
		Long:     "List entries, least recently used first, as <key> <lengths> <state>.",
		Slots:    func() int { return a.cfg.ValueCount },
		Examples: []string{"ls", "ls --limit 10"},
		Exec: func(_ context.Context, o *IO, _ []string) error {
			execLs(o, a, *limit)

			return nil
		},
	}
}

func execLs(o *IO, a *app, limit int) {
	for i, e := range a.cache.Entries() {
		if limit > 0 && i >= limit {
			return
		}

		lengths := make([]string, len(e.Lengths))
		for j, n := range e.Lengths {
			lengths[j] = strconv.FormatInt(n, 10)
		}

		state := "clean"

		switch {
		case e.Editing && e.Readable:
			state = "editing"
		case e.Editing:
			state = "new"
		}

		o.Printf("%s\t%s\t%s\n", e.Key, strings.Join(lengths, ","), state)
	}
}
