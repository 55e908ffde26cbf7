package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command is one disklru subcommand.
type Command struct {
	Flags *flag.FlagSet

	// Usage follows "disklru" in help output. Its first word is the name.
	Usage string

	// Short is the one-line summary in command listings.
	Short string

	// Long is the body of "disklru <cmd> --help". Short is used when empty.
	Long string

	// Args bounds the positional arguments left after flag parsing.
	// The zero value accepts none.
	Args ArgRange

	// Slots reports the cache's value count for commands that address
	// slots. Help shows the valid slot range when it returns > 0.
	Slots func() int

	// Examples are full command lines shown at the end of help.
	Examples []string

	Exec func(ctx context.Context, o *IO, args []string) error
}

// ArgRange is an inclusive positional argument count. Max < 0 is unbounded.
type ArgRange struct {
	Min, Max int
}

func exactArgs(n int) ArgRange { return ArgRange{Min: n, Max: n} }

func atLeastArgs(n int) ArgRange { return ArgRange{Min: n, Max: -1} }

func (r ArgRange) check(name string, n int) error {
	switch {
	case n < r.Min && r.Min == r.Max:
		return fmt.Errorf("%w: %s takes %d, got %d", ErrArgsRequired, name, r.Min, n)
	case n < r.Min:
		return fmt.Errorf("%w: %s takes at least %d, got %d", ErrArgsRequired, name, r.Min, n)
	case r.Max >= 0 && n > r.Max:
		return fmt.Errorf("%w: %s takes at most %d, got %d", ErrTooManyArgs, name, r.Max, n)
	}

	return nil
}

// Name returns the first word of Usage.
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")

	return name
}

// PrintHelp writes the help for "disklru <cmd> --help".
func (c *Command) PrintHelp(o *IO) {
	o.Println("Usage: disklru", c.Usage)
	o.Println()

	if c.Long != "" {
		o.Println(c.Long)
	} else {
		o.Println(c.Short)
	}

	if c.Slots != nil {
		if n := c.Slots(); n > 0 {
			o.Println()
			o.Printf("Slots: %d per key, numbered 0 to %d.\n", n, n-1)
		}
	}

	if c.Flags != nil && c.Flags.HasFlags() {
		var buf strings.Builder

		c.Flags.SetOutput(&buf)
		c.Flags.PrintDefaults()
		c.Flags.SetOutput(&strings.Builder{})

		o.Println()
		o.Println("Flags:")
		o.Printf("%s", buf.String())
	}

	if len(c.Examples) > 0 {
		o.Println()
		o.Println("Examples:")

		for _, ex := range c.Examples {
			o.Println("  disklru", ex)
		}
	}
}

// Run parses flags, checks the argument count and executes the command.
// It prints errors itself and returns the exit code.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(&strings.Builder{})

	err := c.Flags.Parse(args)
	if errors.Is(err, flag.ErrHelp) {
		c.PrintHelp(o)

		return 0
	}

	if err == nil {
		err = c.Args.check(c.Name(), c.Flags.NArg())
	}

	if err != nil {
		o.ErrPrintln("error:", err)
		o.ErrPrintln("usage: disklru", c.Usage)

		return 1
	}

	if err := c.Exec(ctx, o, c.Flags.Args()); err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	return 0
}

// listing renders "usage  short" rows aligned on the widest usage. extra
// rows are appended in the same layout.
func listing(cmds []*Command, extra ...[2]string) []string {
	rows := make([][2]string, 0, len(cmds)+len(extra))
	for _, c := range cmds {
		rows = append(rows, [2]string{c.Usage, c.Short})
	}

	rows = append(rows, extra...)

	width := 0
	for _, r := range rows {
		width = max(width, len(r[0]))
	}

	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = fmt.Sprintf("  %-*s  %s", width, r[0], r[1])
	}

	return out
}
