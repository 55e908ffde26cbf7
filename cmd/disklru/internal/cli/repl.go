package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/disklru/internal/linereader"
)

// ReplCmd returns the repl command.
func ReplCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("repl", flag.ContinueOnError),
		Usage: "repl",
		Short: "Run commands interactively against one open cache",
		Long: `Read commands line by line and run them against the open cache.

Any cache command works without the "disklru" prefix. Type "help" for the
list and "exit" to leave. On a terminal, input has history and tab
completion; otherwise lines are read from stdin until EOF.`,
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return execRepl(ctx, o, a)
		},
	}
}

// replExcluded are commands that make no sense inside the repl.
var replExcluded = map[string]bool{"repl": true, "init": true}

// lineSource yields input lines. io.EOF ends the session.
type lineSource interface {
	next() (string, error)
	close()
}

func execRepl(ctx context.Context, o *IO, a *app) error {
	src := newLineSource(a)
	defer src.close()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line, err := src.next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		fields := strings.Fields(line)
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		name := fields[0]

		switch name {
		case "exit", "quit", "q":
			return nil
		case "help", "?":
			printReplHelp(o, a)

			continue
		}

		cmd := findCommand(allCommands(a), name)
		if cmd == nil || replExcluded[name] {
			o.ErrPrintln("error:", fmt.Errorf("%w: %s (type 'help' for commands)", ErrUnknownCommand, name))

			continue
		}

		// Errors are printed by Run; the session goes on.
		_ = cmd.Run(ctx, o, fields[1:])
	}
}

func printReplHelp(o *IO, a *app) {
	var cmds []*Command

	for _, c := range allCommands(a) {
		if !replExcluded[c.Name()] {
			cmds = append(cmds, c)
		}
	}

	o.Println("Commands:")

	for _, line := range listing(cmds, [2]string{"exit", "Leave the repl"}) {
		o.Println(line)
	}
}

func newLineSource(a *app) lineSource {
	if f, ok := a.stdin.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return newTerminalSource(a)
	}

	return &readerSource{r: linereader.New(a.stdin)}
}

// readerSource reads plain lines from a non-terminal stdin. A last line
// without a newline is still returned, once.
type readerSource struct {
	r        *linereader.Reader
	tailDone bool
}

func (s *readerSource) next() (string, error) {
	line, err := s.r.ReadLine()
	if errors.Is(err, io.EOF) && s.r.HasUnterminatedLine() && !s.tailDone {
		s.tailDone = true

		return s.r.Fragment(), nil
	}

	return line, err
}

func (s *readerSource) close() {}

// terminalSource reads lines with editing, history and completion.
type terminalSource struct {
	state   *liner.State
	history string
}

func newTerminalSource(a *app) *terminalSource {
	s := &terminalSource{state: liner.NewLiner(), history: historyFile(a.env)}

	s.state.SetCtrlCAborts(true)
	s.state.SetCompleter(func(line string) []string {
		var out []string

		for _, c := range allCommands(a) {
			if name := c.Name(); !replExcluded[name] && strings.HasPrefix(name, line) {
				out = append(out, name)
			}
		}

		sort.Strings(out)

		return out
	})

	if s.history != "" {
		if f, err := os.Open(s.history); err == nil {
			_, _ = s.state.ReadHistory(f)
			_ = f.Close()
		}
	}

	return s
}

func (s *terminalSource) next() (string, error) {
	line, err := s.state.Prompt("disklru> ")
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}

	if err != nil {
		return "", err
	}

	if strings.TrimSpace(line) != "" {
		s.state.AppendHistory(line)
	}

	return line, nil
}

func (s *terminalSource) close() {
	if s.history != "" {
		if f, err := os.Create(s.history); err == nil {
			_, _ = s.state.WriteHistory(f)
			_ = f.Close()
		}
	}

	_ = s.state.Close()
}

// historyFile returns ~/.disklru_history, or "" without a home directory.
func historyFile(env map[string]string) string {
	home := env["HOME"]
	if home == "" {
		return ""
	}

	return filepath.Join(home, ".disklru_history")
}
