package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/disklru/pkg/disklru"
)

const helpFlag = "--help"

// app carries what commands need once global flags and config are resolved.
type app struct {
	cfg    Config
	logger *slog.Logger
	stdin  io.Reader
	env    map[string]string
	keys   keyMapper

	// cache is open while a cache command runs.
	cache *disklru.Cache
}

// commandsWithoutCache run without opening the cache directory.
var commandsWithoutCache = map[string]bool{
	"init":         true,
	"print-config": true,
}

func allCommands(a *app) []*Command {
	return []*Command{
		GetCmd(a),
		PutCmd(a),
		RmCmd(a),
		LsCmd(a),
		StatCmd(a),
		SetMaxSizeCmd(a),
		ClearCmd(a),
		ReplCmd(a),
		InitCmd(a),
		PrintConfigCmd(a),
	}
}

func findCommand(cmds []*Command, name string) *Command {
	for _, c := range cmds {
		if c.Name() == name {
			return c
		}
	}

	return nil
}

// Run is the main entry point. Returns exit code.
//
// A signal on sigCh cancels the context passed to the running command.
// sigCh may be nil.
func Run(stdin io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	globalFlags := newGlobalFlagSet()

	if len(args) < 2 {
		printUsage(out, globalFlags)

		return 0
	}

	err := globalFlags.fs.Parse(args[1:])
	if err != nil {
		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printUsage(errOut, globalFlags)

		return 1
	}

	remaining := globalFlags.fs.Args()
	if *globalFlags.help || len(remaining) == 0 {
		printUsage(out, globalFlags)

		return 0
	}

	cfg, err := LoadConfig(LoadConfigInput{
		WorkDirOverride: *globalFlags.cwd,
		ConfigPath:      *globalFlags.config,
		Overrides: Config{
			CacheDir: *globalFlags.cacheDir,
			MaxSize:  *globalFlags.maxSize,
			LogLevel: *globalFlags.logLevel,
			HashKeys: *globalFlags.hashKeys,
		},
		Env: env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printUsage(errOut, globalFlags)

		return 1
	}

	level, _ := parseLogLevel(cfg.LogLevel) // validated by LoadConfig

	a := &app{
		cfg:    cfg,
		logger: newLogger(errOut, level),
		stdin:  stdin,
		env:    env,
		keys:   keyMapper{hash: cfg.HashKeys},
	}

	name := remaining[0]

	cmd := findCommand(allCommands(a), name)
	if cmd == nil {
		fprintln(errOut, "error:", fmt.Errorf("%w: %s", ErrUnknownCommand, name))
		fprintln(errOut)
		printUsage(errOut, globalFlags)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	o := NewIO(out, errOut)

	if commandsWithoutCache[name] || hasHelpFlag(remaining[1:]) {
		if code := cmd.Run(ctx, o, remaining[1:]); code != 0 {
			return code
		}

		return o.Finish()
	}

	if err := a.openCache(o); err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	code := cmd.Run(ctx, o, remaining[1:])

	if err := a.cache.Close(); err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	if code != 0 {
		return code
	}

	return o.Finish()
}

// openCache opens the configured cache and warns if it had to be cleared.
func (a *app) openCache(o *IO) error {
	c, err := disklru.Open(a.cfg.CacheOptions(a.logger))
	if err != nil {
		return err
	}

	if rec := c.Recovery(); rec != nil {
		o.Warn("cache journal was unreadable and the cache was cleared ("+rec.Error()+")",
			"no action needed, entries must be written again")
	}

	a.cache = c

	return nil
}

type globalFlagSet struct {
	fs       *flag.FlagSet
	help     *bool
	cwd      *string
	config   *string
	cacheDir *string
	maxSize  *int64
	logLevel *string
	hashKeys *bool
}

func newGlobalFlagSet() *globalFlagSet {
	fs := flag.NewFlagSet("disklru", flag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(&strings.Builder{})

	return &globalFlagSet{
		fs:       fs,
		help:     fs.BoolP("help", "h", false, "Show help"),
		cwd:      fs.StringP("cwd", "C", "", "Run as if started in `dir`"),
		config:   fs.StringP("config", "c", "", "Use specified config `file`"),
		cacheDir: fs.String("cache-dir", "", "Override the cache `dir`ectory"),
		maxSize:  fs.Int64("max-size", 0, "Override the size bound in `bytes`"),
		logLevel: fs.String("log-level", "", "Log `level`: debug, info, warn, error"),
		hashKeys: fs.Bool("hash-keys", false, "Map keys to their xxhash64 so any string is accepted"),
	}
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "-h" || arg == helpFlag {
			return true
		}
	}

	return false
}

func printUsage(w io.Writer, flags *globalFlagSet) {
	fprintln(w, `disklru - size-bounded LRU cache on disk

Usage: disklru [global flags] <command> [args]

Global flags:`)

	var buf strings.Builder

	flags.fs.SetOutput(&buf)
	flags.fs.PrintDefaults()
	flags.fs.SetOutput(&strings.Builder{})

	_, _ = io.WriteString(w, buf.String())

	fprintln(w)
	fprintln(w, "Commands:")

	for _, line := range listing(allCommands(&app{})) {
		fprintln(w, line)
	}
}
