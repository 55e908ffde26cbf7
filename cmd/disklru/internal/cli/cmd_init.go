package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"
)

// InitCmd returns the init command.
func InitCmd(a *app) *Command {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	force := fs.Bool("force", false, "Overwrite an existing config file")

	return &Command{
		Flags: fs,
		Usage: "init [--force]",
		Short: "Write " + ConfigFileName + " with the effective config",
		Long: "Write " + ConfigFileName + ` in the working directory, filled with the
effective configuration. The file is replaced atomically.`,
		Examples: []string{"init", "--max-size 1048576 init --force"},
		Exec: func(_ context.Context, o *IO, _ []string) error {
			return execInit(o, a.cfg, *force)
		},
	}
}

func execInit(o *IO, cfg Config, force bool) error {
	path := filepath.Join(cfg.EffectiveCwd, ConfigFileName)

	_, err := os.Stat(path)
	if err == nil && !force {
		return fmt.Errorf("%w: %s (use --force to overwrite)", ErrConfigExists, path)
	}

	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	if err := atomic.WriteFile(path, strings.NewReader(renderConfigFile(cfg))); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	o.Println("wrote", path)

	return nil
}

// renderConfigFile returns cfg as commented JSONC.
func renderConfigFile(cfg Config) string {
	var sb strings.Builder

	sb.WriteString("// disklru configuration. Comments and trailing commas are allowed.\n")
	sb.WriteString("{\n")
	fmt.Fprintf(&sb, "  // Cache directory, relative to the working directory.\n  %q: %q,\n", "cache_dir", cfg.CacheDir)
	fmt.Fprintf(&sb, "  // Bound on the total size of all values, in bytes.\n  %q: %d,\n", "max_size", cfg.MaxSize)
	fmt.Fprintf(&sb, "  // Changing app_version or value_count clears the cache on next open.\n")
	fmt.Fprintf(&sb, "  %q: %d,\n", "app_version", cfg.AppVersion)
	fmt.Fprintf(&sb, "  %q: %d,\n", "value_count", cfg.ValueCount)
	fmt.Fprintf(&sb, "  // \"none\" or \"sync\" (fsync the journal on every write).\n  %q: %q,\n", "writeback", cfg.Writeback)
	fmt.Fprintf(&sb, "  %q: %q,\n", "log_level", cfg.LogLevel)
	fmt.Fprintf(&sb, "  // Hash keys with xxhash64 so any string can be used as a key.\n  %q: %t,\n", "hash_keys", cfg.HashKeys)
	sb.WriteString("}\n")

	return sb.String()
}
