package disklru

import (
	"fmt"
	"log/slog"

	"github.com/calvinalkan/disklru/pkg/fs"
)

// WritebackMode controls durability of journal writes.
type WritebackMode int

const (
	// WritebackNone hands journal writes to the OS without fsync.
	//
	// A process crash loses nothing that was flushed, but a power failure
	// may. This is the default and fastest mode.
	WritebackNone WritebackMode = iota

	// WritebackSync fsyncs the journal at every flush point and fsyncs the
	// directory after a journal rebuild.
	WritebackSync
)

// Options configures [Open].
type Options struct {
	// Dir is the cache directory. It is created if missing.
	//
	// Required. The directory must be dedicated to the cache: corruption
	// recovery and [Cache.Delete] remove everything inside it.
	Dir string

	// AppVersion is a caller-defined version stored in the journal header.
	//
	// Opening a journal written with a different AppVersion clears the cache.
	AppVersion int

	// ValueCount is the number of value slots per key.
	//
	// Must be >= 1. Opening a journal written with a different ValueCount
	// clears the cache.
	ValueCount int

	// MaxSize is the bound, in bytes, on the sum of all committed values.
	//
	// Must be >= 1.
	MaxSize int64

	// Writeback controls journal durability.
	//
	// Default is [WritebackNone].
	Writeback WritebackMode

	// FS is the filesystem used for every file operation.
	//
	// Default is [fs.NewReal]. Tests pass [fs.Chaos] to inject faults.
	FS fs.FS

	// Logger receives recovery, eviction and background failure events.
	//
	// Default discards everything.
	Logger *slog.Logger
}

func (o Options) validate() error {
	if o.Dir == "" {
		return fmt.Errorf("%w: Dir is required", ErrInvalidInput)
	}

	if o.ValueCount < 1 {
		return fmt.Errorf("%w: ValueCount must be >= 1, got %d", ErrInvalidInput, o.ValueCount)
	}

	if o.MaxSize < 1 {
		return fmt.Errorf("%w: MaxSize must be >= 1, got %d", ErrInvalidInput, o.MaxSize)
	}

	if o.Writeback != WritebackNone && o.Writeback != WritebackSync {
		return fmt.Errorf("%w: unknown Writeback mode %d", ErrInvalidInput, o.Writeback)
	}

	return nil
}

func (o Options) withDefaults() Options {
	if o.FS == nil {
		o.FS = fs.NewReal()
	}

	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}

	return o
}
