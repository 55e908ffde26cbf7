package disklru

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/calvinalkan/disklru/pkg/fs"
)

// Journal file names inside the cache directory.
const (
	journalFile       = "file"
	journalFileTmp    = "file.tmp"
	journalFileBackup = "file.bkp"
)

// Header lines.
const (
	journalMagic   = "cache.DiskLruCache"
	journalVersion = "1"
)

// Compaction runs once at least this many redundant lines have accumulated
// and they outnumber the live entries.
const redundantOpCompactThreshold = 2000

// Record operations.
const (
	opClean  = "CLEAN"
	opDirty  = "DIRTY"
	opRemove = "REMOVE"
	opRead   = "READ"
)

// record is one journal body line.
type record struct {
	op      string
	key     string
	lengths []int64 // CLEAN only
}

func (r record) String() string {
	if r.op != opClean {
		return r.op + " " + r.key
	}

	var sb strings.Builder

	sb.WriteString(opClean)
	sb.WriteByte(' ')
	sb.WriteString(r.key)

	for _, n := range r.lengths {
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatInt(n, 10))
	}

	return sb.String()
}

// parseRecord parses a body line. Every failure wraps [ErrCorrupt].
func parseRecord(line string, valueCount int) (record, error) {
	op, rest, ok := strings.Cut(line, " ")
	if !ok {
		return record{}, corruptLine(line)
	}

	key, lengthsField, hasLengths := strings.Cut(rest, " ")
	if !ValidKey(key) {
		return record{}, corruptLine(line)
	}

	switch op {
	case opRemove, opDirty, opRead:
		if hasLengths {
			return record{}, corruptLine(line)
		}

		return record{op: op, key: key}, nil

	case opClean:
		if !hasLengths {
			return record{}, corruptLine(line)
		}

		fields := strings.Split(lengthsField, " ")
		for len(fields) > 0 && fields[len(fields)-1] == "" {
			fields = fields[:len(fields)-1]
		}

		if len(fields) != valueCount {
			return record{}, corruptLine(line)
		}

		lengths := make([]int64, valueCount)

		for i, f := range fields {
			n, err := strconv.ParseInt(f, 10, 64)
			if err != nil || n < 0 {
				return record{}, corruptLine(line)
			}

			lengths[i] = n
		}

		return record{op: opClean, key: key, lengths: lengths}, nil

	default:
		return record{}, corruptLine(line)
	}
}

func corruptLine(line string) error {
	return fmt.Errorf("%w: unexpected journal line: %q", ErrCorrupt, line)
}

// journalHeader returns the five header lines, blank line included.
func journalHeader(appVersion, valueCount int) []string {
	return []string{
		journalMagic,
		journalVersion,
		strconv.Itoa(appVersion),
		strconv.Itoa(valueCount),
		"",
	}
}

// journalWriter appends records to an open journal.
//
// Appends are buffered; nothing reaches the file until flush. In sync mode
// flush also fsyncs.
type journalWriter struct {
	f    fs.File
	w    *bufio.Writer
	sync bool
}

func openJournalWriter(fsys fs.FS, path string, sync bool) (*journalWriter, error) {
	f, err := fsys.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	return &journalWriter{f: f, w: bufio.NewWriter(f), sync: sync}, nil
}

func (j *journalWriter) append(r record) error {
	_, err := j.w.WriteString(r.String() + "\n")
	if err != nil {
		return fmt.Errorf("append journal: %w", err)
	}

	return nil
}

func (j *journalWriter) flush() error {
	if err := j.w.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}

	if j.sync {
		if err := j.f.Sync(); err != nil {
			return fmt.Errorf("sync journal: %w", err)
		}
	}

	return nil
}

func (j *journalWriter) close() error {
	return errors.Join(j.flush(), j.f.Close())
}

// writeJournalFile writes header and records to path, replacing it.
func writeJournalFile(fsys fs.FS, path string, header []string, records []record, sync bool) error {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := bufio.NewWriter(f)

	for _, line := range header {
		_, _ = w.WriteString(line + "\n")
	}

	for _, r := range records {
		_, _ = w.WriteString(r.String() + "\n")
	}

	err = w.Flush()
	if err == nil && sync {
		err = f.Sync()
	}

	if closeErr := f.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

// syncDir fsyncs a directory so completed renames survive power loss.
func syncDir(fsys fs.FS, dir string) error {
	d, err := fsys.Open(dir)
	if err != nil {
		return fmt.Errorf("open dir for sync: %w", err)
	}
	defer d.Close()

	if err := unix.Fsync(int(d.Fd())); err != nil {
		return fmt.Errorf("sync dir: %w", err)
	}

	return nil
}
