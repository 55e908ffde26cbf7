package disklru

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/calvinalkan/disklru/internal/linereader"
)

// Open opens the cache in opts.Dir, creating it if needed.
//
// A backup journal left by an interrupted rebuild is promoted first. If the
// journal is unreadable, or was written with a different AppVersion or
// ValueCount, the directory is cleared and a fresh cache is returned; the
// cause is reported by [Cache.Recovery]. Entries whose last edit never
// completed are deleted.
//
// Returns [ErrInvalidInput] for bad options and [ErrBusy] if another open
// cache in this process owns the directory.
func Open(opts Options) (*Cache, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	opts = opts.withDefaults()

	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("disklru: resolve dir: %w", err)
	}

	if err := openDirs.acquire(dir); err != nil {
		return nil, err
	}

	c := &Cache{
		dir:        dir,
		appVersion: opts.AppVersion,
		valueCount: opts.ValueCount,
		fs:         opts.FS,
		log:        opts.Logger.With("dir", dir),
		sync:       opts.Writeback == WritebackSync,
		maxSize:    opts.MaxSize,
		table:      newEntryTable(),
		nextSeq:    1,
	}

	if err := c.load(); err != nil {
		if c.journal != nil {
			_ = c.journal.close()
		}

		openDirs.release(dir)

		return nil, fmt.Errorf("disklru: open %s: %w", dir, err)
	}

	c.worker = startWorker(c.cleanup)

	return c, nil
}

// load restores state from disk and leaves the journal open for appending.
func (c *Cache) load() error {
	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	if err := c.promoteBackup(); err != nil {
		return err
	}

	unterminated, err := c.readJournal()
	if err == nil {
		err = c.processJournal()
	}

	switch {
	case errors.Is(err, errNoJournal):
		return c.rebuildJournal()

	case err != nil:
		if !errors.Is(err, ErrCorrupt) {
			err = fmt.Errorf("%w: %w", ErrCorrupt, err)
		}

		c.log.Warn("Journal is corrupt, clearing cache", "err", err)
		c.recovered = err

		if err := c.reset(); err != nil {
			return err
		}

		return c.rebuildJournal()

	case unterminated:
		// Appending after a torn line would glue the next record onto it.
		return c.rebuildJournal()
	}

	journal, err := openJournalWriter(c.fs, c.path(journalFile), c.sync)
	if err != nil {
		return err
	}

	c.journal = journal

	return nil
}

// promoteBackup resolves a rebuild that was interrupted between renames.
func (c *Cache) promoteBackup() error {
	backup := c.path(journalFileBackup)

	hasBackup, err := c.fs.Exists(backup)
	if err != nil || !hasBackup {
		return err
	}

	hasJournal, err := c.fs.Exists(c.path(journalFile))
	if err != nil {
		return err
	}

	if hasJournal {
		if err := c.fs.Remove(backup); err != nil {
			return fmt.Errorf("remove backup journal: %w", err)
		}

		return nil
	}

	if err := c.fs.Rename(backup, c.path(journalFile)); err != nil {
		return fmt.Errorf("promote backup journal: %w", err)
	}

	return nil
}

var errNoJournal = errors.New("no journal")

// readJournal checks the header and replays the body into the table.
// It reports whether the journal ended with an unterminated line.
func (c *Cache) readJournal() (bool, error) {
	f, err := c.fs.Open(c.path(journalFile))
	if errors.Is(err, os.ErrNotExist) {
		return false, errNoJournal
	}

	if err != nil {
		return false, fmt.Errorf("open journal: %w", err)
	}

	r := linereader.New(f)
	defer r.Close()

	want := journalHeader(c.appVersion, c.valueCount)
	got := make([]string, 0, len(want))

	for range want {
		line, err := r.ReadLine()
		if err != nil && !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("read journal header: %w", err)
		}

		got = append(got, line)
	}

	for i := range want {
		if got[i] != want[i] {
			return false, fmt.Errorf("%w: unexpected journal header %q", ErrCorrupt, got)
		}
	}

	lines := 0

	for {
		line, err := r.ReadLine()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return false, fmt.Errorf("read journal: %w", err)
		}

		rec, err := parseRecord(line, c.valueCount)
		if err != nil {
			return false, err
		}

		c.replay(rec)
		lines++
	}

	c.redundantOps = lines - c.table.len()

	return r.HasUnterminatedLine(), nil
}

// replay applies one record to the table.
func (c *Cache) replay(rec record) {
	switch rec.op {
	case opRemove:
		c.table.remove(rec.key)

		return
	case opRead:
		// A READ for an unknown key refers to nothing committed.
		if e, ok := c.table.get(rec.key); ok {
			c.table.touch(e)
		}

		return
	}

	e := c.table.getOrInsert(rec.key, c.valueCount)

	switch rec.op {
	case opClean:
		e.readable = true
		e.editor = nil
		e.lengths = rec.lengths
	case opDirty:
		e.editor = &Editor{cache: c, entry: e}
	}
}

// processJournal computes the size and deletes entries whose edit was
// interrupted or that were never committed.
func (c *Cache) processJournal() error {
	if err := c.removeIfExists(c.path(journalFileTmp)); err != nil {
		return err
	}

	for _, e := range c.table.all() {
		if e.editor == nil && e.readable {
			c.size += e.totalLength()

			continue
		}

		e.editor = nil

		for i := range c.valueCount {
			if err := c.removeIfExists(c.cleanPath(e.key, i)); err != nil {
				return err
			}

			if err := c.removeIfExists(c.dirtyPath(e.key, i)); err != nil {
				return err
			}
		}

		c.table.remove(e.key)
	}

	return nil
}

// rebuildJournal replaces the journal with one line per entry, going
// through file.tmp and file.bkp so either the old or the new journal
// survives a crash at any point. On success the journal is reopened for
// appending.
func (c *Cache) rebuildJournal() error {
	var errs []error

	if c.journal != nil {
		errs = append(errs, c.journal.close())
		c.journal = nil
	}

	err := c.writeJournalAndSwap()
	if err != nil {
		errs = append(errs, err, c.restoreJournal())
	}

	journal, openErr := openJournalWriter(c.fs, c.path(journalFile), c.sync)
	if openErr != nil {
		c.journalBroken = true

		return errors.Join(append(errs, openErr)...)
	}

	c.journal = journal

	if err != nil {
		c.journalBroken = true

		return errors.Join(errs...)
	}

	// The new journal supersedes anything the old writer failed to flush.
	c.redundantOps = 0
	c.journalBroken = false

	return nil
}

func (c *Cache) writeJournalAndSwap() error {
	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	records := make([]record, 0, c.table.len())

	for _, e := range c.table.all() {
		switch {
		case e.editor != nil:
			records = append(records, record{op: opDirty, key: e.key})
		case e.readable:
			records = append(records, record{op: opClean, key: e.key, lengths: e.lengths})
		}
	}

	tmp := c.path(journalFileTmp)

	err := writeJournalFile(c.fs, tmp, journalHeader(c.appVersion, c.valueCount), records, c.sync)
	if err != nil {
		_ = c.fs.Remove(tmp)

		return err
	}

	journalPath := c.path(journalFile)
	backupPath := c.path(journalFileBackup)

	hasJournal, err := c.fs.Exists(journalPath)
	if err != nil {
		return err
	}

	if hasJournal {
		if err := c.fs.Rename(journalPath, backupPath); err != nil {
			return fmt.Errorf("back up journal: %w", err)
		}
	}

	if err := c.fs.Rename(tmp, journalPath); err != nil {
		return fmt.Errorf("install journal: %w", err)
	}

	if err := c.removeIfExists(backupPath); err != nil {
		return err
	}

	if c.sync {
		return syncDir(c.fs, c.dir)
	}

	return nil
}

// restoreJournal puts the backup back if a failed rebuild left only it.
func (c *Cache) restoreJournal() error {
	hasJournal, err := c.fs.Exists(c.path(journalFile))
	if err != nil || hasJournal {
		return err
	}

	hasBackup, err := c.fs.Exists(c.path(journalFileBackup))
	if err != nil || !hasBackup {
		return err
	}

	return c.fs.Rename(c.path(journalFileBackup), c.path(journalFile))
}

// reset removes everything in the directory and empties the table.
func (c *Cache) reset() error {
	if err := c.wipeDir(); err != nil {
		return err
	}

	c.table = newEntryTable()
	c.size = 0
	c.redundantOps = 0

	return nil
}

// wipeDir removes the contents of the directory, subdirectories included,
// and makes sure the directory itself exists.
func (c *Cache) wipeDir() error {
	entries, err := c.fs.ReadDir(c.dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("list dir: %w", err)
	}

	var errs []error

	for _, de := range entries {
		if err := c.fs.RemoveAll(filepath.Join(c.dir, de.Name())); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", de.Name(), err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	return nil
}

func (c *Cache) removeIfExists(path string) error {
	err := c.fs.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", filepath.Base(path), err)
	}

	return nil
}
