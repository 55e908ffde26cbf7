package disklru

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/calvinalkan/disklru/pkg/fs"
)

// anySequence disables the sequence check in edit.
const anySequence = -1

// Cache is a size-bounded, journaled key-value cache in one directory.
//
// All methods are safe for concurrent use. Structural operations serialize
// on one lock; reading from a [Snapshot] and writing through an [Editor]
// happen outside it.
type Cache struct {
	dir        string
	appVersion int
	valueCount int
	fs         fs.FS
	log        *slog.Logger
	sync       bool
	worker     *worker

	mu            sync.Mutex
	table         *entryTable
	journal       *journalWriter
	journalBroken bool
	size          int64
	maxSize       int64
	redundantOps  int
	nextSeq       int64
	closed        bool
	released      bool
	recovered     error
}

func (c *Cache) path(name string) string {
	return filepath.Join(c.dir, name)
}

func (c *Cache) cleanPath(key string, i int) string {
	return filepath.Join(c.dir, key+"."+strconv.Itoa(i))
}

func (c *Cache) dirtyPath(key string, i int) string {
	return c.cleanPath(key, i) + ".tmp"
}

func (c *Cache) checkSlot(i int) error {
	if i < 0 || i >= c.valueCount {
		return fmt.Errorf("%w: slot %d out of range [0,%d)", ErrInvalidInput, i, c.valueCount)
	}

	return nil
}

// Get returns a snapshot of the committed values for key, or ok == false if
// the key is absent or one of its files disappeared.
//
// The snapshot must be closed. A successful Get makes key the most recently
// used entry.
func (c *Cache) Get(key string) (*Snapshot, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, false, ErrClosed
	}

	e, ok := c.table.get(key)
	if !ok || !e.readable {
		return nil, false, nil
	}

	// Open every slot before releasing the lock so a concurrent commit
	// cannot mix generations.
	files := make([]fs.File, 0, c.valueCount)

	for i := range c.valueCount {
		f, err := c.fs.Open(c.cleanPath(key, i))
		if err != nil {
			for _, opened := range files {
				_ = opened.Close()
			}

			if errors.Is(err, os.ErrNotExist) {
				return nil, false, nil
			}

			return nil, false, fmt.Errorf("disklru: open %s slot %d: %w", key, i, err)
		}

		files = append(files, f)
	}

	// READ is informational; a failed append only schedules a rebuild.
	c.redundantOps++
	_ = c.appendRecord(record{op: opRead, key: key})
	c.table.touch(e)

	if c.rebuildRequired() {
		c.worker.schedule()
	}

	return &Snapshot{
		cache:   c,
		key:     key,
		seq:     e.seq,
		files:   files,
		lengths: append([]int64(nil), e.lengths...),
	}, true, nil
}

// Edit returns an editor for key, or ok == false if another edit of key is
// in progress.
//
// The DIRTY record is on disk before Edit returns, so a crash at any later
// point leaves a journal that marks the key's files as suspect.
func (c *Cache) Edit(key string) (*Editor, bool, error) {
	return c.edit(key, anySequence)
}

func (c *Cache) edit(key string, expectedSeq int64) (*Editor, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, false, ErrClosed
	}

	e, exists := c.table.get(key)

	if expectedSeq != anySequence && (!exists || e.seq != expectedSeq) {
		return nil, false, nil
	}

	if exists && e.editor != nil {
		return nil, false, nil
	}

	if exists {
		c.table.touch(e)
	} else {
		e = c.table.insert(key, c.valueCount)
	}

	ed := &Editor{cache: c, entry: e}
	if !e.readable {
		ed.written = make([]bool, c.valueCount)
	}

	e.editor = ed

	err := c.appendRecord(record{op: opDirty, key: key})
	if err == nil {
		err = c.flushJournal()
	}

	if err != nil {
		e.editor = nil

		if !exists {
			c.table.remove(key)
		}

		return nil, false, fmt.Errorf("disklru: edit %s: %w", key, err)
	}

	return ed, true, nil
}

// Remove deletes key and its files. It reports false if the key is absent
// or being edited.
func (c *Cache) Remove(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, ErrClosed
	}

	e, ok := c.table.get(key)
	if !ok || e.editor != nil {
		return false, nil
	}

	if err := c.removeEntry(e); err != nil {
		return false, fmt.Errorf("disklru: remove %s: %w", key, err)
	}

	if c.rebuildRequired() {
		c.worker.schedule()
	}

	return true, nil
}

// removeEntry deletes the clean files of e, drops it from the table and
// appends REMOVE.
func (c *Cache) removeEntry(e *entry) error {
	for i := range c.valueCount {
		if err := c.removeIfExists(c.cleanPath(e.key, i)); err != nil {
			return err
		}

		c.size -= e.lengths[i]
		e.lengths[i] = 0
	}

	c.redundantOps++
	c.table.remove(e.key)

	return c.appendRecord(record{op: opRemove, key: e.key})
}

// Flush evicts down to MaxSize and writes buffered journal records.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	trimErr := c.trimToSize()

	if err := errors.Join(trimErr, c.flushJournal()); err != nil {
		return fmt.Errorf("disklru: flush: %w", err)
	}

	return nil
}

// Close aborts live editors, evicts down to MaxSize, closes the journal and
// releases the directory. Close is idempotent.
func (c *Cache) Close() error {
	err := c.shutdown()

	c.releaseDir()

	if err != nil {
		return fmt.Errorf("disklru: close: %w", err)
	}

	return nil
}

// shutdown closes everything except the directory claim.
func (c *Cache) shutdown() error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()

		return nil
	}

	c.closed = true

	errs := []error{c.abortEditors(), c.trimToSize()}

	if c.journal != nil {
		errs = append(errs, c.journal.close())
		c.journal = nil
	}

	c.mu.Unlock()

	// The worker takes c.mu, so stop it unlocked.
	c.worker.stop()

	return errors.Join(errs...)
}

func (c *Cache) releaseDir() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.released {
		c.released = true
		openDirs.release(c.dir)
	}
}

// Delete closes the cache and removes everything in its directory.
func (c *Cache) Delete() error {
	err := c.shutdown()

	c.mu.Lock()
	defer c.mu.Unlock()

	// The directory stays claimed until the wipe is done.
	if c.released {
		if acqErr := openDirs.acquire(c.dir); acqErr != nil {
			return fmt.Errorf("disklru: delete: %w", errors.Join(err, acqErr))
		}

		c.released = false
	}

	err = errors.Join(err, c.wipeDir())

	c.released = true
	openDirs.release(c.dir)

	if err != nil {
		return fmt.Errorf("disklru: delete: %w", err)
	}

	return nil
}

// Clear aborts live editors, removes every entry and file, and starts a
// fresh journal. The cache stays open.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	// Aborting records REMOVE or CLEAN in a journal about to be discarded.
	abortErr := c.abortEditors()

	if c.journal != nil {
		abortErr = errors.Join(abortErr, c.journal.close())
		c.journal = nil
	}

	if err := c.reset(); err != nil {
		return fmt.Errorf("disklru: clear: %w", errors.Join(abortErr, err))
	}

	if err := c.rebuildJournal(); err != nil {
		return fmt.Errorf("disklru: clear: %w", err)
	}

	return nil
}

// abortEditors discards every live edit.
func (c *Cache) abortEditors() error {
	var errs []error

	for _, e := range c.table.all() {
		if e.editor != nil && !e.editor.done {
			errs = append(errs, c.completeEdit(e.editor, false))
		}
	}

	return errors.Join(errs...)
}

// Size returns the total byte size of all committed values. It may exceed
// MaxSize until the background cleanup runs.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.size
}

// MaxSize returns the current size bound.
func (c *Cache) MaxSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.maxSize
}

// SetMaxSize changes the size bound. Shrinking schedules eviction in the
// background; growing evicts nothing.
func (c *Cache) SetMaxSize(n int64) error {
	if n < 1 {
		return fmt.Errorf("%w: MaxSize must be >= 1, got %d", ErrInvalidInput, n)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	shrinking := n < c.maxSize
	c.maxSize = n

	if shrinking {
		c.worker.schedule()
	}

	return nil
}

// Dir returns the absolute cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// IsClosed reports whether Close or Delete was called.
func (c *Cache) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

// Len returns the number of entries, including ones mid-edit.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.table.len()
}

// Entries returns every entry in least recently used first order.
func (c *Cache) Entries() []EntryInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	all := c.table.all()
	out := make([]EntryInfo, 0, len(all))

	for _, e := range all {
		out = append(out, e.info())
	}

	return out
}

// Recovery returns the corruption [Open] recovered from by clearing the
// directory, or nil. The error wraps [ErrCorrupt].
func (c *Cache) Recovery() error {
	return c.recovered
}

// appendRecord buffers r. A failure marks the journal for rebuild.
func (c *Cache) appendRecord(r record) error {
	if c.journal == nil {
		c.markJournalBroken()

		return errors.New("journal unavailable")
	}

	err := c.journal.append(r)
	if err != nil {
		c.markJournalBroken()
	}

	return err
}

func (c *Cache) flushJournal() error {
	if c.journal == nil {
		c.markJournalBroken()

		return errors.New("journal unavailable")
	}

	err := c.journal.flush()
	if err != nil {
		c.markJournalBroken()
	}

	return err
}

// markJournalBroken makes the next cleanup rewrite the journal from the
// table, which is the authoritative state.
func (c *Cache) markJournalBroken() {
	if c.journalBroken {
		return
	}

	c.journalBroken = true

	if c.worker != nil && !c.closed {
		c.worker.schedule()
	}
}

func (c *Cache) rebuildRequired() bool {
	if c.journalBroken {
		return true
	}

	return c.redundantOps >= redundantOpCompactThreshold && c.redundantOps >= c.table.len()
}

// cleanup runs on the worker goroutine.
func (c *Cache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	if err := c.trimToSize(); err != nil {
		c.log.Error("Failed to evict entries", "err", err)
	}

	if c.rebuildRequired() {
		redundant := c.redundantOps

		if err := c.rebuildJournal(); err != nil {
			c.log.Error("Failed to rebuild journal", "err", err)

			return
		}

		c.log.Debug("Rebuilt journal", "entries", c.table.len(), "dropped", redundant)
	}
}

// trimToSize evicts least recently used entries until size fits maxSize.
// Entries being edited are skipped.
func (c *Cache) trimToSize() error {
	for c.size > c.maxSize {
		victim := c.table.oldestIdle()
		if victim == nil {
			return nil
		}

		c.log.Debug("Evicting entry", "key", victim.key, "bytes", victim.totalLength(),
			"size", c.size, "max_size", c.maxSize)

		if err := c.removeEntry(victim); err != nil {
			return fmt.Errorf("evict %s: %w", victim.key, err)
		}
	}

	return nil
}
