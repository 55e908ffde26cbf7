package disklru

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/calvinalkan/disklru/pkg/fs"
)

// Editor is the exclusive, single-use write handle for one key.
//
// Values are written to dirty files next to the committed ones and become
// visible only on [Editor.Commit]. After Commit or Abort every method except
// Close returns [ErrEditorClosed].
//
// An Editor is meant for one goroutine. Writers it returns may be used
// concurrently with other keys' operations.
type Editor struct {
	cache *Cache
	entry *entry

	// written tracks which slots were opened for writing. Nil when the
	// entry was already readable: untouched slots keep their old value.
	written []bool

	// faulted is set by any failed write or close and never cleared.
	faulted atomic.Bool

	done bool // guarded by cache.mu
}

// Key returns the key being edited.
func (ed *Editor) Key() string {
	return ed.entry.key
}

// NewWriter returns a writer that replaces slot i. The new value is
// published on Commit; closing the writer does not publish it.
//
// If the cache directory vanished it is recreated once. A write or close
// error returned by the writer also fails the whole edit at Commit.
func (ed *Editor) NewWriter(i int) (io.WriteCloser, error) {
	c := ed.cache

	if err := c.checkSlot(i); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if ed.done {
		return nil, ErrEditorClosed
	}

	if ed.written != nil {
		ed.written[i] = true
	}

	path := c.dirtyPath(ed.entry.key, i)

	f, err := c.fs.Create(path)
	if err != nil {
		// The directory may have been removed out of band.
		if mkErr := c.fs.MkdirAll(filepath.Dir(path), 0o755); mkErr == nil {
			f, err = c.fs.Create(path)
		}
	}

	if err != nil {
		ed.faulted.Store(true)

		return nil, fmt.Errorf("disklru: open writer for %s slot %d: %w", ed.entry.key, i, err)
	}

	return &valueWriter{f: f, editor: ed}, nil
}

// Set writes value to slot i.
func (ed *Editor) Set(i int, value string) error {
	w, err := ed.NewWriter(i)
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, value)

	return errors.Join(err, w.Close())
}

// NewReader opens the last committed value of slot i. It reports
// ok == false if the key has never been committed or the file is gone.
func (ed *Editor) NewReader(i int) (io.ReadCloser, bool, error) {
	c := ed.cache

	if err := c.checkSlot(i); err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if ed.done {
		return nil, false, ErrEditorClosed
	}

	if !ed.entry.readable {
		return nil, false, nil
	}

	f, err := c.fs.Open(c.cleanPath(ed.entry.key, i))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("disklru: open %s slot %d: %w", ed.entry.key, i, err)
	}

	return f, true, nil
}

// String returns the last committed value of slot i.
func (ed *Editor) String(i int) (string, bool, error) {
	r, ok, err := ed.NewReader(i)
	if err != nil || !ok {
		return "", ok, err
	}

	b, err := io.ReadAll(r)
	if closeErr := r.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return "", false, fmt.Errorf("disklru: read %s slot %d: %w", ed.entry.key, i, err)
	}

	return string(b), true, nil
}

// Commit publishes the written slots.
//
// The first commit of a key must write every slot; otherwise the entry is
// discarded and the error wraps [ErrIncompleteEntry]. If any write through
// this editor failed, the edit is discarded and the error wraps
// [ErrWriteFault]. Either way the editor is finished.
func (ed *Editor) Commit() error {
	c := ed.cache

	c.mu.Lock()
	defer c.mu.Unlock()

	if ed.done {
		return ErrEditorClosed
	}

	if ed.faulted.Load() {
		err := c.completeEdit(ed, false)

		return errors.Join(fmt.Errorf("%w: %s", ErrWriteFault, ed.entry.key), err)
	}

	return c.completeEdit(ed, true)
}

// Abort discards the edit. Previously committed values are kept.
func (ed *Editor) Abort() error {
	c := ed.cache

	c.mu.Lock()
	defer c.mu.Unlock()

	if ed.done {
		return ErrEditorClosed
	}

	return c.completeEdit(ed, false)
}

// Close aborts the edit unless it was already committed or aborted.
// It is safe to defer right after [Cache.Edit].
func (ed *Editor) Close() error {
	c := ed.cache

	c.mu.Lock()
	defer c.mu.Unlock()

	if ed.done {
		return nil
	}

	return c.completeEdit(ed, false)
}

// completeEdit finishes ed under c.mu.
func (c *Cache) completeEdit(ed *Editor, success bool) error {
	e := ed.entry
	ed.done = true

	if e.editor != ed {
		return ErrEditorClosed
	}

	var failure error
	if success && !e.readable {
		failure = c.checkAllWritten(ed)
		success = failure == nil
	}

	if success {
		if err := c.publish(e); err != nil {
			// Some clean files may already be replaced, so the old value is
			// gone too.
			c.deleteDirty(e)
			e.editor = nil
			err = fmt.Errorf("%w: %s: %w", ErrWriteFault, e.key, err)
			err = errors.Join(err, c.removeEntry(e), c.flushJournal())
			c.scheduleAfterEdit()

			return err
		}
	} else {
		c.deleteDirty(e)
	}

	c.redundantOps++
	e.editor = nil

	var journalErr error

	if e.readable || success {
		e.readable = true

		if success {
			e.seq = c.nextSeq
			c.nextSeq++
		}

		journalErr = c.appendRecord(record{op: opClean, key: e.key, lengths: e.lengths})
	} else {
		c.table.remove(e.key)
		journalErr = c.appendRecord(record{op: opRemove, key: e.key})
	}

	if journalErr == nil {
		journalErr = c.flushJournal()
	}

	c.scheduleAfterEdit()

	return errors.Join(failure, journalErr)
}

// checkAllWritten verifies a new entry has a dirty file for every slot.
func (c *Cache) checkAllWritten(ed *Editor) error {
	for i := range c.valueCount {
		if !ed.written[i] {
			return fmt.Errorf("%w: %s: slot %d was not written", ErrIncompleteEntry, ed.entry.key, i)
		}

		exists, err := c.fs.Exists(c.dirtyPath(ed.entry.key, i))
		if err != nil || !exists {
			return errors.Join(
				fmt.Errorf("%w: %s: slot %d file is missing", ErrIncompleteEntry, ed.entry.key, i), err)
		}
	}

	return nil
}

// publish renames each dirty file over its clean file and updates lengths
// and size. Slots without a dirty file keep their committed value.
func (c *Cache) publish(e *entry) error {
	for i := range c.valueCount {
		clean := c.cleanPath(e.key, i)

		err := c.fs.Rename(c.dirtyPath(e.key, i), clean)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}

		if err != nil {
			return fmt.Errorf("publish slot %d: %w", i, err)
		}

		info, err := c.fs.Stat(clean)
		if err != nil {
			return fmt.Errorf("stat slot %d: %w", i, err)
		}

		c.size += info.Size() - e.lengths[i]
		e.lengths[i] = info.Size()
	}

	return nil
}

// deleteDirty removes the dirty files of e. Leftovers are harmless: they
// are overwritten by the next edit or removed at the next recovery.
func (c *Cache) deleteDirty(e *entry) {
	for i := range c.valueCount {
		if err := c.removeIfExists(c.dirtyPath(e.key, i)); err != nil {
			c.log.Warn("Failed to delete dirty file", "key", e.key, "slot", i, "err", err)
		}
	}
}

// scheduleAfterEdit starts cleanup if the cache is over its bound or the
// journal needs a rebuild.
func (c *Cache) scheduleAfterEdit() {
	if (c.size > c.maxSize || c.rebuildRequired()) && !c.closed {
		c.worker.schedule()
	}
}

// valueWriter writes one dirty file and records failures on its editor.
type valueWriter struct {
	f      fs.File
	editor *Editor
	closed bool
}

func (w *valueWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	if err != nil {
		w.editor.faulted.Store(true)
	}

	return n, err
}

// Close closes the file. A second Close is a no-op.
func (w *valueWriter) Close() error {
	if w.closed {
		return nil
	}

	w.closed = true

	err := w.f.Close()
	if err != nil {
		w.editor.faulted.Store(true)
	}

	return err
}
