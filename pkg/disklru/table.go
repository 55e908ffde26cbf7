package disklru

import "container/list"

// entry is the in-memory state of one key.
type entry struct {
	key string

	// lengths holds the committed byte size of each slot.
	lengths []int64

	// readable is true once a commit has published the key.
	readable bool

	// editor is the live edit, if any. Non-nil marks the entry dirty.
	editor *Editor

	// seq is the sequence number of the most recent commit.
	seq int64

	elem *list.Element
}

func (e *entry) totalLength() int64 {
	var n int64
	for _, l := range e.lengths {
		n += l
	}

	return n
}

// entryTable maps keys to entries and keeps them in access order. The front
// of the list is the least recently used entry.
type entryTable struct {
	byKey map[string]*entry
	order *list.List
}

func newEntryTable() *entryTable {
	return &entryTable{
		byKey: make(map[string]*entry),
		order: list.New(),
	}
}

func (t *entryTable) len() int {
	return len(t.byKey)
}

// get returns the entry for key without changing its position.
func (t *entryTable) get(key string) (*entry, bool) {
	e, ok := t.byKey[key]

	return e, ok
}

// touch marks e as most recently used.
func (t *entryTable) touch(e *entry) {
	t.order.MoveToBack(e.elem)
}

// insert adds a fresh, unreadable entry as most recently used.
// The key must not be present.
func (t *entryTable) insert(key string, valueCount int) *entry {
	e := &entry{key: key, lengths: make([]int64, valueCount)}
	e.elem = t.order.PushBack(e)
	t.byKey[key] = e

	return e
}

// getOrInsert returns the entry for key, creating it if needed, and marks it
// most recently used.
func (t *entryTable) getOrInsert(key string, valueCount int) *entry {
	if e, ok := t.byKey[key]; ok {
		t.touch(e)

		return e
	}

	return t.insert(key, valueCount)
}

func (t *entryTable) remove(key string) {
	e, ok := t.byKey[key]
	if !ok {
		return
	}

	t.order.Remove(e.elem)
	delete(t.byKey, key)
}

// oldestIdle returns the least recently used entry without a live editor.
func (t *entryTable) oldestIdle() *entry {
	for el := t.order.Front(); el != nil; el = el.Next() {
		if e := el.Value.(*entry); e.editor == nil {
			return e
		}
	}

	return nil
}

// all returns every entry, least recently used first. The slice is a copy,
// so callers may remove entries while walking it.
func (t *entryTable) all() []*entry {
	out := make([]*entry, 0, len(t.byKey))
	for el := t.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry))
	}

	return out
}

// EntryInfo is a read-only view of one entry, returned by [Cache.Entries].
type EntryInfo struct {
	Key string

	// Lengths holds the committed byte size of each slot.
	Lengths []int64

	// Readable is true once the key has been committed.
	Readable bool

	// Editing is true while an [Editor] is live for the key.
	Editing bool

	// Sequence changes on every commit of the key.
	Sequence int64
}

func (e *entry) info() EntryInfo {
	return EntryInfo{
		Key:      e.key,
		Lengths:  append([]int64(nil), e.lengths...),
		Readable: e.readable,
		Editing:  e.editor != nil,
		Sequence: e.seq,
	}
}
