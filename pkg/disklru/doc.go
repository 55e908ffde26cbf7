// Package disklru provides a size-bounded, crash-recoverable key-value cache
// stored as flat files in one directory.
//
// Each key holds a fixed number of values (slots). Every structural change is
// appended to a text journal, which is replayed on [Open] to rebuild the entry
// table and compacted in the background once it grows mostly redundant. Total
// value size is kept under [Options.MaxSize] by evicting the least recently
// used keys.
//
// # Basic Usage
//
//	c, err := disklru.Open(disklru.Options{
//	    Dir:        "/var/cache/myapp",
//	    AppVersion: 1,
//	    ValueCount: 2,
//	    MaxSize:    10 << 20,
//	})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	// Write
//	ed, ok, err := c.Edit("user-42")
//	if err != nil || !ok {
//	    // ok == false: another edit of this key is in progress
//	}
//	defer ed.Close()
//	ed.Set(0, payload)
//	ed.Set(1, metadata)
//	err = ed.Commit()
//
//	// Read
//	snap, ok, err := c.Get("user-42")
//	if ok {
//	    defer snap.Close()
//	    payload, err := snap.String(0)
//	}
//
// # On-disk layout
//
//	file           journal
//	file.tmp       journal being rebuilt
//	file.bkp       previous journal during a rebuild
//	<key>.<i>      committed value of slot i
//	<key>.<i>.tmp  value of slot i being edited
//
// # Concurrency
//
// A directory is owned by one open [Cache] per process; a second [Open]
// returns [ErrBusy]. Multi-process access is not coordinated.
//
// At most one [Editor] exists per key. Readers never see an edit before it is
// committed, and a commit never changes what an open [Snapshot] reads.
// [Snapshot.Edit] implements compare-and-swap: it fails if the key was
// committed after the snapshot was taken.
//
// # Error Handling
//
// Journal corruption is not an error: [Open] clears the directory and
// reports the cause through [Cache.Recovery]. A missing value file means the
// key is absent. Concurrent conflicts return ok == false rather than an error.
package disklru
