package disklru

import "errors"

// Sentinel errors returned by disklru operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, disklru.ErrIncompleteEntry) {
//	    // the first commit of a key did not write every slot
//	}
var (
	// ErrInvalidInput indicates invalid arguments were provided.
	//
	// Common causes: a key outside [a-z0-9_-]{1,120}, a slot index outside
	// [0, ValueCount), a non-positive MaxSize or ValueCount.
	//
	// This is a programming error.
	ErrInvalidInput = errors.New("disklru: invalid input")

	// ErrClosed indicates the [Cache] has already been closed.
	//
	// This is a programming error.
	ErrClosed = errors.New("disklru: closed")

	// ErrEditorClosed indicates an [Editor] was used after Commit or Abort.
	//
	// This is a programming error.
	ErrEditorClosed = errors.New("disklru: editor closed")

	// ErrBusy indicates the directory is already owned by an open [Cache]
	// in this process.
	//
	// Recovery: close the other instance first.
	ErrBusy = errors.New("disklru: directory in use")

	// ErrCorrupt indicates the journal could not be parsed.
	//
	// [Open] never returns it. The cache recovers by clearing the directory;
	// the cause is available from [Cache.Recovery].
	ErrCorrupt = errors.New("disklru: corrupt journal")

	// ErrIncompleteEntry indicates the first commit of a key did not produce
	// a value for every slot. The entry was discarded.
	ErrIncompleteEntry = errors.New("disklru: incomplete entry")

	// ErrWriteFault indicates an I/O error while writing a value during an
	// edit. The edit was discarded and previously committed values, if any,
	// are unchanged.
	ErrWriteFault = errors.New("disklru: write fault")
)
