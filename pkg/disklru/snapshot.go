package disklru

import (
	"errors"
	"fmt"
	"io"

	"github.com/calvinalkan/disklru/pkg/fs"
)

// Snapshot is a point-in-time view of one key's committed values.
//
// All slot files are opened together by [Cache.Get], so a Snapshot never
// mixes values from two commits even if the key is edited or evicted while
// it is being read. It must be closed.
type Snapshot struct {
	cache   *Cache
	key     string
	seq     int64
	files   []fs.File
	lengths []int64
	closed  bool
}

// Key returns the snapshot's key.
func (s *Snapshot) Key() string {
	return s.key
}

// Length returns the committed byte size of slot i.
// It panics if i is out of range.
func (s *Snapshot) Length(i int) int64 {
	return s.lengths[i]
}

// Reader returns the open file of slot i, positioned where the last read
// stopped.
func (s *Snapshot) Reader(i int) (io.Reader, error) {
	if err := s.cache.checkSlot(i); err != nil {
		return nil, err
	}

	if s.closed {
		return nil, fmt.Errorf("%w: snapshot of %s", ErrClosed, s.key)
	}

	return s.files[i], nil
}

// String reads the rest of slot i.
func (s *Snapshot) String(i int) (string, error) {
	r, err := s.Reader(i)
	if err != nil {
		return "", err
	}

	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("disklru: read %s slot %d: %w", s.key, i, err)
	}

	return string(b), nil
}

// Edit returns an editor for the key only if it has not been committed
// since the snapshot was taken. ok is false if it has, or if the key is
// gone or being edited.
func (s *Snapshot) Edit() (*Editor, bool, error) {
	return s.cache.edit(s.key, s.seq)
}

// Close closes the slot files. It is idempotent.
func (s *Snapshot) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true

	var errs []error
	for _, f := range s.files {
		errs = append(errs, f.Close())
	}

	return errors.Join(errs...)
}
