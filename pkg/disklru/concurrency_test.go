// Concurrency: many goroutines editing and reading overlapping keys. Run
// with -race.

package disklru_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/calvinalkan/disklru/pkg/disklru"
)

func Test_Snapshot_Never_Mixes_Commits_When_Keys_Edited_Concurrently(t *testing.T) {
	t.Parallel()

	c := openCache(t, t.TempDir(), 512)

	const (
		workers = 8
		ops     = 200
	)

	var wg sync.WaitGroup

	for w := range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range ops {
				key := fmt.Sprintf("k%d", (w+i)%5)

				if i%2 == 0 {
					writeBoth(t, c, key, fmt.Sprintf("w%d-i%d", w, i))

					continue
				}

				checkBothEqual(t, c, key)
			}
		}()
	}

	wg.Wait()
	c.WaitForCleanup()

	if err := c.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	assertSizeConsistent(t, c, 512)
}

// writeBoth commits v to both slots. A concurrent edit of key is not an error.
func writeBoth(t *testing.T, c *disklru.Cache, key, v string) {
	t.Helper()

	ed, ok, err := c.Edit(key)
	if err != nil {
		t.Errorf("Edit(%s): %v", key, err)

		return
	}

	if !ok {
		return
	}

	if err := errors.Join(ed.Set(0, v), ed.Set(1, v), ed.Commit()); err != nil {
		t.Errorf("write %s: %v", key, err)
	}
}

// checkBothEqual reads key and reports slots that come from different commits.
func checkBothEqual(t *testing.T, c *disklru.Cache, key string) {
	t.Helper()

	snap, ok, err := c.Get(key)
	if err != nil {
		t.Errorf("Get(%s): %v", key, err)

		return
	}

	if !ok {
		return
	}
	defer snap.Close()

	v0, err0 := snap.String(0)
	v1, err1 := snap.String(1)

	if err := errors.Join(err0, err1); err != nil {
		t.Errorf("read %s: %v", key, err)

		return
	}

	if v0 != v1 {
		t.Errorf("%s slots differ: %q vs %q", key, v0, v1)
	}
}
