package disklru

import (
	"fmt"
	"sync"
)

// openDirs is the process-wide set of directories owned by an open [Cache].
var openDirs = &dirRegistry{dirs: make(map[string]struct{})}

type dirRegistry struct {
	mu   sync.Mutex
	dirs map[string]struct{}
}

// acquire claims dir, which must be absolute and clean.
func (r *dirRegistry) acquire(dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.dirs[dir]; ok {
		return fmt.Errorf("%w: %s", ErrBusy, dir)
	}

	r.dirs[dir] = struct{}{}

	return nil
}

func (r *dirRegistry) release(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.dirs, dir)
}

func (r *dirRegistry) held(dir string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.dirs[dir]

	return ok
}
