package archive

import (
	"fmt"
	"sync"

	"github.com/gofrs/flock"

	"wiffecg/internal/faults"
)

var registry = struct {
	sync.Mutex
	open map[string]*flock.Flock
}{open: make(map[string]*flock.Flock)}

// acquire takes the exclusive handle for an absolute archive path.
func acquire(path string) (*flock.Flock, error) {
	registry.Lock()
	defer registry.Unlock()

	if _, held := registry.open[path]; held {
		return nil, faults.Wrap(faults.ErrAlreadyOpen, "", "open", path, nil)
	}
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire archive lock %s: %w", lock.Path(), err)
	}
	if !ok {
		return nil, faults.Wrap(faults.ErrAlreadyOpen, "", "open", path+" is locked by another process", nil)
	}
	registry.open[path] = lock
	return lock, nil
}

// release drops the handle. The lock file stays on disk.
func release(path string) error {
	registry.Lock()
	defer registry.Unlock()

	lock, held := registry.open[path]
	if !held {
		return faults.Wrap(faults.ErrNotOpen, "", "close", path, nil)
	}
	delete(registry.open, path)
	if err := lock.Unlock(); err != nil {
		return fmt.Errorf("release archive lock %s: %w", lock.Path(), err)
	}
	return nil
}
