package lockfile

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v3"
)

// DefaultStaleAge is how old a lock file may get before it is considered
// abandoned by a crashed process and removed.
const DefaultStaleAge = 2 * time.Hour

// ErrLocked indicates another process holds the lock.
var ErrLocked = fmt.Errorf("lock is held by another process")

// Lock is an advisory file lock. The engine already serializes operations
// inside one process; the lock file extends that guarantee across
// processes for callers that respect it (the CLI holds one for the whole
// run/restore invocation).
type Lock struct {
	path     string
	staleAge time.Duration
	held     bool
}

// New returns a lock backed by the given path.
func New(path string) *Lock {
	return &Lock{path: path, staleAge: DefaultStaleAge}
}

// Acquire takes the lock, retrying with exponential backoff until timeout.
func (l *Lock) Acquire(timeout time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = timeout
	return backoff.Retry(l.tryAcquire, b)
}

func (l *Lock) tryAcquire() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err == nil {
		_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			os.Remove(l.path)
			return backoff.Permanent(werr)
		}
		l.held = true
		return nil
	}
	if !os.IsExist(err) {
		return backoff.Permanent(err)
	}
	if l.removeIfStale() {
		return ErrLocked // retry immediately picks up the freed lock
	}
	return ErrLocked
}

// removeIfStale drops a lock file whose holder is long gone.
func (l *Lock) removeIfStale() bool {
	fi, err := os.Stat(l.path)
	if err != nil {
		return false
	}
	if time.Since(fi.ModTime()) < l.staleAge {
		return false
	}
	return os.Remove(l.path) == nil
}

// Release drops the lock. Releasing an unheld lock is a no-op.
func (l *Lock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false
	return os.Remove(l.path)
}
