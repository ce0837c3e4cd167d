package write

import (
	"fmt"
	"os"

	"github.com/gofrs/flock"

	neoerrors "github.com/Aman-CERP/neodb/internal/errors"
)

// lockSuffix names the sidecar lock file next to an output file.
const lockSuffix = ".lock"

// outputLock keeps two processes from writing the same output file at
// once. It uses gofrs/flock, which works on Unix and Windows.
type outputLock struct {
	path  string
	flock *flock.Flock
}

// lockOutput takes the lock for target without blocking. A lock held
// elsewhere fails with ERR_209.
func lockOutput(target string) (*outputLock, error) {
	path := target + lockSuffix
	fl := flock.New(path)

	acquired, err := fl.TryLock()
	if err != nil {
		return nil, writeFailed(target, fmt.Errorf("failed to acquire lock: %w", err))
	}
	if !acquired {
		return nil, neoerrors.New(neoerrors.ErrCodeFileLocked,
			fmt.Sprintf("%s is being written by another process", target), nil).
			WithDetail("lock", path).
			WithSuggestion("Wait for the other write to finish or choose another --outfile")
	}
	return &outputLock{path: path, flock: fl}, nil
}

// release removes the lock file while still holding the lock, then
// unlocks. It is safe to call more than once.
func (l *outputLock) release() error {
	if !l.flock.Locked() {
		return nil
	}
	_ = os.Remove(l.path)
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
