package store

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// InstanceLock guards the data directory against concurrent daemons.
type InstanceLock struct {
	fl *flock.Flock
}

// AcquireInstanceLock takes a non-blocking flock on the data directory. It
// fails immediately when another daemon already owns the directory.
func AcquireInstanceLock(dataDir string) (*InstanceLock, error) {
	fl := flock.New(filepath.Join(dataDir, LockFile))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire instance lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("data directory %s is locked by another instance", dataDir)
	}
	return &InstanceLock{fl: fl}, nil
}

func (l *InstanceLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
