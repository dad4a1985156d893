package web

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"tenant-console/internal/services/panels"
)

var errLockNotFound = errors.New("panel handle not found")

// lockTable maps opaque handles handed to the UI onto panel releases
type lockTable struct {
	manager *panels.Manager

	mu       sync.Mutex
	releases map[string]func()
}

func newLockTable(manager *panels.Manager) *lockTable {
	return &lockTable{manager: manager, releases: make(map[string]func())}
}

func (t *lockTable) open(name string) string {
	handle := uuid.NewString()
	release := t.manager.Open(name)

	t.mu.Lock()
	t.releases[handle] = release
	t.mu.Unlock()
	return handle
}

func (t *lockTable) close(handle string) error {
	t.mu.Lock()
	release, ok := t.releases[handle]
	delete(t.releases, handle)
	t.mu.Unlock()

	if !ok {
		return errLockNotFound
	}
	release()
	return nil
}
