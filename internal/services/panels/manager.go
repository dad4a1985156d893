package panels

import (
	"sort"
	"sync"
)

// Manager counts open modal panels. The page is locked while at least one
// is open, so nested drawers only unlock when the last one closes.
type Manager struct {
	mu        sync.Mutex
	depth     int
	nextID    uint64
	open      map[uint64]string
	listeners map[uint64]func(locked bool)
}

// NewManager returns an unlocked manager
func NewManager() *Manager {
	return &Manager{
		open:      make(map[uint64]string),
		listeners: make(map[uint64]func(bool)),
	}
}

// Open registers a panel and returns its release func. Calling release
// more than once has no further effect.
func (m *Manager) Open(name string) (release func()) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.open[id] = name
	m.depth++
	if m.depth == 1 {
		m.notify(true)
	}
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { m.close(id) })
	}
}

func (m *Manager) close(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.open[id]; !ok {
		return
	}
	delete(m.open, id)
	m.depth--
	if m.depth == 0 {
		m.notify(false)
	}
}

// Locked reports whether any panel is open
func (m *Manager) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.depth > 0
}

// Depth is the number of open panels
func (m *Manager) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.depth
}

// Names returns the open panel names, sorted
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.open))
	for _, n := range m.open {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// OnChange subscribes to lock transitions. fn is called with the manager
// lock held and must not call back into the manager.
func (m *Manager) OnChange(fn func(locked bool)) (unsubscribe func()) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Manager) notify(locked bool) {
	for _, fn := range m.listeners {
		fn(locked)
	}
}
