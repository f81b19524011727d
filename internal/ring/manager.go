package ring

import (
	"cmp"
	"slices"
	"sync"

	"github.com/jittakal/ringstore/pkg/record"
	"github.com/jittakal/ringstore/pkg/ring"
)

// Ensure implementation satisfies interface at compile time.
var _ ring.Manager = (*Manager)(nil)

// Manager holds one ring per stream, creating them on demand from a
// template configuration. Uses double-checked locking for concurrent access.
type Manager struct {
	rings    map[record.StreamID]*Controller
	template Config
	mu       sync.RWMutex
}

// NewManager creates a new ring manager. The template is validated up front
// so GetOrCreate only fails on allocation.
func NewManager(template Config) (*Manager, error) {
	if err := template.Validate(); err != nil {
		return nil, err
	}
	if _, _, err := template.storageBytes(); err != nil {
		return nil, err
	}
	return &Manager{
		rings:    make(map[record.StreamID]*Controller),
		template: template,
	}, nil
}

// GetOrCreate returns the ring for the stream, creating it if needed.
func (m *Manager) GetOrCreate(stream record.StreamID) (ring.Ring, error) {
	return m.controller(stream)
}

func (m *Manager) controller(stream record.StreamID) (*Controller, error) {
	m.mu.RLock()
	c, exists := m.rings[stream]
	m.mu.RUnlock()

	if exists {
		return c, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if c, exists := m.rings[stream]; exists {
		return c, nil
	}

	cfg := m.template
	cfg.Name = stream.String()
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	m.rings[stream] = c
	return c, nil
}

// Get returns the ring for the stream if it exists.
func (m *Manager) Get(stream record.StreamID) (*Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.rings[stream]
	return c, ok
}

// Each calls fn for every ring in stream order. fn runs without the manager
// lock held, so it may create rings.
func (m *Manager) Each(fn func(record.StreamID, *Controller)) {
	m.mu.RLock()
	streams := make([]record.StreamID, 0, len(m.rings))
	for s := range m.rings {
		streams = append(streams, s)
	}
	m.mu.RUnlock()

	slices.SortFunc(streams, func(a, b record.StreamID) int {
		return cmp.Or(cmp.Compare(a.Topic, b.Topic), cmp.Compare(a.Partition, b.Partition))
	})
	for _, s := range streams {
		if c, ok := m.Get(s); ok {
			fn(s, c)
		}
	}
}

// Len returns the number of rings.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rings)
}

// Draining reports whether any ring has begun draining.
func (m *Manager) Draining() bool {
	draining := false
	m.Each(func(_ record.StreamID, c *Controller) {
		if c.State() == ring.StateDraining {
			draining = true
		}
	})
	return draining
}

// Close closes every ring.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rings {
		_ = c.Close()
	}
	return nil
}

// Stats returns a snapshot of every ring in stream order.
func (m *Manager) Stats() []ring.Stats {
	var stats []ring.Stats
	m.Each(func(_ record.StreamID, c *Controller) {
		stats = append(stats, c.Stats())
	})
	return stats
}
