package index

import (
	"sync"

	"golang.org/x/exp/slices"
)

// Metadata is the supported-fields schema of a suggester. Document observations are
// only learned for fields registered here.
type Metadata struct {
	mu     sync.RWMutex
	fields []string
}

func NewMetadata(fields ...string) *Metadata {
	m := &Metadata{}
	for _, f := range fields {
		m.AddField(f)
	}
	return m
}

// AddField registers a field, returning false if it was already supported
func (m *Metadata) AddField(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.Contains(m.fields, name) {
		return false
	}
	m.fields = append(m.fields, name)
	return true
}

func (m *Metadata) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Contains(m.fields, name)
}

// Fields returns a copy of the supported fields in registration order
func (m *Metadata) Fields() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.fields...)
}
