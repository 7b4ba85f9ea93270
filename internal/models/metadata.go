// Package models defines the records produced by recursive extraction.
package models

// Metadata maps names to one or more string values. Names keep the order in
// which they were first added, and values keep the order in which they were
// appended, so that serialized records are stable.
type Metadata struct {
	names  []string
	values map[string][]string
}

// NewMetadata returns an empty Metadata.
func NewMetadata() *Metadata {
	return &Metadata{values: make(map[string][]string)}
}

// Add appends value to name. Empty values are kept.
func (m *Metadata) Add(name, value string) {
	if _, ok := m.values[name]; !ok {
		m.names = append(m.names, name)
	}
	m.values[name] = append(m.values[name], value)
}

// Set replaces all values of name. Setting no values removes the name.
func (m *Metadata) Set(name string, values ...string) {
	if len(values) == 0 {
		m.Remove(name)
		return
	}
	if _, ok := m.values[name]; !ok {
		m.names = append(m.names, name)
	}
	m.values[name] = append([]string(nil), values...)
}

// Get returns the first value of name, or "" when name is not present.
func (m *Metadata) Get(name string) string {
	if v := m.values[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Values returns a copy of all values of name.
func (m *Metadata) Values(name string) []string {
	return append([]string(nil), m.values[name]...)
}

// Has reports whether name has at least one value.
func (m *Metadata) Has(name string) bool {
	_, ok := m.values[name]
	return ok
}

// Remove deletes name and its values.
func (m *Metadata) Remove(name string) {
	if _, ok := m.values[name]; !ok {
		return
	}
	delete(m.values, name)
	for i, n := range m.names {
		if n == name {
			m.names = append(m.names[:i], m.names[i+1:]...)
			break
		}
	}
}

// Names returns the names in insertion order.
func (m *Metadata) Names() []string {
	return append([]string(nil), m.names...)
}

// Len returns the number of names.
func (m *Metadata) Len() int {
	return len(m.names)
}

// Clone returns a deep copy.
func (m *Metadata) Clone() *Metadata {
	c := NewMetadata()
	for _, n := range m.names {
		c.Set(n, m.values[n]...)
	}
	return c
}
