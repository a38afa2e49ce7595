package preview

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDuplicateMetadataKey is returned when two stages try to write the same key.
var ErrDuplicateMetadataKey = errors.New("duplicate metadata key")

// Metadata is an insertion-ordered string to value mapping. Each key may be
// written once.
type Metadata struct {
	keys   []string
	values map[string]interface{}
}

// NewMetadata creates an empty metadata set.
func NewMetadata() *Metadata {
	return &Metadata{values: make(map[string]interface{})}
}

// Set adds a key. It fails if the key was already written.
func (m *Metadata) Set(key string, value interface{}) error {
	if m.values == nil {
		m.values = make(map[string]interface{})
	}
	if _, ok := m.values[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMetadataKey, key)
	}
	m.keys = append(m.keys, key)
	m.values[key] = value
	return nil
}

// Get returns the value stored under key.
func (m *Metadata) Get(key string) (interface{}, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *Metadata) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Len returns the number of keys.
func (m *Metadata) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Merge copies every key of other into m, failing on the first collision.
func (m *Metadata) Merge(other *Metadata) error {
	for _, k := range other.Keys() {
		v, _ := other.Get(k)
		if err := m.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}

// Map returns an unordered copy.
func (m *Metadata) Map() map[string]interface{} {
	out := make(map[string]interface{}, m.Len())
	for _, k := range m.Keys() {
		out[k] = m.values[k]
	}
	return out
}

// MarshalJSON encodes the metadata as an object, keys in insertion order.
func (m *Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("metadata %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object, keeping the key order of the input.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("metadata: expected object")
	}

	*m = Metadata{values: make(map[string]interface{})}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("metadata: expected string key")
		}
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return err
		}
		if err := m.Set(key, value); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}
