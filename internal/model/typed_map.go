// Package model holds the cluster data types shared by the client, the status classifier and the aggregator.
package model

import (
	"bytes"
	"fmt"
	"slices"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Enum is a closed, finite key set. Members must return every member in a stable order
// and must be callable on the zero value.
type Enum[K any] interface {
	comparable
	fmt.Stringer
	Members() []K
}

// TypedMap is a total map over an Enum: every member always has a value.
// The zero value behaves like a freshly constructed map.
//
// Like a Go map, a TypedMap is a reference: copies of a constructed map share storage, so Set on
// one is seen by all. The zero value has no storage yet; its first Set allocates it for that copy
// only. Build with NewTypedMap when a value is going to be copied and then written.
type TypedMap[K Enum[K], V any] struct {
	values map[K]V
}

// NewTypedMap returns a map holding the zero value of V for every member of K.
func NewTypedMap[K Enum[K], V any]() TypedMap[K, V] {
	var zero K
	members := zero.Members()
	values := make(map[K]V, len(members))
	for _, k := range members {
		var v V
		values[k] = v
	}
	return TypedMap[K, V]{values: values}
}

// Get returns the value for key. Passing a value outside the key set is a programming error and panics.
func (m TypedMap[K, V]) Get(key K) V {
	mustBeMember(key)
	return m.values[key]
}

// Set stores value under key.
func (m *TypedMap[K, V]) Set(key K, value V) {
	mustBeMember(key)
	m.init()
	m.values[key] = value
}

// Update replaces the value under key with fn applied to it.
func (m *TypedMap[K, V]) Update(key K, fn func(V) V) {
	m.Set(key, fn(m.Get(key)))
}

// Len is always the size of the key set.
func (m TypedMap[K, V]) Len() int {
	var zero K
	return len(zero.Members())
}

// Keys returns the key set in declaration order.
func (m TypedMap[K, V]) Keys() []K {
	var zero K
	return slices.Clone(zero.Members())
}

// Each visits every member in declaration order.
func (m TypedMap[K, V]) Each(fn func(K, V)) {
	for _, k := range m.Keys() {
		fn(k, m.values[k])
	}
}

func (m *TypedMap[K, V]) init() {
	if m.values == nil {
		*m = NewTypedMap[K, V]()
	}
}

// MarshalJSON writes an object keyed by member name in declaration order.
func (m TypedMap[K, V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k.String())
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object keyed by member name. Missing members are zero, unknown keys are ignored.
func (m *TypedMap[K, V]) UnmarshalJSON(data []byte) error {
	var raw map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = NewTypedMap[K, V]()
	for _, k := range m.Keys() {
		body, ok := raw[k.String()]
		if !ok {
			continue
		}
		var v V
		if err := json.Unmarshal(body, &v); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", k, err)
		}
		m.values[k] = v
	}
	return nil
}

func mustBeMember[K Enum[K]](key K) {
	if !slices.Contains(key.Members(), key) {
		panic(fmt.Sprintf("typed map: %q is not a member of the key set", key.String()))
	}
}
