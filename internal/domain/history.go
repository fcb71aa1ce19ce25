package domain

import (
	"encoding/json"
	"slices"
)

const DefaultHistoryCapacity = 10

// History is a bounded insertion-ordered map with value semantics.
// Put and Delete never touch the receiver; they return the updated copy,
// so a History held by a published snapshot stays valid.
type History[K comparable, V any] struct {
	order    []K
	items    map[K]V
	capacity int
}

func NewHistory[K comparable, V any](capacity int) History[K, V] {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return History[K, V]{capacity: capacity}
}

func (h History[K, V]) Capacity() int {
	if h.capacity <= 0 {
		return DefaultHistoryCapacity
	}
	return h.capacity
}

func (h History[K, V]) Len() int { return len(h.order) }

func (h History[K, V]) Get(k K) (V, bool) {
	v, ok := h.items[k]
	return v, ok
}

func (h History[K, V]) Has(k K) bool {
	_, ok := h.items[k]
	return ok
}

// Keys returns keys oldest first.
func (h History[K, V]) Keys() []K { return slices.Clone(h.order) }

// Put inserts or replaces k as the newest entry and evicts the oldest
// entries beyond capacity.
func (h History[K, V]) Put(k K, v V) History[K, V] {
	order := make([]K, 0, len(h.order)+1)
	for _, existing := range h.order {
		if existing != k {
			order = append(order, existing)
		}
	}
	order = append(order, k)

	items := make(map[K]V, len(order))
	for _, key := range h.order {
		if key != k {
			items[key] = h.items[key]
		}
	}
	items[k] = v

	limit := h.Capacity()
	for len(order) > limit {
		delete(items, order[0])
		order = order[1:]
	}
	return History[K, V]{order: order, items: items, capacity: limit}
}

func (h History[K, V]) Delete(k K) History[K, V] {
	if !h.Has(k) {
		return h
	}
	order := make([]K, 0, len(h.order))
	items := make(map[K]V, len(h.order))
	for _, key := range h.order {
		if key == k {
			continue
		}
		order = append(order, key)
		items[key] = h.items[key]
	}
	return History[K, V]{order: order, items: items, capacity: h.Capacity()}
}

// Each visits entries oldest first.
func (h History[K, V]) Each(fn func(K, V)) {
	for _, k := range h.order {
		fn(k, h.items[k])
	}
}

func (h History[K, V]) MarshalJSON() ([]byte, error) {
	if h.items == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(h.items)
}
