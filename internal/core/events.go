package core

import "sync"

// Off detaches a listener. Calling it more than once is a no-op.
type Off func()

// Topic is a typed listener list. SDK adapters embed one Topic per event
// they expose; listeners run synchronously on the emitting goroutine in
// registration order.
type Topic[T any] struct {
	mu        sync.RWMutex
	next      uint64
	listeners []listener[T]
}

type listener[T any] struct {
	id uint64
	fn func(T)
}

func (t *Topic[T]) On(fn func(T)) Off {
	t.mu.Lock()
	t.next++
	id := t.next
	t.listeners = append(t.listeners, listener[T]{id: id, fn: fn})
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { t.remove(id) })
	}
}

func (t *Topic[T]) remove(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, l := range t.listeners {
		if l.id == id {
			t.listeners = append(t.listeners[:i:i], t.listeners[i+1:]...)
			return
		}
	}
}

// Emit delivers v to a snapshot of the current listeners.
func (t *Topic[T]) Emit(v T) {
	t.mu.RLock()
	ls := make([]listener[T], len(t.listeners))
	copy(ls, t.listeners)
	t.mu.RUnlock()
	for _, l := range ls {
		l.fn(v)
	}
}

func (t *Topic[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.listeners)
}

// Signal is a Topic for events without payload; the handler re-reads the
// entity.
type Signal = Topic[struct{}]

func (t *Topic[T]) OnSignal(fn func()) Off {
	return t.On(func(T) { fn() })
}
