// Package drag implements pointer-drag positioning of overlay fields, bounded to the
// template surface.
package drag

import (
	"image"
	"sort"
	"sync"
)

// EventType distinguishes document-level pointer events.
type EventType int

const (
	PointerMove EventType = iota
	PointerUp
)

// PointerEvent is a pointer event in client coordinates.
type PointerEvent struct {
	Type  EventType
	Point image.Point
}

// Listener receives document-level pointer events.
type Listener func(PointerEvent)

// Dispatcher is the document-level event target. Listeners are only attached while
// a drag is active, so an idle document has none.
type Dispatcher struct {
	mu        sync.Mutex
	next      int
	listeners map[int]Listener
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{listeners: make(map[int]Listener)}
}

// Add attaches l and returns the function that detaches it. Calling the returned
// function more than once is harmless.
func (d *Dispatcher) Add(l Listener) (remove func()) {
	d.mu.Lock()
	id := d.next
	d.next++
	d.listeners[id] = l
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.listeners, id)
			d.mu.Unlock()
		})
	}
}

// Dispatch delivers ev to every listener attached when the call starts, in
// attachment order. Listeners may detach themselves while handling it.
func (d *Dispatcher) Dispatch(ev PointerEvent) {
	d.mu.Lock()
	ids := make([]int, 0, len(d.listeners))
	for id := range d.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	ls := make([]Listener, 0, len(ids))
	for _, id := range ids {
		ls = append(ls, d.listeners[id])
	}
	d.mu.Unlock()

	for _, l := range ls {
		l(ev)
	}
}

// Len returns the number of attached listeners.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}
