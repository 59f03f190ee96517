package drag

import (
	"image"
	"sync"
)

// Board owns one gesture per field and the document they share.
type Board struct {
	dispatcher *Dispatcher
	onMove     MoveFunc

	mu       sync.Mutex
	gestures map[int]*Gesture
}

// NewBoard creates a board that reports field moves to onMove.
func NewBoard(onMove MoveFunc) *Board {
	return &Board{
		dispatcher: NewDispatcher(),
		onMove:     onMove,
		gestures:   make(map[int]*Gesture),
	}
}

// Down forwards a pointer-down on field id to its gesture.
func (b *Board) Down(id int, pointer image.Point, field, surface image.Rectangle) bool {
	return b.gesture(id).Down(pointer, field, surface)
}

// Move dispatches a document-level pointer move.
func (b *Board) Move(pointer image.Point) {
	b.dispatcher.Dispatch(PointerEvent{Type: PointerMove, Point: pointer})
}

// Up dispatches a document-level pointer up.
func (b *Board) Up(pointer image.Point) {
	b.dispatcher.Dispatch(PointerEvent{Type: PointerUp, Point: pointer})
}

// Dragging reports whether field id is being dragged.
func (b *Board) Dragging(id int) bool {
	b.mu.Lock()
	g, ok := b.gestures[id]
	b.mu.Unlock()
	return ok && g.Dragging()
}

// Listeners returns the number of document listeners currently attached.
func (b *Board) Listeners() int {
	return b.dispatcher.Len()
}

// Reset tears down every gesture, e.g. when the field collection is replaced.
func (b *Board) Reset() {
	b.mu.Lock()
	gestures := b.gestures
	b.gestures = make(map[int]*Gesture)
	b.mu.Unlock()

	for _, g := range gestures {
		g.Close()
	}
}

func (b *Board) gesture(id int) *Gesture {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.gestures[id]
	if !ok {
		g = NewGesture(id, b.dispatcher, b.onMove)
		b.gestures[id] = g
	}
	return g
}
