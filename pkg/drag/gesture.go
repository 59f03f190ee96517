package drag

import (
	"image"
	"sync"

	"github.com/xob0t/CertStencil/pkg/certificate"
)

// MoveFunc receives the clamped position of a dragged field.
type MoveFunc func(id int, pos certificate.Position)

// Gesture tracks pointer-down, move and up on one field as a single drag.
type Gesture struct {
	id         int
	dispatcher *Dispatcher
	onMove     MoveFunc

	mu       sync.Mutex
	dragging bool
	offset   image.Point
	field    image.Point // rendered size of the field
	surface  image.Rectangle
	detach   []func()
}

// NewGesture creates an idle gesture for field id.
func NewGesture(id int, d *Dispatcher, onMove MoveFunc) *Gesture {
	return &Gesture{id: id, dispatcher: d, onMove: onMove}
}

// Down starts a drag if pointer lies inside field. field and surface are the
// field's and the surface's rendered bounds in client coordinates. It reports
// whether the drag started; callers suppress the default browser drag when it did.
func (g *Gesture) Down(pointer image.Point, field, surface image.Rectangle) bool {
	if !pointer.In(field) {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.offset = pointer.Sub(field.Min)
	g.field = field.Size()
	g.surface = surface
	if g.dragging {
		return true
	}
	g.dragging = true
	g.detach = []func(){
		g.dispatcher.Add(func(ev PointerEvent) {
			if ev.Type == PointerMove {
				g.move(ev.Point)
			}
		}),
		g.dispatcher.Add(func(ev PointerEvent) {
			if ev.Type == PointerUp {
				g.Close()
			}
		}),
	}
	return true
}

// Dragging reports whether a drag is active.
func (g *Gesture) Dragging() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dragging
}

// Close ends any active drag and detaches its document listeners. It doubles as
// the pointer-up handler and as teardown.
func (g *Gesture) Close() {
	g.mu.Lock()
	detach := g.detach
	g.detach = nil
	g.dragging = false
	g.mu.Unlock()

	for _, d := range detach {
		d()
	}
}

func (g *Gesture) move(pointer image.Point) {
	g.mu.Lock()
	if !g.dragging {
		g.mu.Unlock()
		return
	}
	p := pointer.Sub(g.surface.Min).Sub(g.offset)
	pos := Clamp(p, g.field, g.surface.Size())
	g.mu.Unlock()

	if g.onMove != nil {
		g.onMove(g.id, pos)
	}
}

// Clamp bounds top-left p so a field of size field stays within a surface of size
// surface. A field larger than the surface is pinned to the origin on that axis.
func Clamp(p, field, surface image.Point) certificate.Position {
	return certificate.Position{
		X: clampAxis(p.X, surface.X-field.X),
		Y: clampAxis(p.Y, surface.Y-field.Y),
	}
}

func clampAxis(v, hi int) int {
	return max(0, min(v, hi))
}
