// Package host models the surfaces the viewport lives on: the application
// window, a container element and the canvas, each an event target with
// explicitly added and removed listeners.
package host

import (
	"sort"
	"sync"
)

// EventType names an input or lifecycle event.
type EventType string

const (
	Click             EventType = "click"
	KeyDown           EventType = "keydown"
	KeyUp             EventType = "keyup"
	PointerDown       EventType = "pointerdown"
	PointerMove       EventType = "pointermove"
	PointerUp         EventType = "pointerup"
	Wheel             EventType = "wheel"
	Resize            EventType = "resize"
	PointerLockChange EventType = "pointerlockchange"
)

// Event carries the fields listeners read. Code is a KeyboardEvent code
// such as "KeyW" or "ArrowUp".
type Event struct {
	Type      EventType `json:"type"`
	Code      string    `json:"code,omitempty"`
	Button    int       `json:"button,omitempty"`
	X         float64   `json:"x,omitempty"`
	Y         float64   `json:"y,omitempty"`
	MovementX float64   `json:"movementX,omitempty"`
	MovementY float64   `json:"movementY,omitempty"`
	DeltaY    float64   `json:"deltaY,omitempty"`
}

// Listener handles one event.
type Listener func(Event)

// Subscription identifies a registered listener.
type Subscription struct {
	target *Target
	typ    EventType
	id     uint64
}

// Remove unregisters the listener. Removing twice is harmless.
func (s Subscription) Remove() {
	if s.target != nil {
		s.target.RemoveListener(s)
	}
}

// Target keeps listeners per event type. Listeners run in registration
// order on the dispatching goroutine, outside the target's lock.
type Target struct {
	mu        sync.Mutex
	next      uint64
	listeners map[EventType]map[uint64]Listener
}

// AddListener registers fn for typ.
func (t *Target) AddListener(typ EventType, fn Listener) Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listeners == nil {
		t.listeners = make(map[EventType]map[uint64]Listener)
	}
	if t.listeners[typ] == nil {
		t.listeners[typ] = make(map[uint64]Listener)
	}
	t.next++
	t.listeners[typ][t.next] = fn
	return Subscription{target: t, typ: typ, id: t.next}
}

// RemoveListener unregisters a subscription.
func (t *Target) RemoveListener(s Subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m := t.listeners[s.typ]; m != nil {
		delete(m, s.id)
	}
}

// ListenerCount returns how many listeners are registered for typ.
func (t *Target) ListenerCount(typ EventType) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.listeners[typ])
}

// TotalListeners returns the number of listeners across all types.
func (t *Target) TotalListeners() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, m := range t.listeners {
		n += len(m)
	}
	return n
}

// Dispatch delivers e to the listeners registered for e.Type.
func (t *Target) Dispatch(e Event) {
	t.mu.Lock()
	m := t.listeners[e.Type]
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]Listener, len(ids))
	for i, id := range ids {
		fns[i] = m[id]
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}

// ---------------------------------------------------------------------------
// Window
// ---------------------------------------------------------------------------

// Window is the top-level surface. It receives keyboard and resize events.
type Window struct {
	Target

	sizeMu sync.Mutex
	width  int
	height int
}

// NewWindow returns a window with the given inner size.
func NewWindow(width, height int) *Window {
	return &Window{width: width, height: height}
}

// InnerSize returns the window's inner size.
func (w *Window) InnerSize() (int, int) {
	w.sizeMu.Lock()
	defer w.sizeMu.Unlock()
	return w.width, w.height
}

// SetInnerSize stores the size and dispatches a resize event.
func (w *Window) SetInnerSize(width, height int) {
	w.sizeMu.Lock()
	w.width, w.height = width, height
	w.sizeMu.Unlock()
	w.Dispatch(Event{Type: Resize})
}

// ---------------------------------------------------------------------------
// Container and canvas
// ---------------------------------------------------------------------------

// Container is an element the viewport mounts its canvas into.
type Container interface {
	ClientSize() (int, int)
	AppendChild(c *Canvas)
	RemoveChild(c *Canvas)
}

// Element is a plain Container.
type Element struct {
	mu       sync.Mutex
	width    int
	height   int
	children []*Canvas
}

var _ Container = (*Element)(nil)

// NewElement returns an element with the given client size.
func NewElement(width, height int) *Element {
	return &Element{width: width, height: height}
}

func (e *Element) ClientSize() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.width, e.height
}

// SetClientSize changes the layout size. It does not dispatch anything;
// the window's resize event drives re-measurement.
func (e *Element) SetClientSize(width, height int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.width, e.height = width, height
}

func (e *Element) AppendChild(c *Canvas) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.children = append(e.children, c)
	c.setParent(e)
}

func (e *Element) RemoveChild(c *Canvas) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, child := range e.children {
		if child == c {
			e.children = append(e.children[:i], e.children[i+1:]...)
			c.setParent(nil)
			return
		}
	}
}

// Children returns the mounted canvases.
func (e *Element) Children() []*Canvas {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Canvas(nil), e.children...)
}

// Canvas is the drawing surface. It receives pointer events and can hold
// the pointer lock.
type Canvas struct {
	Target

	stateMu sync.Mutex
	locked  bool
	parent  Container
}

// NewCanvas returns a detached canvas.
func NewCanvas() *Canvas {
	return &Canvas{}
}

func (c *Canvas) setParent(p Container) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.parent = p
}

// Parent returns the container the canvas is mounted in, or nil.
func (c *Canvas) Parent() Container {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.parent
}

// RequestPointerLock captures the pointer and dispatches pointerlockchange.
// A detached canvas cannot take the lock.
func (c *Canvas) RequestPointerLock() {
	c.stateMu.Lock()
	if c.locked || c.parent == nil {
		c.stateMu.Unlock()
		return
	}
	c.locked = true
	c.stateMu.Unlock()
	c.Dispatch(Event{Type: PointerLockChange})
}

// ExitPointerLock releases the pointer and dispatches pointerlockchange.
func (c *Canvas) ExitPointerLock() {
	c.stateMu.Lock()
	if !c.locked {
		c.stateMu.Unlock()
		return
	}
	c.locked = false
	c.stateMu.Unlock()
	c.Dispatch(Event{Type: PointerLockChange})
}

// PointerLocked reports whether the canvas holds the pointer lock.
func (c *Canvas) PointerLocked() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.locked
}
