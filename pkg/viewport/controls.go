package viewport

import (
	"math"
	"sync"

	"github.com/chazu/badplaner/pkg/host"
	"github.com/chazu/badplaner/pkg/scene"
	"github.com/go-gl/mathgl/mgl64"
)

// ControlKind tags the camera control variants.
type ControlKind int

const (
	KindOrbit ControlKind = iota
	KindPlan
	KindFirstPerson
)

func (k ControlKind) String() string {
	switch k {
	case KindOrbit:
		return "orbit"
	case KindPlan:
		return "plan"
	case KindFirstPerson:
		return "first-person"
	}
	return "unknown"
}

// Control turns input events into camera motion. Event listeners only
// record intent; Update, called from the render loop, is the only place
// the camera is written.
type Control interface {
	Kind() ControlKind
	// Attach registers the control's listeners.
	Attach()
	// Detach removes every listener and releases the pointer lock. It is
	// safe to call more than once.
	Detach()
	// Update applies pending intent to cam; dt is in seconds.
	Update(cam *scene.Camera, dt float64)
}

// newControl selects the control for the view mode.
func newControl(cfg scene.Config, canvas *host.Canvas, window *host.Window, cam *scene.Camera) Control {
	switch cfg.Mode {
	case scene.ViewFirstPerson:
		return NewFirstPersonControl(canvas, window)
	case scene.ViewPlan:
		return NewPlanControl(canvas, cam, mgl64.Vec3{})
	default:
		return NewOrbitControl(canvas, cam, cfg.Center())
	}
}

// detachAll removes a set of subscriptions and clears the slice.
func detachAll(subs *[]host.Subscription) {
	for _, s := range *subs {
		s.Remove()
	}
	*subs = nil
}

// ----------------------------------------------------------------------------
// Orbit
// ----------------------------------------------------------------------------

// Orbit tuning.
const (
	OrbitDamping  = 0.05
	OrbitZoomStep = 0.95
	OrbitMaxPolar = math.Pi - 0.1
	PlanMaxPolar  = math.Pi / 2

	minRadius = 0.1
	polarEps  = 1e-6
	settled   = 1e-7
)

// orbit pivots the camera around a target on a sphere. Pointer drags turn
// it, the wheel changes the radius, and turning eases out with damping.
type orbit struct {
	canvas   *host.Canvas
	target   mgl64.Vec3
	rotate   bool
	maxPolar float64

	mu       sync.Mutex
	radius   float64
	theta    float64 // azimuth about +Y, from +Z
	phi      float64 // polar angle from +Y
	dTheta   float64
	dPhi     float64
	scale    float64
	dragging bool
	lastX    float64
	lastY    float64
	subs     []host.Subscription
}

func newOrbit(canvas *host.Canvas, cam *scene.Camera, target mgl64.Vec3, rotate bool, maxPolar float64) *orbit {
	o := &orbit{canvas: canvas, target: target, rotate: rotate, maxPolar: maxPolar, scale: 1}
	offset := cam.Position.Sub(target)
	o.radius = offset.Len()
	if o.radius > 0 {
		o.theta = math.Atan2(offset[0], offset[2])
		o.phi = math.Acos(mgl64.Clamp(offset[1]/o.radius, -1, 1))
	}
	return o
}

func (o *orbit) attach() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.subs) > 0 {
		return
	}
	o.subs = []host.Subscription{
		o.canvas.AddListener(host.PointerDown, o.onPointerDown),
		o.canvas.AddListener(host.PointerMove, o.onPointerMove),
		o.canvas.AddListener(host.PointerUp, o.onPointerUp),
		o.canvas.AddListener(host.Wheel, o.onWheel),
	}
}

func (o *orbit) detach() {
	o.mu.Lock()
	defer o.mu.Unlock()
	detachAll(&o.subs)
	o.dragging = false
}

func (o *orbit) onPointerDown(e host.Event) {
	if e.Button != 0 {
		return
	}
	o.mu.Lock()
	o.dragging, o.lastX, o.lastY = true, e.X, e.Y
	o.mu.Unlock()
}

func (o *orbit) onPointerMove(e host.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.dragging {
		return
	}
	dx, dy := e.X-o.lastX, e.Y-o.lastY
	o.lastX, o.lastY = e.X, e.Y
	if !o.rotate {
		return
	}
	_, height := o.parentSize()
	o.dTheta -= 2 * math.Pi * dx / height
	o.dPhi -= 2 * math.Pi * dy / height
}

// parentSize returns the drag reference size. The canvas carries no
// size of its own, so its container's height is used.
func (o *orbit) parentSize() (float64, float64) {
	if p := o.canvas.Parent(); p != nil {
		if w, h := p.ClientSize(); h > 0 {
			return float64(w), float64(h)
		}
	}
	return 1, 1
}

func (o *orbit) onPointerUp(e host.Event) {
	o.mu.Lock()
	o.dragging = false
	o.mu.Unlock()
}

func (o *orbit) onWheel(e host.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case e.DeltaY < 0:
		o.scale *= OrbitZoomStep
	case e.DeltaY > 0:
		o.scale /= OrbitZoomStep
	}
}

func (o *orbit) update(cam *scene.Camera) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if math.Abs(o.dTheta) < settled && math.Abs(o.dPhi) < settled && o.scale == 1 {
		o.dTheta, o.dPhi = 0, 0
		return
	}

	o.theta += o.dTheta * OrbitDamping
	o.phi += o.dPhi * OrbitDamping
	o.phi = mgl64.Clamp(o.phi, 0, o.maxPolar)
	o.phi = mgl64.Clamp(o.phi, polarEps, math.Pi-polarEps)
	o.dTheta *= 1 - OrbitDamping
	o.dPhi *= 1 - OrbitDamping

	o.radius = math.Max(minRadius, o.radius*o.scale)
	o.scale = 1

	sp, cp := math.Sincos(o.phi)
	st, ct := math.Sincos(o.theta)
	cam.Position = o.target.Add(mgl64.Vec3{o.radius * sp * st, o.radius * cp, o.radius * sp * ct})
	cam.LookAt(o.target)
}

// OrbitControl is the free orbit around the room center.
type OrbitControl struct{ o *orbit }

// NewOrbitControl orbits cam around target.
func NewOrbitControl(canvas *host.Canvas, cam *scene.Camera, target mgl64.Vec3) *OrbitControl {
	return &OrbitControl{o: newOrbit(canvas, cam, target, true, OrbitMaxPolar)}
}

func (c *OrbitControl) Kind() ControlKind                   { return KindOrbit }
func (c *OrbitControl) Attach()                             { c.o.attach() }
func (c *OrbitControl) Detach()                             { c.o.detach() }
func (c *OrbitControl) Update(cam *scene.Camera, _ float64) { c.o.update(cam) }

// Target returns the orbit center.
func (c *OrbitControl) Target() mgl64.Vec3 { return c.o.target }

// PlanControl is the top-down view: zoom only, no turning. Its target is
// the floor center so the camera stays above it in rooms of any height.
type PlanControl struct{ o *orbit }

// NewPlanControl zooms cam toward and away from target.
func NewPlanControl(canvas *host.Canvas, cam *scene.Camera, target mgl64.Vec3) *PlanControl {
	return &PlanControl{o: newOrbit(canvas, cam, target, false, PlanMaxPolar)}
}

func (c *PlanControl) Kind() ControlKind                   { return KindPlan }
func (c *PlanControl) Attach()                             { c.o.attach() }
func (c *PlanControl) Detach()                             { c.o.detach() }
func (c *PlanControl) Update(cam *scene.Camera, _ float64) { c.o.update(cam) }

// RotateEnabled is always false.
func (c *PlanControl) RotateEnabled() bool { return c.o.rotate }

// MaxPolar returns the polar angle limit.
func (c *PlanControl) MaxPolar() float64 { return c.o.maxPolar }

// ----------------------------------------------------------------------------
// First person
// ----------------------------------------------------------------------------

// First person tuning.
const (
	MovementSpeed  = 2.5
	VelocityDecay  = 10.0
	LookRadPerUnit = 0.002
)

// Movement is the keyboard intent.
type Movement struct {
	Forward  bool
	Backward bool
	Left     bool
	Right    bool
}

// FirstPersonControl walks the camera with WASD or the arrow keys and looks
// around with the mouse while the canvas holds the pointer lock.
type FirstPersonControl struct {
	canvas *host.Canvas
	window *host.Window

	mu       sync.Mutex
	move     Movement
	lookX    float64
	lookY    float64
	velocity mgl64.Vec3
	subs     []host.Subscription
}

// NewFirstPersonControl listens for clicks and pointer motion on canvas and
// keys on window.
func NewFirstPersonControl(canvas *host.Canvas, window *host.Window) *FirstPersonControl {
	return &FirstPersonControl{canvas: canvas, window: window}
}

func (c *FirstPersonControl) Kind() ControlKind { return KindFirstPerson }

func (c *FirstPersonControl) Attach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subs) > 0 {
		return
	}
	c.subs = []host.Subscription{
		c.canvas.AddListener(host.Click, func(host.Event) { c.canvas.RequestPointerLock() }),
		c.canvas.AddListener(host.PointerMove, c.onPointerMove),
		c.window.AddListener(host.KeyDown, func(e host.Event) { c.onKey(e.Code, true) }),
		c.window.AddListener(host.KeyUp, func(e host.Event) { c.onKey(e.Code, false) }),
	}
}

func (c *FirstPersonControl) Detach() {
	c.mu.Lock()
	detachAll(&c.subs)
	c.move = Movement{}
	c.mu.Unlock()
	c.canvas.ExitPointerLock()
}

func (c *FirstPersonControl) onPointerMove(e host.Event) {
	if !c.canvas.PointerLocked() {
		return
	}
	c.mu.Lock()
	c.lookX += e.MovementX
	c.lookY += e.MovementY
	c.mu.Unlock()
}

func (c *FirstPersonControl) onKey(code string, down bool) {
	if code == "Escape" {
		if down {
			c.canvas.ExitPointerLock()
		}
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch code {
	case "KeyW", "ArrowUp":
		c.move.Forward = down
	case "KeyS", "ArrowDown":
		c.move.Backward = down
	case "KeyA", "ArrowLeft":
		c.move.Left = down
	case "KeyD", "ArrowRight":
		c.move.Right = down
	}
}

// Intent returns the current keyboard intent.
func (c *FirstPersonControl) Intent() Movement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.move
}

// Velocity returns the current velocity in camera space (x right, z back).
func (c *FirstPersonControl) Velocity() mgl64.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.velocity
}

func (c *FirstPersonControl) Update(cam *scene.Camera, dt float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lookX != 0 || c.lookY != 0 {
		cam.Rotate(-c.lookX*LookRadPerUnit, -c.lookY*LookRadPerUnit)
		c.lookX, c.lookY = 0, 0
	}

	// v *= e^(-decay*dt)
	v := c.velocity
	k := math.Exp(-VelocityDecay * dt)
	v[0] *= k
	v[2] *= k

	dir := mgl64.Vec3{boolf(c.move.Right) - boolf(c.move.Left), 0, boolf(c.move.Forward) - boolf(c.move.Backward)}
	if dir.Len() > 0 {
		dir = dir.Normalize()
	}
	if c.move.Forward || c.move.Backward {
		v[2] -= dir[2] * MovementSpeed * dt
	}
	if c.move.Left || c.move.Right {
		v[0] -= dir[0] * MovementSpeed * dt
	}
	c.velocity = v

	cam.MoveRight(-v[0] * dt)
	cam.MoveForward(-v[2] * dt)
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var (
	_ Control = (*OrbitControl)(nil)
	_ Control = (*PlanControl)(nil)
	_ Control = (*FirstPersonControl)(nil)
)
