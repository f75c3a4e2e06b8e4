package viewport

import (
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chazu/badplaner/pkg/frameloop"
	"github.com/chazu/badplaner/pkg/host"
	"github.com/chazu/badplaner/pkg/kernel/sdfx"
	"github.com/chazu/badplaner/pkg/logging"
	"github.com/chazu/badplaner/pkg/scene"
	"github.com/chazu/badplaner/pkg/snapshot"
	"github.com/go-gl/mathgl/mgl64"
)

type rig struct {
	window    *host.Window
	container *host.Element
	sched     *frameloop.Manual
	vp        *Viewport
	now       time.Time
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		window:    host.NewWindow(800, 600),
		container: host.NewElement(64, 48),
		sched:     frameloop.NewManual(),
		now:       time.Unix(1700000000, 0),
	}
	r.vp = New(Options{
		Window:    r.window,
		Container: r.container,
		Scheduler: r.sched,
		Kernel:    sdfx.New(16),
		Log:       logging.Discard(),
	})
	t.Cleanup(r.vp.Dispose)
	return r
}

// step runs one frame dt seconds after the previous one.
func (r *rig) step(dt float64) int {
	r.now = r.now.Add(time.Duration(dt * float64(time.Second)))
	return r.sched.Step(r.now)
}

func (r *rig) info(t *testing.T) Info {
	t.Helper()
	info, ok := r.vp.Inspect()
	if !ok {
		t.Fatal("no scene alive")
	}
	return info
}

var defaultRoom = scene.Config{Width: 4, Depth: 3, Height: 2.5, Mode: scene.ViewOrbit, ShowGrid: true}

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestLifecycle(t *testing.T) {
	r := newRig(t)
	if s := r.vp.State(); s != Uninitialized {
		t.Fatalf("state = %v, want uninitialized", s)
	}
	if got := r.vp.Capture(); got != "" {
		t.Error("Capture before any render should be empty")
	}

	if err := r.vp.Configure(defaultRoom); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if s := r.vp.State(); s != Active {
		t.Fatalf("state = %v, want active", s)
	}
	if !strings.HasPrefix(r.vp.Capture(), "data:image/png;base64,") {
		t.Error("Capture after build is not a PNG data URL")
	}
	if len(r.container.Children()) != 1 {
		t.Errorf("container has %d canvases, want 1", len(r.container.Children()))
	}

	r.vp.Dispose()
	if s := r.vp.State(); s != Disposed {
		t.Fatalf("state = %v, want disposed", s)
	}
	if err := r.vp.Configure(defaultRoom); !errors.Is(err, ErrDisposed) {
		t.Errorf("Configure after Dispose err = %v, want ErrDisposed", err)
	}
	if r.vp.Capture() != "" {
		t.Error("Capture after Dispose should be empty")
	}
	if n := len(r.container.Children()); n != 0 {
		t.Errorf("container still has %d canvases", n)
	}
	if n := r.window.TotalListeners(); n != 0 {
		t.Errorf("window still has %d listeners", n)
	}
	if n := r.sched.Pending(); n != 0 {
		t.Errorf("%d frames still pending", n)
	}
	r.vp.Dispose()
}

func TestDefaultScenario(t *testing.T) {
	r := newRig(t)
	if err := r.vp.Configure(defaultRoom); err != nil {
		t.Fatal(err)
	}
	info := r.info(t)
	if info.Floors != 1 || info.Walls != 4 || info.Grids != 1 || info.Fixtures != 0 {
		t.Errorf("nodes: %d floor, %d walls, %d grid, %d fixtures", info.Floors, info.Walls, info.Grids, info.Fixtures)
	}
	if info.Control != KindOrbit {
		t.Errorf("control = %v, want orbit", info.Control)
	}

	cam := info.Camera
	if !(cam.Position[0] > 2 && cam.Position[2] > 1.5 && cam.Position[1] > 0) {
		t.Errorf("camera %v is not above and outside the room", cam.Position)
	}
	want := mgl64.Vec3{0, 1.25, 0}.Sub(cam.Position).Normalize()
	if got := cam.Forward(); got.Sub(want).Len() > 1e-9 {
		t.Errorf("camera looks along %v, want toward (0, 1.25, 0) %v", got, want)
	}
}

func TestSameConfigIsNoop(t *testing.T) {
	r := newRig(t)
	_ = r.vp.Configure(defaultRoom)
	first := r.info(t)
	if err := r.vp.Configure(defaultRoom); err != nil {
		t.Fatal(err)
	}
	second := r.info(t)
	if first.Handle != second.Handle || second.Builds != 1 {
		t.Errorf("same config rebuilt: %s -> %s, %d builds", first.Handle, second.Handle, second.Builds)
	}
}

func TestGridToggleRebuilds(t *testing.T) {
	r := newRig(t)
	_ = r.vp.Configure(defaultRoom)
	before := r.info(t)

	cfg := defaultRoom
	cfg.ShowGrid = false
	if err := r.vp.Configure(cfg); err != nil {
		t.Fatal(err)
	}
	after := r.info(t)
	if after.Handle == before.Handle {
		t.Error("handle was reused")
	}
	if after.Grids != 0 || after.Walls != before.Walls || after.Floors != before.Floors {
		t.Errorf("grid off: %d grids, %d walls, %d floors", after.Grids, after.Walls, after.Floors)
	}
	if r.sched.Pending() != 1 {
		t.Errorf("%d frames pending, want 1 (old loop cancelled)", r.sched.Pending())
	}
	if n := r.window.ListenerCount(host.Resize); n != 1 {
		t.Errorf("%d resize listeners, want 1", n)
	}
	if n := len(r.container.Children()); n != 1 {
		t.Errorf("%d canvases mounted, want 1", n)
	}
}

func TestRenderLoop(t *testing.T) {
	r := newRig(t)
	_ = r.vp.Configure(defaultRoom)
	if f := r.info(t).Frames; f != 1 {
		t.Fatalf("frames after build = %d, want 1", f)
	}
	for i := 0; i < 3; i++ {
		if n := r.step(1.0 / 60); n != 1 {
			t.Fatalf("step %d ran %d callbacks, want 1", i, n)
		}
	}
	if f := r.info(t).Frames; f != 4 {
		t.Errorf("frames = %d, want 4", f)
	}

	r.vp.Dispose()
	if n := r.step(1.0 / 60); n != 0 {
		t.Errorf("loop ran %d callbacks after Dispose", n)
	}
}

func TestSwitchOrbitToFirstPerson(t *testing.T) {
	r := newRig(t)
	_ = r.vp.Configure(defaultRoom)
	orbitCanvas := r.vp.Canvas()
	for _, typ := range []host.EventType{host.PointerDown, host.PointerMove, host.PointerUp, host.Wheel} {
		if n := orbitCanvas.ListenerCount(typ); n != 1 {
			t.Errorf("orbit canvas has %d %s listeners, want 1", n, typ)
		}
	}

	cfg := defaultRoom
	cfg.Mode = scene.ViewFirstPerson
	if err := r.vp.Configure(cfg); err != nil {
		t.Fatal(err)
	}
	if n := orbitCanvas.TotalListeners(); n != 0 {
		t.Errorf("old canvas kept %d listeners", n)
	}
	fpCanvas := r.vp.Canvas()
	if fpCanvas.ListenerCount(host.Click) != 1 || fpCanvas.ListenerCount(host.PointerMove) != 1 {
		t.Error("first person did not attach click and pointermove")
	}
	if fpCanvas.ListenerCount(host.PointerDown) != 0 || fpCanvas.ListenerCount(host.Wheel) != 0 {
		t.Error("orbit listeners on the first person canvas")
	}
	if r.window.ListenerCount(host.KeyDown) != 1 || r.window.ListenerCount(host.KeyUp) != 1 {
		t.Error("first person did not attach key listeners")
	}

	fp, ok := r.vp.Control().(*FirstPersonControl)
	if !ok {
		t.Fatalf("control = %T, want *FirstPersonControl", r.vp.Control())
	}
	r.window.Dispatch(host.Event{Type: host.KeyDown, Code: "KeyW"})
	if !fp.Intent().Forward {
		t.Error("KeyW down did not set forward intent")
	}
	r.window.Dispatch(host.Event{Type: host.KeyDown, Code: "KeyQ"})
	if !fp.Intent().Forward {
		t.Error("unrelated key cleared forward intent")
	}
	r.window.Dispatch(host.Event{Type: host.KeyUp, Code: "KeyW"})
	if fp.Intent().Forward {
		t.Error("KeyW up did not clear forward intent")
	}

	cfg.Mode = scene.ViewOrbit
	_ = r.vp.Configure(cfg)
	if n := r.window.ListenerCount(host.KeyDown) + r.window.ListenerCount(host.KeyUp); n != 0 {
		t.Errorf("%d key listeners left after leaving first person", n)
	}
}

func TestFirstPersonWalk(t *testing.T) {
	r := newRig(t)
	cfg := defaultRoom
	cfg.Mode = scene.ViewFirstPerson
	_ = r.vp.Configure(cfg)
	start := r.info(t).Camera

	r.window.Dispatch(host.Event{Type: host.KeyDown, Code: "ArrowUp"})
	r.step(0)
	for i := 0; i < 20; i++ {
		r.step(0.05)
	}
	walked := r.info(t).Camera
	if walked.Position[1] != start.Position[1] {
		t.Errorf("walking changed height: %v -> %v", start.Position[1], walked.Position[1])
	}
	flat := func(v mgl64.Vec3) float64 { return math.Hypot(v[0], v[2]) }
	if flat(walked.Position) >= flat(start.Position) {
		t.Errorf("walking forward did not approach the center: %v -> %v", start.Position, walked.Position)
	}
	fp := r.vp.Control().(*FirstPersonControl)
	if v := fp.Velocity(); v[2] >= 0 {
		t.Errorf("forward velocity = %v, want negative z", v)
	}

	r.window.Dispatch(host.Event{Type: host.KeyUp, Code: "ArrowUp"})
	for i := 0; i < 100; i++ {
		r.step(0.05)
	}
	if v := fp.Velocity(); math.Abs(v[2]) > 1e-6 {
		t.Errorf("velocity %v did not decay after release", v)
	}
}

func TestFirstPersonLongFramesDoNotAccelerate(t *testing.T) {
	c := NewFirstPersonControl(host.NewCanvas(), host.NewWindow(1, 1))
	c.Attach()
	defer c.Detach()
	cam := scene.NewCamera(1)

	c.window.Dispatch(host.Event{Type: host.KeyDown, Code: "KeyW"})
	for i := 0; i < 5; i++ {
		c.Update(cam, 1.0/60)
	}
	c.window.Dispatch(host.Event{Type: host.KeyUp, Code: "KeyW"})
	released := cam.Position

	prev := c.Velocity().Len()
	for i := 0; i < 10; i++ {
		c.Update(cam, 0.3)
		v := c.Velocity()
		if v.Len() > prev {
			t.Fatalf("frame %d: |v| grew from %v to %v with no key held", i, prev, v.Len())
		}
		if v[2] > 0 {
			t.Fatalf("frame %d: velocity reversed to %v", i, v)
		}
		prev = v.Len()
	}
	if d := cam.Position.Sub(released).Len(); d > 0.1 {
		t.Errorf("camera coasted %v m after release", d)
	}
}

func TestFirstPersonDiagonalIsNormalized(t *testing.T) {
	c := NewFirstPersonControl(host.NewCanvas(), host.NewWindow(1, 1))
	c.Attach()
	defer c.Detach()
	c.window.Dispatch(host.Event{Type: host.KeyDown, Code: "KeyW"})
	c.window.Dispatch(host.Event{Type: host.KeyDown, Code: "KeyD"})

	cam := scene.NewCamera(1)
	c.Update(cam, 0.1)
	v := c.Velocity()
	want := MovementSpeed * 0.1 / math.Sqrt2
	if !near(v[0], -want, 1e-12) || !near(v[2], -want, 1e-12) {
		t.Errorf("velocity = %v, want both axes %v", v, -want)
	}
}

func TestPointerLockLook(t *testing.T) {
	r := newRig(t)
	cfg := defaultRoom
	cfg.Mode = scene.ViewFirstPerson
	_ = r.vp.Configure(cfg)
	canvas := r.vp.Canvas()
	start := r.info(t).Camera

	// Without the lock, pointer motion is ignored.
	canvas.Dispatch(host.Event{Type: host.PointerMove, MovementX: 100})
	r.step(0)
	if got := r.info(t).Camera.Yaw; got != start.Yaw {
		t.Errorf("unlocked look changed yaw %v -> %v", start.Yaw, got)
	}

	canvas.Dispatch(host.Event{Type: host.Click})
	if !canvas.PointerLocked() {
		t.Fatal("click did not take the pointer lock")
	}
	canvas.Dispatch(host.Event{Type: host.PointerMove, MovementX: 100, MovementY: -50})
	r.step(0.016)
	cam := r.info(t).Camera
	if !near(cam.Yaw, start.Yaw-0.2, 1e-12) {
		t.Errorf("yaw = %v, want %v", cam.Yaw, start.Yaw-0.2)
	}
	if !near(cam.Pitch, start.Pitch+0.1, 1e-12) {
		t.Errorf("pitch = %v, want %v", cam.Pitch, start.Pitch+0.1)
	}

	r.window.Dispatch(host.Event{Type: host.KeyDown, Code: "Escape"})
	if canvas.PointerLocked() {
		t.Error("Escape did not release the pointer lock")
	}

	canvas.Dispatch(host.Event{Type: host.Click})
	cfg.Mode = scene.ViewOrbit
	_ = r.vp.Configure(cfg)
	if canvas.PointerLocked() {
		t.Error("teardown did not release the pointer lock")
	}
}

func TestPlanView(t *testing.T) {
	r := newRig(t)
	cfg := defaultRoom
	cfg.Mode = scene.ViewPlan
	_ = r.vp.Configure(cfg)

	info := r.info(t)
	if info.Control != KindPlan {
		t.Fatalf("control = %v, want plan", info.Control)
	}
	plan := r.vp.Control().(*PlanControl)
	if plan.RotateEnabled() {
		t.Error("plan view allows rotation")
	}
	if plan.MaxPolar() != math.Pi/2 {
		t.Errorf("max polar = %v, want pi/2", plan.MaxPolar())
	}
	cam := info.Camera
	if cam.Position != (mgl64.Vec3{0, 8, 0}) {
		t.Errorf("camera at %v, want (0, 8, 0)", cam.Position)
	}
	if f := cam.Forward(); f.Sub(mgl64.Vec3{0, -1, 0}).Len() > 1e-9 {
		t.Errorf("camera looks along %v, want straight down", f)
	}

	// Dragging does not turn the plan.
	canvas := r.vp.Canvas()
	canvas.Dispatch(host.Event{Type: host.PointerDown, X: 10, Y: 10})
	canvas.Dispatch(host.Event{Type: host.PointerMove, X: 40, Y: 30})
	canvas.Dispatch(host.Event{Type: host.PointerUp, X: 40, Y: 30})
	r.step(0.016)
	r.step(0.016)
	if got := r.info(t).Camera; got.Position != cam.Position || got.Yaw != cam.Yaw || got.Pitch != cam.Pitch {
		t.Errorf("drag moved the plan camera: %+v", got)
	}

	// Zooming keeps looking straight down.
	canvas.Dispatch(host.Event{Type: host.Wheel, DeltaY: -100})
	r.step(0.016)
	zoomed := r.info(t).Camera
	if !(zoomed.Position[1] < cam.Position[1]) {
		t.Errorf("zoom in did not lower the camera: %v", zoomed.Position)
	}
	if f := zoomed.Forward(); f.Sub(mgl64.Vec3{0, -1, 0}).Len() > 1e-5 {
		t.Errorf("zoomed camera looks along %v", f)
	}
}

func TestPlanViewZoomInTallRoom(t *testing.T) {
	r := newRig(t)
	cfg := scene.Config{Width: 0.5, Depth: 0.5, Height: 2.5, Mode: scene.ViewPlan}
	_ = r.vp.Configure(cfg)
	start := r.info(t).Camera

	r.vp.Canvas().Dispatch(host.Event{Type: host.Wheel, DeltaY: -1})
	r.step(0.016)

	cam := r.info(t).Camera
	if math.Hypot(cam.Position[0], cam.Position[2]) > 1e-5 {
		t.Errorf("camera drifted off the center axis: %v", cam.Position)
	}
	if !near(cam.Position[1], start.Position[1]*OrbitZoomStep, 1e-9) {
		t.Errorf("height = %v, want %v", cam.Position[1], start.Position[1]*OrbitZoomStep)
	}
	if f := cam.Forward(); f.Sub(mgl64.Vec3{0, -1, 0}).Len() > 1e-5 {
		t.Errorf("camera looks along %v, want straight down", f)
	}
}

func TestOrbitDragKeepsDistance(t *testing.T) {
	r := newRig(t)
	_ = r.vp.Configure(defaultRoom)
	target := defaultRoom.Center()
	start := r.info(t).Camera
	radius := start.Position.Sub(target).Len()

	canvas := r.vp.Canvas()
	canvas.Dispatch(host.Event{Type: host.PointerDown, X: 10, Y: 10})
	canvas.Dispatch(host.Event{Type: host.PointerMove, X: 30, Y: 10})
	canvas.Dispatch(host.Event{Type: host.PointerUp, X: 30, Y: 10})
	for i := 0; i < 10; i++ {
		r.step(0.016)
	}

	cam := r.info(t).Camera
	if cam.Position == start.Position {
		t.Fatal("drag did not move the camera")
	}
	if d := cam.Position.Sub(target).Len(); !near(d, radius, 1e-9) {
		t.Errorf("distance to target = %v, want %v", d, radius)
	}
	if !near(cam.Position[1], start.Position[1], 1e-9) {
		t.Errorf("horizontal drag changed height %v -> %v", start.Position[1], cam.Position[1])
	}
	want := target.Sub(cam.Position).Normalize()
	if cam.Forward().Sub(want).Len() > 1e-9 {
		t.Error("orbit camera does not look at the target")
	}
}

func TestOrbitPolarLimit(t *testing.T) {
	canvas := host.NewCanvas()
	host.NewElement(100, 100).AppendChild(canvas)
	cam := scene.NewCamera(1)
	cam.Position = mgl64.Vec3{0, 0, 5}
	cam.LookAt(mgl64.Vec3{})

	c := NewOrbitControl(canvas, cam, mgl64.Vec3{})
	c.Attach()
	defer c.Detach()
	// Drag far down: the camera swings over the top. Then drag far up,
	// past the lower limit.
	canvas.Dispatch(host.Event{Type: host.PointerDown})
	canvas.Dispatch(host.Event{Type: host.PointerMove, Y: 10000})
	for i := 0; i < 500; i++ {
		c.Update(cam, 0.016)
	}
	if cam.Position[1] <= 0 {
		t.Errorf("camera at %v, want above the target", cam.Position)
	}
	canvas.Dispatch(host.Event{Type: host.PointerMove, Y: -10000})
	for i := 0; i < 500; i++ {
		c.Update(cam, 0.016)
	}
	phi := math.Acos(cam.Position[1] / cam.Position.Len())
	if !near(phi, OrbitMaxPolar, 1e-9) {
		t.Errorf("polar angle %v, want clamped to %v", phi, OrbitMaxPolar)
	}
}

func TestResize(t *testing.T) {
	r := newRig(t)
	_ = r.vp.Configure(defaultRoom)
	r.container.SetClientSize(30, 20)
	r.window.SetInnerSize(1024, 768)

	info := r.info(t)
	if info.Width != 30 || info.Height != 20 {
		t.Errorf("renderer size = %dx%d, want 30x20", info.Width, info.Height)
	}
	if !near(info.Camera.Aspect, 1.5, 1e-12) {
		t.Errorf("aspect = %v, want 1.5", info.Camera.Aspect)
	}
}

func TestContainerFallback(t *testing.T) {
	tests := []struct {
		name         string
		cw, ch       int
		ww, wh       int
		wantW, wantH int
	}{
		{"container", 40, 30, 800, 600, 40, 30},
		{"window", 0, 0, 32, 24, 32, 24},
		{"mixed", 16, 0, 800, 12, 16, 12},
		{"nothing", 0, 0, 0, 0, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vp := New(Options{
				Window:    host.NewWindow(tt.ww, tt.wh),
				Container: host.NewElement(tt.cw, tt.ch),
				Log:       logging.Discard(),
			})
			defer vp.Dispose()
			if err := vp.Configure(defaultRoom); err != nil {
				t.Fatal(err)
			}
			info, _ := vp.Inspect()
			if info.Width != tt.wantW || info.Height != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", info.Width, info.Height, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestFixtureIsDrawn(t *testing.T) {
	r := newRig(t)
	cfg := defaultRoom
	cfg.Fixture = scene.Placement{
		Item:  "Unterschrank",
		Shape: scene.ShapeBox,
		Size:  mgl64.Vec3{0.8, 0.48, 0.5},
	}
	if err := r.vp.Configure(cfg); err != nil {
		t.Fatal(err)
	}
	if n := r.info(t).Fixtures; n != 1 {
		t.Errorf("fixtures = %d, want 1", n)
	}

	// A degenerate fixture is skipped, not fatal.
	cfg.Fixture.Size = mgl64.Vec3{0, 0.48, 0.5}
	if err := r.vp.Configure(cfg); err != nil {
		t.Fatal(err)
	}
	if n := r.info(t).Fixtures; n != 0 {
		t.Errorf("degenerate fixtures = %d, want 0", n)
	}
}

func TestDegenerateRoom(t *testing.T) {
	r := newRig(t)
	if err := r.vp.Configure(scene.Config{Mode: scene.ViewOrbit}); err != nil {
		t.Fatalf("zero room: %v", err)
	}
	if r.vp.Capture() == "" {
		t.Error("zero room produced no frame")
	}
	r.step(0.016)
}

func TestCaptureWhileRendering(t *testing.T) {
	r := newRig(t)
	r.vp.opts.PixelRatio = 2
	_ = r.vp.Configure(defaultRoom)

	done := make(chan string)
	go func() { done <- r.vp.Capture() }()
	for i := 0; i < 5; i++ {
		r.step(0.016)
	}
	url := <-done

	img, err := snapshot.DecodeImage(url)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 128 || b.Dy() != 96 {
		t.Errorf("capture = %dx%d, want 128x96", b.Dx(), b.Dy())
	}
	if f := r.info(t).Frames; f != 6 {
		t.Errorf("frames = %d, want 6", f)
	}
}

func TestConcurrentConfigureWithTicker(t *testing.T) {
	ticker := frameloop.NewTicker(240)
	defer ticker.Stop()
	vp := New(Options{
		Window:    host.NewWindow(32, 24),
		Container: host.NewElement(32, 24),
		Scheduler: ticker,
		Log:       logging.Discard(),
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = vp.Capture()
			_, _ = vp.Inspect()
		}
	}()
	modes := scene.ViewModes
	for i := 0; i < 12; i++ {
		cfg := defaultRoom
		cfg.Mode = modes[i%len(modes)]
		cfg.ShowGrid = i%2 == 0
		if err := vp.Configure(cfg); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	wg.Wait()
	vp.Dispose()

	time.Sleep(20 * time.Millisecond)
	if n := ticker.Pending(); n != 0 {
		t.Errorf("%d frames pending after Dispose", n)
	}
}
