// Package viewport owns the rendering lifecycle of one mounted 3D view:
// it builds the room scene for a configuration, attaches the camera control
// for the view mode, runs a cancellable render loop and tears everything
// down again before any rebuild.
package viewport

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/chazu/badplaner/pkg/frameloop"
	"github.com/chazu/badplaner/pkg/host"
	"github.com/chazu/badplaner/pkg/kernel"
	"github.com/chazu/badplaner/pkg/kernel/sdfx"
	"github.com/chazu/badplaner/pkg/logging"
	"github.com/chazu/badplaner/pkg/raster"
	"github.com/chazu/badplaner/pkg/scene"
	"github.com/chazu/badplaner/pkg/snapshot"
	"github.com/chazu/badplaner/pkg/tessellate"
	"github.com/google/uuid"
)

// ErrDisposed is returned by Configure after Dispose.
var ErrDisposed = errors.New("viewport: disposed")

// State is the viewport lifecycle state.
type State int

const (
	Uninitialized State = iota
	Active
	Disposed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Active:
		return "active"
	case Disposed:
		return "disposed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options configure a Viewport. Zero values get working defaults.
type Options struct {
	Window     *host.Window
	Container  host.Container
	Scheduler  frameloop.Scheduler
	Kernel     kernel.Kernel
	PixelRatio float64
	Antialias  bool
	Log        *slog.Logger
}

// Viewport renders one configuration at a time. It is safe for concurrent
// use; event handlers, the render loop and Configure may run on different
// goroutines.
type Viewport struct {
	opts Options
	tess *tessellate.Tessellator
	log  *slog.Logger

	mu     sync.Mutex
	state  State
	handle *sceneHandle
	builds int
}

// sceneHandle is everything one configuration owns. It is never reused
// after teardown.
type sceneHandle struct {
	id       uuid.UUID
	cfg      scene.Config
	scene    *scene.Scene
	camera   *scene.Camera
	control  Control
	renderer *raster.Renderer
	clock    frameloop.Clock
	frame    frameloop.Handle
	resize   host.Subscription
	canvas   *host.Canvas
	closed   bool
}

// New returns an uninitialized viewport. Nothing is mounted until the
// first Configure.
func New(opts Options) *Viewport {
	if opts.Window == nil {
		opts.Window = host.NewWindow(0, 0)
	}
	if opts.Container == nil {
		opts.Container = host.NewElement(0, 0)
	}
	if opts.Scheduler == nil {
		opts.Scheduler = frameloop.NewManual()
	}
	if opts.Kernel == nil {
		opts.Kernel = sdfx.New(0)
	}
	if opts.Log == nil {
		opts.Log = logging.New("viewport")
	}
	return &Viewport{
		opts: opts,
		tess: tessellate.New(opts.Kernel),
		log:  opts.Log,
	}
}

// State returns the lifecycle state.
func (v *Viewport) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Configure renders cfg. The same configuration again is a no-op; any
// difference tears the current scene down completely and builds a new one.
func (v *Viewport) Configure(cfg scene.Config) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch v.state {
	case Disposed:
		return ErrDisposed
	case Active:
		if v.handle != nil && v.handle.cfg == cfg {
			return nil
		}
	}

	v.teardownLocked()
	h, err := v.buildLocked(cfg)
	if err != nil {
		v.state = Uninitialized
		return fmt.Errorf("viewport: build: %w", err)
	}
	v.handle = h
	v.state = Active
	v.builds++
	v.log.Info("scene built",
		"handle", h.id,
		"mode", cfg.Mode,
		"width", cfg.Width, "depth", cfg.Depth, "height", cfg.Height,
		"grid", cfg.ShowGrid,
		"nodes", len(h.scene.Nodes),
	)
	return nil
}

// Dispose tears the scene down. The viewport cannot be configured again.
func (v *Viewport) Dispose() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.teardownLocked()
	v.state = Disposed
}

// Capture returns the last frame as a PNG data URL, or "" before the first
// render. Only the pixel copy happens under the lock; the render loop keeps
// running while the copy is encoded.
func (v *Viewport) Capture() string {
	v.mu.Lock()
	var img image.Image
	if v.handle != nil && !v.handle.closed {
		img = v.handle.renderer.Snapshot()
	}
	v.mu.Unlock()

	if img == nil {
		return ""
	}
	url, err := snapshot.EncodeDataURL(img)
	if err != nil {
		v.log.Error("frame encode failed", "err", err)
		return ""
	}
	return url
}

// ----------------------------------------------------------------------------
// Build and teardown
// ----------------------------------------------------------------------------

// measure returns the container size, falling back per axis to the window
// size and then to 1.
func (v *Viewport) measure() (int, int) {
	w, h := v.opts.Container.ClientSize()
	ww, wh := v.opts.Window.InnerSize()
	if w <= 0 {
		w = ww
	}
	if h <= 0 {
		h = wh
	}
	return max(w, 1), max(h, 1)
}

func (v *Viewport) buildLocked(cfg scene.Config) (h *sceneHandle, err error) {
	h = &sceneHandle{id: uuid.New(), cfg: cfg, canvas: host.NewCanvas()}
	defer func() {
		if err != nil {
			v.teardownHandle(h)
		}
	}()

	v.opts.Container.AppendChild(h.canvas)
	width, height := v.measure()

	h.camera = scene.NewCamera(float64(width) / float64(height))
	scene.PlaceCamera(h.camera, cfg)

	h.renderer = raster.New(raster.Options{
		PreserveDrawingBuffer: true,
		Antialias:             v.opts.Antialias,
		PixelRatio:            v.opts.PixelRatio,
	})
	h.renderer.SetSize(width, height)

	h.control = newControl(cfg, h.canvas, v.opts.Window, h.camera)
	h.control.Attach()

	mesh, merr := v.tess.Fixture(cfg.Fixture)
	if merr != nil {
		v.log.Warn("fixture not drawn", "item", cfg.Fixture.Item, "err", merr)
		mesh = nil
	}
	h.scene = scene.Build(cfg, mesh)
	for _, f := range scene.Validate(cfg) {
		v.log.Debug("scene check", "severity", f.Severity, "subject", f.Subject, "msg", f.Message)
	}

	if err := h.renderer.Render(h.scene, h.camera); err != nil {
		return h, err
	}
	h.frame = v.opts.Scheduler.RequestFrame(v.frameFunc(h))
	h.resize = v.opts.Window.AddListener(host.Resize, func(host.Event) { v.onResize(h) })
	return h, nil
}

// frameFunc is the render loop body for h. It stops as soon as h is no
// longer the current handle.
func (v *Viewport) frameFunc(h *sceneHandle) frameloop.Callback {
	var cb frameloop.Callback
	cb = func(now time.Time) {
		v.mu.Lock()
		defer v.mu.Unlock()
		if v.handle != h || h.closed {
			return
		}
		dt := h.clock.Delta(now)
		h.control.Update(h.camera, dt)
		if err := h.renderer.Render(h.scene, h.camera); err != nil {
			v.log.Error("render failed, stopping loop", "handle", h.id, "err", err)
			h.frame = 0
			return
		}
		h.frame = v.opts.Scheduler.RequestFrame(cb)
	}
	return cb
}

func (v *Viewport) onResize(h *sceneHandle) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.handle != h || h.closed {
		return
	}
	width, height := v.measure()
	h.camera.SetAspect(float64(width) / float64(height))
	h.renderer.SetSize(width, height)
	v.log.Debug("viewport resized", "width", width, "height", height)
}

func (v *Viewport) teardownLocked() {
	if v.handle == nil {
		return
	}
	v.teardownHandle(v.handle)
	v.log.Info("scene torn down", "handle", v.handle.id)
	v.handle = nil
}

// teardownHandle releases everything h holds. Each step tolerates a
// partially built handle, and running it twice does nothing.
func (v *Viewport) teardownHandle(h *sceneHandle) {
	if h.closed {
		return
	}
	h.closed = true

	if h.frame != 0 {
		v.opts.Scheduler.CancelFrame(h.frame)
		h.frame = 0
	}
	h.resize.Remove()
	if h.control != nil {
		h.control.Detach()
	}
	if h.renderer != nil {
		h.renderer.Dispose()
	}
	if h.scene != nil {
		h.scene.Dispose()
	}
	if h.canvas != nil && h.canvas.Parent() == v.opts.Container {
		v.opts.Container.RemoveChild(h.canvas)
	}
}

// ----------------------------------------------------------------------------
// Introspection
// ----------------------------------------------------------------------------

// Canvas returns the mounted canvas, or nil.
func (v *Viewport) Canvas() *host.Canvas {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.handle == nil {
		return nil
	}
	return v.handle.canvas
}

// Control returns the attached control, or nil.
func (v *Viewport) Control() Control {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.handle == nil {
		return nil
	}
	return v.handle.control
}

// Info describes the current scene handle.
type Info struct {
	Handle   string
	Builds   int
	Config   scene.Config
	Control  ControlKind
	Camera   scene.Camera
	Floors   int
	Walls    int
	Grids    int
	Fixtures int
	Width    int
	Height   int
	Frames   uint64
}

// Inspect returns a description of the current scene. ok is false when no
// scene is alive.
func (v *Viewport) Inspect() (info Info, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	h := v.handle
	if h == nil {
		return Info{Builds: v.builds}, false
	}
	w, ht := h.renderer.Size()
	return Info{
		Handle:   h.id.String(),
		Builds:   v.builds,
		Config:   h.cfg,
		Control:  h.control.Kind(),
		Camera:   *h.camera,
		Floors:   h.scene.Count(scene.KindFloor),
		Walls:    h.scene.Count(scene.KindWall),
		Grids:    h.scene.Count(scene.KindGrid),
		Fixtures: h.scene.Count(scene.KindFixture),
		Width:    w,
		Height:   ht,
		Frames:   h.renderer.Frames(),
	}, true
}
