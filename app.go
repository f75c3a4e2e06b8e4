package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chazu/badplaner/pkg/config"
	"github.com/chazu/badplaner/pkg/frameloop"
	"github.com/chazu/badplaner/pkg/host"
	"github.com/chazu/badplaner/pkg/kernel/sdfx"
	"github.com/chazu/badplaner/pkg/logging"
	"github.com/chazu/badplaner/pkg/room"
	"github.com/chazu/badplaner/pkg/scene"
	"github.com/chazu/badplaner/pkg/script"
	"github.com/chazu/badplaner/pkg/snapshot"
	"github.com/chazu/badplaner/pkg/viewport"
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// EventSceneRebuilt is emitted to the frontend after every viewport rebuild.
const EventSceneRebuilt = "scene:rebuilt"

// App is the Wails backend. It exposes methods to the frontend via bindings.
type App struct {
	ctx context.Context
	cfg *config.Config
	log *slog.Logger

	session   *room.Session
	engine    *script.Engine
	window    *host.Window
	container *host.Element
	scheduler frameloop.Scheduler
	viewport  *viewport.Viewport

	mu          sync.Mutex
	unsubscribe func()
}

// EvalErrorData is a JSON-serializable layout script error for the frontend.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// LayoutResult is returned by LoadLayout.
type LayoutResult struct {
	Errors []EvalErrorData `json:"errors"`
	State  room.State      `json:"state"`
}

// NewApp creates an App and applies cfg.LogLevel. A nil scheduler means a
// ticker at cfg.FPS.
func NewApp(cfg *config.Config, sched frameloop.Scheduler) *App {
	if cfg == nil {
		cfg = config.Load()
	}
	logging.SetLevel(cfg.LogLevel)
	if sched == nil {
		sched = frameloop.NewTicker(cfg.FPS)
	}
	return &App{
		cfg:       cfg,
		log:       logging.New("app"),
		session:   room.NewSession(room.DefaultCatalog(), logging.New("room")),
		engine:    script.NewEngine(),
		window:    host.NewWindow(cfg.WindowWidth, cfg.WindowHeight),
		container: host.NewElement(cfg.WindowWidth, cfg.WindowHeight),
		scheduler: sched,
	}
}

// startup is called by Wails on app startup. The context is kept for the
// runtime calls made later.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	if err := a.mount(); err != nil {
		a.log.Error("viewport mount failed", "err", err)
	}
}

// shutdown is called by Wails when the window closes.
func (a *App) shutdown(ctx context.Context) {
	a.unmount()
}

// mount creates the viewport, renders the current configuration and
// subscribes it to session changes.
func (a *App) mount() error {
	a.viewport = viewport.New(viewport.Options{
		Window:     a.window,
		Container:  a.container,
		Scheduler:  a.scheduler,
		Kernel:     sdfx.New(a.cfg.MeshCells),
		PixelRatio: a.cfg.PixelRatio,
		Antialias:  a.cfg.Antialias,
		Log:        logging.New("viewport"),
	})
	a.session.BindCapturer(a.viewport)
	a.session.BindDownloader(a)

	if err := a.viewport.Configure(a.session.ViewportConfig()); err != nil {
		return fmt.Errorf("app: mount: %w", err)
	}
	a.unsubscribe = a.session.Subscribe(a.reconfigure)
	return nil
}

func (a *App) unmount() {
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
	if a.viewport != nil {
		a.viewport.Dispose()
	}
	if t, ok := a.scheduler.(*frameloop.Ticker); ok {
		t.Stop()
	}
}

// reconfigure renders the session's latest configuration. Notifications
// from concurrent edits can arrive out of order, so the argument is only a
// trigger.
func (a *App) reconfigure(scene.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.viewport.Configure(a.session.ViewportConfig()); err != nil {
		a.log.Error("viewport configure failed", "err", err)
		return
	}
	if a.ctx != nil {
		runtime.EventsEmit(a.ctx, EventSceneRebuilt, a.session.Snapshot())
	}
}

// ----------------------------------------------------------------------------
// Room and selection
// ----------------------------------------------------------------------------

func (a *App) State() room.State                   { return a.session.Snapshot() }
func (a *App) Catalog() room.Catalog               { return a.session.Catalog() }
func (a *App) SearchCatalog(q string) room.Catalog { return a.session.Search(q) }

func (a *App) SetRoomDimension(field, raw string) error {
	return a.session.SetRoomDimension(field, raw)
}

func (a *App) SelectItem(name string) error { return a.session.SelectItem(name) }

func (a *App) SetTransformField(section, axis, raw string) error {
	return a.session.SetTransformField(section, axis, raw)
}

func (a *App) SetMaterial(name string) error { return a.session.SetMaterial(name) }
func (a *App) ResetTransform()               { a.session.ResetTransform() }
func (a *App) PlaceSelected() error          { return a.session.PlaceSelected() }
func (a *App) RemovePlacement()              { a.session.RemovePlacement() }
func (a *App) ToggleGrid()                   { a.session.ToggleGrid() }

// SetViewMode accepts a toolbar label such as "Orbit" or "2D-Grundriss".
func (a *App) SetViewMode(name string) error {
	m, err := scene.ParseViewMode(name)
	if err != nil {
		return err
	}
	return a.session.SetViewMode(m)
}

func (a *App) ToolbarAction(action string) error { return a.session.ToolbarAction(action) }

// LoadLayout evaluates a layout script and applies it to the session.
func (a *App) LoadLayout(source string) LayoutResult {
	result := LayoutResult{Errors: []EvalErrorData{}}

	l, evalErrs, err := a.engine.Evaluate(source)
	switch {
	case err != nil:
		a.log.Error("layout script failed", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
	case len(evalErrs) > 0:
		for _, e := range evalErrs {
			a.log.Debug("layout script error", "line", e.Line, "msg", e.Message)
			result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
		}
	default:
		if err := a.session.ApplyLayout(l); err != nil {
			a.log.Warn("layout rejected", "err", err)
			result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		}
	}

	result.State = a.session.Snapshot()
	return result
}

// ----------------------------------------------------------------------------
// Viewport input and output
// ----------------------------------------------------------------------------

func (a *App) KeyDown(code string) { a.window.Dispatch(host.Event{Type: host.KeyDown, Code: code}) }
func (a *App) KeyUp(code string)   { a.window.Dispatch(host.Event{Type: host.KeyUp, Code: code}) }

func (a *App) Click(x, y float64) { a.toCanvas(host.Event{Type: host.Click, X: x, Y: y}) }

func (a *App) PointerDown(button int, x, y float64) {
	a.toCanvas(host.Event{Type: host.PointerDown, Button: button, X: x, Y: y})
}

func (a *App) PointerMove(x, y, movementX, movementY float64) {
	a.toCanvas(host.Event{Type: host.PointerMove, X: x, Y: y, MovementX: movementX, MovementY: movementY})
}

func (a *App) PointerUp(button int, x, y float64) {
	a.toCanvas(host.Event{Type: host.PointerUp, Button: button, X: x, Y: y})
}

func (a *App) Wheel(deltaY float64) { a.toCanvas(host.Event{Type: host.Wheel, DeltaY: deltaY}) }

// Resize reports the viewport container's new size.
func (a *App) Resize(width, height int) {
	a.container.SetClientSize(width, height)
	a.window.Dispatch(host.Event{Type: host.Resize})
}

func (a *App) toCanvas(e host.Event) {
	if a.viewport == nil {
		return
	}
	if c := a.viewport.Canvas(); c != nil {
		c.Dispatch(e)
	}
}

// Frame returns the most recent frame as a PNG data URL.
func (a *App) Frame() string {
	if a.viewport == nil {
		return ""
	}
	return a.viewport.Capture()
}

// ExportScreenshot saves the current frame and returns where it went. An
// empty path means nothing was saved.
func (a *App) ExportScreenshot() (string, error) {
	return a.session.ExportScreenshot()
}

// Download asks for a target file when running inside Wails and falls back
// to the export directory otherwise.
func (a *App) Download(filename, dataURL string) (string, error) {
	if a.ctx == nil {
		return snapshot.DirDownloader{Dir: a.cfg.ExportDir}.Download(filename, dataURL)
	}
	path, err := runtime.SaveFileDialog(a.ctx, runtime.SaveDialogOptions{
		DefaultFilename: filename,
		Title:           "Screenshot speichern",
		Filters:         []runtime.FileFilter{{DisplayName: "PNG", Pattern: "*.png"}},
	})
	if err != nil {
		return "", fmt.Errorf("app: save dialog: %w", err)
	}
	if path == "" {
		return "", nil
	}
	if err := snapshot.WriteFile(path, dataURL); err != nil {
		return "", err
	}
	return path, nil
}
