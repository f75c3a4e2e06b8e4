package room

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/chazu/badplaner/pkg/logging"
	"github.com/chazu/badplaner/pkg/scene"
	"github.com/samber/lo"
)

// ScreenshotFilename is the fixed name of exported screenshots.
const ScreenshotFilename = "badplanung.png"

// Toolbar actions.
const (
	ActionToggleGrid  = "toggle-grid"
	ActionCapture     = "capture"
	ActionUndo        = "undo"
	ActionRedo        = "redo"
	ActionAddOpenings = "add-openings"
)

// Capturer produces a PNG data URL of the current frame, or "" when nothing
// has been rendered.
type Capturer interface {
	Capture() string
}

// Downloader saves a data URL under filename and returns where it went.
type Downloader interface {
	Download(filename, dataURL string) (string, error)
}

// Placed is the catalog item that was placed in the room, with the
// transform it had at the time.
type Placed struct {
	Item      CatalogItem `json:"item"`
	Transform Transform   `json:"transform"`
}

// Session is the state of one planning session. All methods are safe for
// concurrent use.
type Session struct {
	catalog Catalog
	log     *slog.Logger

	mu        sync.Mutex
	dims      Dimensions
	mode      scene.ViewMode
	showGrid  bool
	selected  CatalogItem
	transform Transform
	placed    *Placed

	capturer   Capturer
	downloader Downloader

	subs    map[int]func(scene.Config)
	nextSub int
}

// NewSession starts a session over catalog with the default room, the
// first catalog item selected, Orbit view and the grid on.
func NewSession(catalog Catalog, log *slog.Logger) *Session {
	if log == nil {
		log = logging.Discard()
	}
	s := &Session{
		catalog:   catalog,
		log:       log,
		dims:      DefaultDimensions,
		mode:      scene.ViewOrbit,
		showGrid:  true,
		transform: DefaultTransform(),
		subs:      make(map[int]func(scene.Config)),
	}
	if items := catalog.Items(); len(items) > 0 {
		s.selected = items[0]
	}
	return s
}

// Catalog returns the session's catalog.
func (s *Session) Catalog() Catalog { return s.catalog }

// Search filters the catalog by name or category.
func (s *Session) Search(query string) Catalog { return s.catalog.Search(query) }

// ----------------------------------------------------------------------------
// Mutations
// ----------------------------------------------------------------------------

// update runs fn under the lock and notifies subscribers if the viewport
// configuration changed.
func (s *Session) update(fn func() error) error {
	s.mu.Lock()
	before := s.configLocked()
	if err := fn(); err != nil {
		s.mu.Unlock()
		return err
	}
	after := s.configLocked()
	var subs []func(scene.Config)
	if after != before {
		subs = s.subscribersLocked()
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(after)
	}
	return nil
}

// SetRoomDimension sets width, depth or height from raw user input.
// Unparseable input stores 0 and negative values are clamped to 0.
func (s *Session) SetRoomDimension(field, raw string) error {
	v := ParseNumber(raw)
	return s.update(func() error {
		d := s.dims
		switch strings.ToLower(field) {
		case "width":
			d.Width = v
		case "depth":
			d.Depth = v
		case "height":
			d.Height = v
		default:
			return fmt.Errorf("room: %w: %q", ErrUnknownField, field)
		}
		s.dims = d.Clamped()
		return nil
	})
}

// SetDimensions replaces all three dimensions at once.
func (s *Session) SetDimensions(d Dimensions) {
	_ = s.update(func() error {
		s.dims = d.Clamped()
		return nil
	})
}

// SelectItem changes the selected catalog item. The transform is kept.
func (s *Session) SelectItem(name string) error {
	it, err := s.catalog.Find(name)
	if err != nil {
		return fmt.Errorf("room: %w", err)
	}
	return s.update(func() error {
		s.selected = it
		return nil
	})
}

// SetTransformField sets one axis of position, rotation or size from raw
// user input, with the same parse-or-zero policy as the room dimensions.
func (s *Session) SetTransformField(section, axis, raw string) error {
	v := ParseNumber(raw)
	return s.update(func() error {
		t := s.transform
		vec, err := t.Section(section)
		if err != nil {
			return fmt.Errorf("room: %w", err)
		}
		if err := vec.Set(axis, v); err != nil {
			return fmt.Errorf("room: %w", err)
		}
		s.transform = t
		return nil
	})
}

// SetMaterial sets the transform's material by name or German label.
func (s *Session) SetMaterial(name string) error {
	m, err := ParseMaterial(name)
	if err != nil {
		return fmt.Errorf("room: %w", err)
	}
	return s.update(func() error {
		s.transform.Material = m
		return nil
	})
}

// ResetTransform sizes the transform to the selected item's nominal
// dimensions and puts it back on the floor at the room center.
func (s *Session) ResetTransform() {
	_ = s.update(func() error {
		t := DefaultTransform()
		t.Position = Vec3{}
		t.Material = s.transform.Material
		if s.selected.Name != "" {
			t.Size = s.selected.Nominal
		}
		s.transform = t
		return nil
	})
}

// ToggleGrid flips the grid flag.
func (s *Session) ToggleGrid() {
	_ = s.update(func() error {
		s.showGrid = !s.showGrid
		return nil
	})
}

// SetGrid sets the grid flag.
func (s *Session) SetGrid(on bool) {
	_ = s.update(func() error {
		s.showGrid = on
		return nil
	})
}

// SetViewMode replaces the view mode.
func (s *Session) SetViewMode(mode scene.ViewMode) error {
	if int(mode) < 0 || int(mode) >= len(scene.ViewModes) {
		return fmt.Errorf("room: %w: %d", scene.ErrUnknownViewMode, int(mode))
	}
	return s.update(func() error {
		s.mode = mode
		return nil
	})
}

// PlaceSelected places the selected item with the current transform. Later
// transform edits do not move it until it is placed again.
func (s *Session) PlaceSelected() error {
	return s.update(func() error {
		if s.selected.Name == "" {
			return fmt.Errorf("room: %w: nothing selected", ErrUnknownItem)
		}
		s.placed = &Placed{Item: s.selected, Transform: s.transform}
		return nil
	})
}

// RemovePlacement removes the placed item, if any.
func (s *Session) RemovePlacement() {
	_ = s.update(func() error {
		s.placed = nil
		return nil
	})
}

// ----------------------------------------------------------------------------
// Toolbar and export
// ----------------------------------------------------------------------------

// BindCapturer sets the source of screenshots. Pass nil to unbind.
func (s *Session) BindCapturer(c Capturer) {
	s.mu.Lock()
	s.capturer = c
	s.mu.Unlock()
}

// BindDownloader sets where screenshots are saved.
func (s *Session) BindDownloader(d Downloader) {
	s.mu.Lock()
	s.downloader = d
	s.mu.Unlock()
}

// ExportScreenshot captures the current frame and saves it as
// ScreenshotFilename. Without a capturer, or before the first frame, it
// does nothing and returns "".
func (s *Session) ExportScreenshot() (string, error) {
	s.mu.Lock()
	c, d := s.capturer, s.downloader
	s.mu.Unlock()

	if c == nil {
		return "", nil
	}
	dataURL := c.Capture()
	if dataURL == "" {
		s.log.Debug("screenshot skipped, no frame yet")
		return "", nil
	}
	if d == nil {
		return "", fmt.Errorf("room: export: no downloader bound")
	}
	path, err := d.Download(ScreenshotFilename, dataURL)
	if err != nil {
		return "", fmt.Errorf("room: export: %w", err)
	}
	s.log.Info("screenshot exported", "path", path)
	return path, nil
}

// ToolbarAction runs a toolbar button. Undo, redo and door/window
// insertion are accepted placeholders.
func (s *Session) ToolbarAction(action string) error {
	switch action {
	case ActionToggleGrid:
		s.ToggleGrid()
	case ActionCapture:
		_, err := s.ExportScreenshot()
		return err
	default:
		s.log.Debug("toolbar action has no effect", "action", action)
	}
	return nil
}

// ----------------------------------------------------------------------------
// Derived state
// ----------------------------------------------------------------------------

// ViewportConfig returns the configuration the viewport renders.
func (s *Session) ViewportConfig() scene.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configLocked()
}

func (s *Session) configLocked() scene.Config {
	cfg := scene.Config{
		Width:    s.dims.Width,
		Depth:    s.dims.Depth,
		Height:   s.dims.Height,
		Mode:     s.mode,
		ShowGrid: s.showGrid,
	}
	if s.placed != nil {
		t := s.placed.Transform
		cfg.Fixture = scene.Placement{
			Item:     s.placed.Item.Name,
			Shape:    s.placed.Item.Shape,
			Position: t.Position.Vec(),
			Rotation: t.Rotation.Vec(),
			Size:     t.Size.Vec(),
			Color:    t.Material.Color(),
		}
	}
	return cfg
}

// Subscribe registers fn to receive the new configuration whenever it
// changes. Call the returned function to unsubscribe.
func (s *Session) Subscribe(fn func(scene.Config)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Session) subscribersLocked() []func(scene.Config) {
	ids := lo.Keys(s.subs)
	slices.Sort(ids)
	return lo.Map(ids, func(id int, _ int) func(scene.Config) { return s.subs[id] })
}

// State is a JSON view of the session for the frontend.
type State struct {
	Room      Dimensions  `json:"room"`
	ViewMode  string      `json:"viewMode"`
	ViewModes []string    `json:"viewModes"`
	ShowGrid  bool        `json:"showGrid"`
	Selected  CatalogItem `json:"selected"`
	Transform Transform   `json:"transform"`
	Materials []string    `json:"materials"`
	Placed    *Placed     `json:"placed,omitempty"`
	Warnings  []string    `json:"warnings,omitempty"`
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Room:      s.dims,
		ViewMode:  s.mode.String(),
		ViewModes: lo.Map(scene.ViewModes, func(m scene.ViewMode, _ int) string { return m.String() }),
		ShowGrid:  s.showGrid,
		Selected:  s.selected,
		Transform: s.transform,
		Materials: lo.Map(Materials, func(m Material, _ int) string { return m.Label() }),
	}
	if s.placed != nil {
		p := *s.placed
		st.Placed = &p
	}
	for _, f := range scene.Validate(s.configLocked()) {
		st.Warnings = append(st.Warnings, f.Subject+": "+f.Message)
	}
	return st
}
