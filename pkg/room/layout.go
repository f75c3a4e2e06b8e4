package room

import (
	"fmt"

	"github.com/chazu/badplaner/pkg/scene"
)

// Layout is a batch of session changes, usually produced by a layout
// script. Nil fields are left alone.
type Layout struct {
	Room     *Dimensions
	Mode     *scene.ViewMode
	ShowGrid *bool
	Select   string
	Place    *LayoutPlacement
}

// LayoutPlacement places Item with Transform. A zero Transform size means
// the item's nominal size.
type LayoutPlacement struct {
	Item      string
	Transform Transform
}

// IsEmpty reports whether l changes nothing.
func (l Layout) IsEmpty() bool {
	return l.Room == nil && l.Mode == nil && l.ShowGrid == nil && l.Select == "" && l.Place == nil
}

// ApplyLayout applies l as a single change. Names are checked first, so an
// invalid layout leaves the session untouched.
func (s *Session) ApplyLayout(l Layout) error {
	var sel, placeItem CatalogItem
	var err error
	if l.Select != "" {
		if sel, err = s.catalog.Find(l.Select); err != nil {
			return fmt.Errorf("room: layout: %w", err)
		}
	}
	if l.Place != nil {
		p := *l.Place
		l.Place = &p
		if placeItem, err = s.catalog.Find(l.Place.Item); err != nil {
			return fmt.Errorf("room: layout: %w", err)
		}
		if l.Place.Transform.Material == "" {
			l.Place.Transform.Material = Neutral
		} else {
			m, err := ParseMaterial(string(l.Place.Transform.Material))
			if err != nil {
				return fmt.Errorf("room: layout: %w", err)
			}
			l.Place.Transform.Material = m
		}
	}
	if l.Mode != nil && (int(*l.Mode) < 0 || int(*l.Mode) >= len(scene.ViewModes)) {
		return fmt.Errorf("room: layout: %w: %d", scene.ErrUnknownViewMode, int(*l.Mode))
	}

	err = s.update(func() error {
		if l.Room != nil {
			s.dims = l.Room.Clamped()
		}
		if l.Mode != nil {
			s.mode = *l.Mode
		}
		if l.ShowGrid != nil {
			s.showGrid = *l.ShowGrid
		}
		if l.Select != "" {
			s.selected = sel
		}
		if l.Place != nil {
			t := l.Place.Transform
			if t.Size == (Vec3{}) {
				t.Size = placeItem.Nominal
			}
			s.selected = placeItem
			s.transform = t
			s.placed = &Placed{Item: placeItem, Transform: t}
		}
		return nil
	})
	if err == nil {
		s.log.Info("layout applied", "room", l.Room != nil, "placed", l.Place != nil)
	}
	return err
}
