// Package tessellate turns placed fixtures into triangle meshes using a
// geometry kernel. Each catalog shape is modeled from boxes and cylinders
// sized to the placement, rotated, then moved to its position.
package tessellate

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sync"

	"github.com/chazu/badplaner/pkg/kernel"
	"github.com/chazu/badplaner/pkg/scene"
)

// ErrDegenerate is returned for placements with a zero or negative size.
var ErrDegenerate = errors.New("tessellate: fixture has no volume")

// cacheLimit bounds the mesh cache; it is cleared when full.
const cacheLimit = 32

// Tessellator meshes placements and caches the results by geometry, so
// changing only a fixture's material does not re-mesh it.
type Tessellator struct {
	kernel kernel.Kernel

	mu    sync.Mutex
	cache map[scene.Placement]*kernel.Mesh
}

// New returns a Tessellator backed by k.
func New(k kernel.Kernel) *Tessellator {
	return &Tessellator{kernel: k, cache: make(map[scene.Placement]*kernel.Mesh)}
}

// Fixture returns the world-space mesh for p. A zero placement yields nil.
func (t *Tessellator) Fixture(p scene.Placement) (*kernel.Mesh, error) {
	if p.IsZero() {
		return nil, nil
	}
	key := p
	key.Color = color.RGBA{}

	t.mu.Lock()
	if m, ok := t.cache[key]; ok {
		t.mu.Unlock()
		return m, nil
	}
	t.mu.Unlock()

	m, err := t.mesh(p)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	if len(t.cache) >= cacheLimit {
		clear(t.cache)
	}
	t.cache[key] = m
	t.mu.Unlock()
	return m, nil
}

// Cached returns the number of cached meshes.
func (t *Tessellator) Cached() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.cache)
}

func (t *Tessellator) mesh(p scene.Placement) (m *kernel.Mesh, err error) {
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("tessellate: %s: kernel panic: %v", p.Item, r)
		}
	}()

	solid, err := Solid(t.kernel, p)
	if err != nil {
		return nil, err
	}
	m, err = t.kernel.ToMesh(solid)
	if err != nil {
		return nil, fmt.Errorf("tessellate: %s: %w", p.Item, err)
	}
	m.Name = p.Item
	return m, nil
}

// Solid builds the kernel solid for p in world space.
func Solid(k kernel.Kernel, p scene.Placement) (kernel.Solid, error) {
	sx, sy, sz := p.Size[0], p.Size[1], p.Size[2]
	if !(sx > 0 && sy > 0 && sz > 0) || math.IsInf(sx+sy+sz, 0) {
		return nil, fmt.Errorf("%w: %s size %v", ErrDegenerate, p.Item, p.Size)
	}

	var s kernel.Solid
	switch p.Shape {
	case scene.ShapeBasin:
		s = hollow(k, sx, sy, sz, math.Min(0.03, math.Min(sx, sz)/4), sy*0.4)
	case scene.ShapeTub:
		s = hollow(k, sx, sy, sz, math.Min(0.05, math.Min(sx, sz)/4), math.Min(0.05, sy/4))
	case scene.ShapeBowl:
		s = bowl(k, sx, sy, sz)
	case scene.ShapeToilet:
		s = toilet(k, sx, sy, sz)
	case scene.ShapeShower:
		s = shower(k, sx, sy, sz)
	case scene.ShapeCylinder:
		s = k.Cylinder(sy, math.Min(sx, sz)/2)
	case scene.ShapeRail:
		s = rail(k, sx, sy, sz)
	case scene.ShapeTile:
		s = k.Box(sx, math.Min(sy, math.Max(sx, sz)/20), sz)
	default:
		s = k.Box(sx, sy, sz)
	}

	r := p.Rotation
	if r[0] != 0 || r[1] != 0 || r[2] != 0 {
		s = k.Rotate(s, r[0], r[1], r[2])
	}
	pos := p.Position
	if pos[0] != 0 || pos[1] != 0 || pos[2] != 0 {
		s = k.Translate(s, pos[0], pos[1], pos[2])
	}
	return s, nil
}

// hollow is a box with an open-topped cavity: wall is the side wall
// thickness and floor the cavity's height above the base.
func hollow(k kernel.Kernel, sx, sy, sz, wall, floor float64) kernel.Solid {
	outer := k.Box(sx, sy, sz)
	ix, iz := sx-2*wall, sz-2*wall
	if ix <= 0 || iz <= 0 || floor >= sy {
		return outer
	}
	return k.Difference(outer, k.Translate(k.Box(ix, sy, iz), 0, floor, 0))
}

func bowl(k kernel.Kernel, sx, sy, sz float64) kernel.Solid {
	r := math.Min(sx, sz) / 2
	wall := math.Min(0.015, r/4)
	outer := k.Cylinder(sy, r)
	if wall >= sy {
		return outer
	}
	return k.Difference(outer, k.Translate(k.Cylinder(sy, r-wall), 0, wall, 0))
}

// toilet is a bowl block at the front (+Z) with a full-height cistern behind.
func toilet(k kernel.Kernel, sx, sy, sz float64) kernel.Solid {
	front := k.Translate(k.Box(sx*0.9, sy*0.7, sz*0.75), 0, 0, sz*0.125)
	cistern := k.Translate(k.Box(sx, sy, sz*0.25), 0, 0, -sz*0.375)
	return k.Union(front, cistern)
}

// shower is a flat tray with a glass panel along the +X edge.
func shower(k kernel.Kernel, sx, sy, sz float64) kernel.Solid {
	trayHeight := math.Min(0.06, sy)
	tray := k.Box(sx, trayHeight, sz)
	if trayHeight >= sy {
		return tray
	}
	glass := math.Min(0.04, sx/4)
	panel := k.Translate(k.Box(glass, sy, sz), sx/2-glass/2, 0, 0)
	return k.Union(tray, panel)
}

// rail is a bar held by two wall posts at its ends.
func rail(k kernel.Kernel, sx, sy, sz float64) kernel.Solid {
	postWidth := math.Min(sx/4, math.Max(0.02, sx*0.06))
	bar := k.Translate(k.Box(sx, sy*0.4, sz*0.4), 0, sy*0.6, sz*0.3)
	left := k.Translate(k.Box(postWidth, sy, sz), -sx/2+postWidth/2, 0, 0)
	right := k.Translate(k.Box(postWidth, sy, sz), sx/2-postWidth/2, 0, 0)
	return k.Union(bar, k.Union(left, right))
}
