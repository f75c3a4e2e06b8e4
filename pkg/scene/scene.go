// Package scene describes the bathroom scene rendered by the viewport: the
// configuration it is built from, the node list (floor, walls, lights, grid,
// placed fixture) and the perspective camera.
package scene

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/chazu/badplaner/pkg/kernel"
	"github.com/go-gl/mathgl/mgl64"
)

// ---------------------------------------------------------------------------
// View modes
// ---------------------------------------------------------------------------

// ViewMode selects the camera placement and control scheme.
type ViewMode int

const (
	ViewOrbit ViewMode = iota
	ViewFirstPerson
	ViewPlan
)

// ErrUnknownViewMode is returned by ParseViewMode.
var ErrUnknownViewMode = errors.New("unknown view mode")

// ViewModes lists the modes in toolbar order.
var ViewModes = []ViewMode{ViewOrbit, ViewFirstPerson, ViewPlan}

func (m ViewMode) String() string {
	switch m {
	case ViewOrbit:
		return "Orbit"
	case ViewFirstPerson:
		return "First-Person"
	case ViewPlan:
		return "2D-Grundriss"
	}
	return fmt.Sprintf("ViewMode(%d)", int(m))
}

// ParseViewMode accepts the toolbar labels and their short forms.
func ParseViewMode(s string) (ViewMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "orbit":
		return ViewOrbit, nil
	case "first-person", "firstperson", "first_person":
		return ViewFirstPerson, nil
	case "2d-grundriss", "plan", "planview", "grundriss":
		return ViewPlan, nil
	}
	return ViewOrbit, fmt.Errorf("%w: %q", ErrUnknownViewMode, s)
}

func (m ViewMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *ViewMode) UnmarshalText(b []byte) error {
	v, err := ParseViewMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Shape is the solid a fixture is modeled as.
type Shape int

const (
	ShapeBox Shape = iota
	ShapeBasin
	ShapeBowl
	ShapeToilet
	ShapeShower
	ShapeTub
	ShapeCylinder
	ShapeRail
	ShapeTile
)

var shapeNames = [...]string{"box", "basin", "bowl", "toilet", "shower", "tub", "cylinder", "rail", "tile"}

func (s Shape) String() string {
	if int(s) >= 0 && int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return fmt.Sprintf("Shape(%d)", int(s))
}

// Placement is a catalog item placed in the room. Position is the center of
// the fixture's base; Rotation is in degrees; Size is in meters.
type Placement struct {
	Item     string
	Shape    Shape
	Position mgl64.Vec3
	Rotation mgl64.Vec3
	Size     mgl64.Vec3
	Color    color.RGBA
}

// IsZero reports whether nothing is placed.
func (p Placement) IsZero() bool { return p.Item == "" }

// Config is everything the viewport rebuilds from. It is comparable; any
// difference means a full rebuild.
type Config struct {
	Width    float64
	Depth    float64
	Height   float64
	Mode     ViewMode
	ShowGrid bool
	Fixture  Placement
}

// Span is max(Width, Depth).
func (c Config) Span() float64 {
	return math.Max(c.Width, c.Depth)
}

// Center is the point the orbit controls target: the room center at half height.
func (c Config) Center() mgl64.Vec3 {
	return mgl64.Vec3{0, c.Height / 2, 0}
}

// ---------------------------------------------------------------------------
// Nodes
// ---------------------------------------------------------------------------

// Kind classifies scene nodes.
type Kind int

const (
	KindFloor Kind = iota
	KindWall
	KindGrid
	KindAmbientLight
	KindDirectionalLight
	KindFixture
)

func (k Kind) String() string {
	switch k {
	case KindFloor:
		return "floor"
	case KindWall:
		return "wall"
	case KindGrid:
		return "grid"
	case KindAmbientLight:
		return "ambient"
	case KindDirectionalLight:
		return "directional"
	case KindFixture:
		return "fixture"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Side selects which faces of a node are drawn, relative to its normals.
type Side int

const (
	FrontSide Side = iota
	BackSide
	DoubleSide
)

// Node is one object in the scene.
type Node struct {
	Name      string
	Kind      Kind
	Position  mgl64.Vec3
	Rotation  mgl64.Vec3 // Euler XYZ, radians
	Geometry  Geometry
	Color     color.RGBA
	Side      Side
	Intensity float64
}

// Matrix is the node's model matrix: translation after X, Y, Z rotation.
func (n *Node) Matrix() mgl64.Mat4 {
	r := mgl64.HomogRotate3DX(n.Rotation[0]).
		Mul4(mgl64.HomogRotate3DY(n.Rotation[1])).
		Mul4(mgl64.HomogRotate3DZ(n.Rotation[2]))
	return mgl64.Translate3D(n.Position[0], n.Position[1], n.Position[2]).Mul4(r)
}

// WorldTriangles returns the node's triangles in world space.
func (n *Node) WorldTriangles() []Triangle {
	if n.Geometry == nil {
		return nil
	}
	local := n.Geometry.Triangles()
	if len(local) == 0 {
		return nil
	}
	m := n.Matrix()
	rot := m.Mat3()
	out := make([]Triangle, len(local))
	for i, t := range local {
		for j := 0; j < 3; j++ {
			out[i].V[j] = mgl64.TransformCoordinate(t.V[j], m)
		}
		out[i].Normal = rot.Mul3x1(t.Normal).Normalize()
	}
	return out
}

// WorldLines returns line geometry (grids) in world space.
func (n *Node) WorldLines() []Line {
	g, ok := n.Geometry.(Grid)
	if !ok {
		return nil
	}
	m := n.Matrix()
	lines := g.Lines()
	for i := range lines {
		lines[i].A = mgl64.TransformCoordinate(lines[i].A, m)
		lines[i].B = mgl64.TransformCoordinate(lines[i].B, m)
	}
	return lines
}

// Scene is the ordered node list plus the clear color.
type Scene struct {
	Background color.RGBA
	Nodes      []*Node
}

// Add appends a node.
func (s *Scene) Add(n *Node) {
	s.Nodes = append(s.Nodes, n)
}

// Remove deletes the named node and reports whether it existed.
func (s *Scene) Remove(name string) bool {
	for i, n := range s.Nodes {
		if n.Name == name {
			s.Nodes = append(s.Nodes[:i], s.Nodes[i+1:]...)
			return true
		}
	}
	return false
}

// Find returns the named node or nil.
func (s *Scene) Find(name string) *Node {
	for _, n := range s.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// OfKind returns the nodes of one kind in insertion order.
func (s *Scene) OfKind(k Kind) []*Node {
	var out []*Node
	for _, n := range s.Nodes {
		if n.Kind == k {
			out = append(out, n)
		}
	}
	return out
}

// Count returns the number of nodes of one kind.
func (s *Scene) Count(k Kind) int {
	return len(s.OfKind(k))
}

// Dispose drops every node.
func (s *Scene) Dispose() {
	s.Nodes = nil
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

var (
	BackgroundColor = color.RGBA{R: 0xf5, G: 0xf7, B: 0xfb, A: 0xff}
	FloorColor      = color.RGBA{R: 0xe8, G: 0xea, B: 0xed, A: 0xff}
	WallColor       = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	GridCenterColor = color.RGBA{R: 0x9a, G: 0xa0, B: 0xa6, A: 0xff}
	GridLineColor   = color.RGBA{R: 0xda, G: 0xdc, B: 0xe0, A: 0xff}
	LightColor      = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

const (
	AmbientIntensity = 0.9
	SunIntensity     = 0.7
	GridDivisions    = 16
	GridElevation    = 0.001
)

// SunPosition is where the directional light shines from, toward the origin.
var SunPosition = mgl64.Vec3{5, 10, 5}

// Build creates the scene for cfg. fixture is the tessellated mesh of
// cfg.Fixture, or nil.
func Build(cfg Config, fixture *kernel.Mesh) *Scene {
	w, d, h := cfg.Width, cfg.Depth, cfg.Height
	s := &Scene{Background: BackgroundColor}

	s.Add(&Node{
		Name:     "floor",
		Kind:     KindFloor,
		Rotation: mgl64.Vec3{-math.Pi / 2, 0, 0},
		Geometry: Plane{Width: w, Height: d},
		Color:    FloorColor,
		Side:     FrontSide,
	})

	// Walls face the room center, so they are culled when seen from outside.
	for _, wall := range []struct {
		name   string
		pos    mgl64.Vec3
		rotY   float64
		length float64
	}{
		{"wall-north", mgl64.Vec3{0, h / 2, -d / 2}, 0, w},
		{"wall-south", mgl64.Vec3{0, h / 2, d / 2}, math.Pi, w},
		{"wall-west", mgl64.Vec3{-w / 2, h / 2, 0}, math.Pi / 2, d},
		{"wall-east", mgl64.Vec3{w / 2, h / 2, 0}, -math.Pi / 2, d},
	} {
		s.Add(&Node{
			Name:     wall.name,
			Kind:     KindWall,
			Position: wall.pos,
			Rotation: mgl64.Vec3{0, wall.rotY, 0},
			Geometry: Plane{Width: wall.length, Height: h},
			Color:    WallColor,
			Side:     FrontSide,
		})
	}

	s.Add(&Node{Name: "ambient", Kind: KindAmbientLight, Color: LightColor, Intensity: AmbientIntensity})
	s.Add(&Node{Name: "sun", Kind: KindDirectionalLight, Position: SunPosition, Color: LightColor, Intensity: SunIntensity})

	if cfg.ShowGrid {
		s.Add(&Node{
			Name:     "grid",
			Kind:     KindGrid,
			Position: mgl64.Vec3{0, GridElevation, 0},
			Geometry: Grid{
				Size:        cfg.Span() * 2,
				Divisions:   GridDivisions,
				CenterColor: GridCenterColor,
				LineColor:   GridLineColor,
			},
		})
	}

	if !cfg.Fixture.IsZero() && !fixture.IsEmpty() {
		s.Add(&Node{
			Name:     "fixture",
			Kind:     KindFixture,
			Geometry: MeshGeometry{Mesh: fixture},
			Color:    cfg.Fixture.Color,
			Side:     DoubleSide,
		})
	}

	return s
}
