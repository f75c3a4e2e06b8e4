package scene

import (
	"image/color"

	"github.com/chazu/badplaner/pkg/kernel"
	"github.com/go-gl/mathgl/mgl64"
)

// Triangle is a flat-shaded triangle.
type Triangle struct {
	V      [3]mgl64.Vec3
	Normal mgl64.Vec3
}

// Line is a colored segment.
type Line struct {
	A, B  mgl64.Vec3
	Color color.RGBA
}

// Geometry supplies a node's triangles in local space.
type Geometry interface {
	Triangles() []Triangle
}

// Plane is a Width x Height rectangle in the XY plane, centered on the
// origin, facing +Z.
type Plane struct {
	Width, Height float64
}

func (p Plane) Triangles() []Triangle {
	hw, hh := p.Width/2, p.Height/2
	n := mgl64.Vec3{0, 0, 1}
	a := mgl64.Vec3{-hw, -hh, 0}
	b := mgl64.Vec3{hw, -hh, 0}
	c := mgl64.Vec3{hw, hh, 0}
	d := mgl64.Vec3{-hw, hh, 0}
	return []Triangle{
		{V: [3]mgl64.Vec3{a, b, c}, Normal: n},
		{V: [3]mgl64.Vec3{a, c, d}, Normal: n},
	}
}

// Grid is a square line grid in the XZ plane. The two lines through the
// center use CenterColor.
type Grid struct {
	Size        float64
	Divisions   int
	CenterColor color.RGBA
	LineColor   color.RGBA
}

// Triangles is empty; grids are drawn as lines.
func (g Grid) Triangles() []Triangle { return nil }

// Lines returns Divisions+1 lines along each axis.
func (g Grid) Lines() []Line {
	if g.Divisions <= 0 {
		return nil
	}
	half := g.Size / 2
	step := g.Size / float64(g.Divisions)
	lines := make([]Line, 0, 2*(g.Divisions+1))
	for i := 0; i <= g.Divisions; i++ {
		k := -half + float64(i)*step
		c := g.LineColor
		if i == g.Divisions/2 {
			c = g.CenterColor
		}
		lines = append(lines,
			Line{A: mgl64.Vec3{-half, 0, k}, B: mgl64.Vec3{half, 0, k}, Color: c},
			Line{A: mgl64.Vec3{k, 0, -half}, B: mgl64.Vec3{k, 0, half}, Color: c},
		)
	}
	return lines
}

// MeshGeometry adapts a kernel mesh.
type MeshGeometry struct {
	Mesh *kernel.Mesh
}

func (g MeshGeometry) Triangles() []Triangle {
	if g.Mesh.IsEmpty() {
		return nil
	}
	m := g.Mesh
	out := make([]Triangle, 0, m.TriangleCount())
	for t := 0; t < m.TriangleCount(); t++ {
		var tri Triangle
		for j := 0; j < 3; j++ {
			tri.V[j] = mgl64.Vec3(m.Vertex(m.Indices[t*3+j]))
		}
		tri.Normal = mgl64.Vec3(m.Normal(m.Indices[t*3]))
		out = append(out, tri)
	}
	return out
}
