// Package kernel defines the geometry kernel used to build fixture solids.
// Coordinates are Y-up and in meters. Primitives are created standing on
// the XZ plane, centered on the Y axis.
package kernel

// Solid is an opaque handle to a kernel solid.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel builds solids and converts them to triangle meshes.
type Kernel interface {
	// Box is x wide, y tall and z deep with its base centered at the origin.
	Box(x, y, z float64) Solid
	// Cylinder stands on the origin with its axis along +Y.
	Cylinder(height, radius float64) Solid

	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid

	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees

	ToMesh(s Solid) (*Mesh, error)
}
