package kernel

// Mesh is a flat triangle mesh: 3 floats per vertex and per normal,
// 3 indices per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	Name     string    `json:"name"`
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty reports whether the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return m == nil || len(m.Vertices) == 0
}

// Vertex returns vertex i.
func (m *Mesh) Vertex(i uint32) [3]float64 {
	return [3]float64{
		float64(m.Vertices[i*3]),
		float64(m.Vertices[i*3+1]),
		float64(m.Vertices[i*3+2]),
	}
}

// Normal returns the normal of vertex i.
func (m *Mesh) Normal(i uint32) [3]float64 {
	return [3]float64{
		float64(m.Normals[i*3]),
		float64(m.Normals[i*3+1]),
		float64(m.Normals[i*3+2]),
	}
}

// Bounds returns the axis-aligned bounds of the vertices. An empty mesh
// returns zero bounds.
func (m *Mesh) Bounds() (min, max [3]float64) {
	if m.IsEmpty() {
		return min, max
	}
	min = m.Vertex(0)
	max = min
	for i := uint32(1); int(i) < m.VertexCount(); i++ {
		v := m.Vertex(i)
		for a := 0; a < 3; a++ {
			if v[a] < min[a] {
				min[a] = v[a]
			}
			if v[a] > max[a] {
				max[a] = v[a]
			}
		}
	}
	return min, max
}
