package mesher

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Vertex is one mesh vertex as handed to the rendering and collision collaborators.
type Vertex struct {
	Position       mgl32.Vec3
	Normal         mgl32.Vec3
	MaterialID     int
	MaterialWeight float32
	// Color packs MaterialWeight into the red channel for the terrain shader.
	Color [4]uint8
}

// Bounds is the axis-aligned bounding box of a section.
type Bounds struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// Sink receives extracted geometry.
type Sink interface {
	// AddVertex appends v, grows the bounding box and returns its index.
	AddVertex(v Vertex) uint32
	// AddIndex appends one triangle corner.
	AddIndex(i uint32)
	// Normal returns the stored normal of vertex i.
	Normal(i uint32) mgl32.Vec3
	// SetNormal replaces the stored normal of vertex i.
	SetNormal(i uint32, n mgl32.Vec3)
}

// Section is an in-memory Sink: a vertex buffer and a triangle index buffer.
type Section struct {
	Vertices []Vertex
	Indices  []uint32
	Bounds   Bounds
}

// AddVertex implements Sink.
func (s *Section) AddVertex(v Vertex) uint32 {
	if len(s.Vertices) == 0 {
		s.Bounds = Bounds{Min: v.Position, Max: v.Position}
	} else {
		updateBounds(&s.Bounds, v.Position)
	}
	s.Vertices = append(s.Vertices, v)
	return uint32(len(s.Vertices) - 1)
}

// AddIndex implements Sink.
func (s *Section) AddIndex(i uint32) {
	s.Indices = append(s.Indices, i)
}

// Normal implements Sink.
func (s *Section) Normal(i uint32) mgl32.Vec3 {
	return s.Vertices[i].Normal
}

// SetNormal implements Sink.
func (s *Section) SetNormal(i uint32, n mgl32.Vec3) {
	s.Vertices[i].Normal = n
}

// TriangleCount returns the number of triangles in the section.
func (s *Section) TriangleCount() int {
	return len(s.Indices) / 3
}

// IsEmpty reports whether the section has no triangles.
func (s *Section) IsEmpty() bool {
	return len(s.Indices) == 0
}

// Face selects one of the six transition sections of a LOD.
type Face int

// Chunk boundary faces, in the order transition cells are attempted.
const (
	FaceXMin Face = iota
	FaceXMax
	FaceYMin
	FaceYMax
	FaceZMin
	FaceZMax
)

// FaceCount is the number of transition sections per LOD.
const FaceCount = 6

// String returns the face name, e.g. "-X".
func (f Face) String() string {
	switch f {
	case FaceXMin:
		return "-X"
	case FaceXMax:
		return "+X"
	case FaceYMin:
		return "-Y"
	case FaceYMax:
		return "+Y"
	case FaceZMin:
		return "-Z"
	case FaceZMax:
		return "+Z"
	default:
		return fmt.Sprintf("Face(%d)", int(f))
	}
}

// MeshLodSection holds the geometry of one LOD: the main surface and one seam
// section per chunk face.
type MeshLodSection struct {
	Main        Section
	Transitions [FaceCount]Section
}

// TriangleCount returns the main and transition triangle totals.
func (m *MeshLodSection) TriangleCount() (main, transition int) {
	main = m.Main.TriangleCount()
	for i := range m.Transitions {
		transition += m.Transitions[i].TriangleCount()
	}
	return main, transition
}

// MeshData is the result of one extraction. It belongs to the caller.
type MeshData struct {
	Sections []MeshLodSection
	// Collision is the LOD 0 main section, the authoritative collision surface.
	Collision *Section
	Strategy  Strategy
}

func newMeshData(lods int, strategy Strategy) *MeshData {
	md := &MeshData{
		Sections: make([]MeshLodSection, lods),
		Strategy: strategy,
	}
	md.Collision = &md.Sections[0].Main
	return md
}

func updateBounds(b *Bounds, p mgl32.Vec3) {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
}
